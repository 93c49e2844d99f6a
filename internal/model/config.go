package model

import "time"

type Config struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"size:100;uniqueIndex;not null"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time
}

// 预定义配置键
const (
	ConfigOpenRouterAPIKey    = "openrouter_api_key"
	ConfigOpenRouterModel     = "openrouter_model"
	ConfigOpenRouterFreeModel = "openrouter_free_model"
	ConfigOpenRouterConnected = "openrouter_connected"

	ConfigWordPressURL       = "wordpress_url"
	ConfigWordPressUsername  = "wordpress_username"
	ConfigWordPressPassword  = "wordpress_password"
	ConfigWordPressConnected = "wordpress_connected"

	ConfigFeedProxyURL   = "feed_proxy_url"   // CORS中转地址,拼接?url=
	ConfigFeedConvertURL = "feed_convert_url" // RSS转JSON服务地址,拼接?rss_url=

	ConfigPollMinutes = "automation_poll_minutes"  // 轮询间隔(分钟,最小10)
	ConfigItemDelayMS = "automation_item_delay_ms" // 批处理条目间延迟

	ConfigPromptArticle = "prompt_article" // 默认生成系统提示词
)
