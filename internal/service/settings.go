package service

import (
	"strconv"

	"gorm.io/gorm"

	"trend-scribe/internal/model"
)

// OpenRouterConfig LLM服务配置(从Config表读取)
type OpenRouterConfig struct {
	APIKey    string
	Model     string
	FreeModel string
	Connected bool
}

// ResolveModel 解析请求的模型:空用默认模型,"free"用免费模型,其余视为自定义模型串
func (c OpenRouterConfig) ResolveModel(requested string) string {
	switch requested {
	case "":
		return c.Model
	case "free":
		return c.FreeModel
	default:
		return requested
	}
}

// WordPressConfig 发布目标配置
type WordPressConfig struct {
	URL       string
	Username  string
	Password  string
	Connected bool
}

func (c WordPressConfig) Complete() bool {
	return c.URL != "" && c.Username != "" && c.Password != ""
}

func loadConfigMap(db *gorm.DB) map[string]string {
	var items []model.Config
	db.Find(&items)

	configs := make(map[string]string, len(items))
	for _, item := range items {
		configs[item.Key] = item.Value
	}
	return configs
}

func loadOpenRouterConfig(db *gorm.DB) OpenRouterConfig {
	configs := loadConfigMap(db)
	return OpenRouterConfig{
		APIKey:    configs[model.ConfigOpenRouterAPIKey],
		Model:     configs[model.ConfigOpenRouterModel],
		FreeModel: configs[model.ConfigOpenRouterFreeModel],
		Connected: configs[model.ConfigOpenRouterConnected] == "true",
	}
}

func loadWordPressConfig(db *gorm.DB) WordPressConfig {
	configs := loadConfigMap(db)
	return WordPressConfig{
		URL:       configs[model.ConfigWordPressURL],
		Username:  configs[model.ConfigWordPressUsername],
		Password:  configs[model.ConfigWordPressPassword],
		Connected: configs[model.ConfigWordPressConnected] == "true",
	}
}

func saveConfigValue(db *gorm.DB, key, value string) {
	db.Where("key = ?", key).Assign(model.Config{Value: value}).FirstOrCreate(&model.Config{Key: key})
}

func configInt(db *gorm.DB, key string, fallback int) int {
	var item model.Config
	if err := db.Where("key = ?", key).First(&item).Error; err != nil {
		return fallback
	}
	n, err := strconv.Atoi(item.Value)
	if err != nil {
		return fallback
	}
	return n
}
