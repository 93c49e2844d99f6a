package model

import (
	"fmt"
	"time"
)

type ArticleStatus string

const (
	ArticleDraft      ArticleStatus = "draft"      // 草稿
	ArticleGenerated  ArticleStatus = "generated"  // 已生成
	ArticlePublished  ArticleStatus = "published"  // 已发布
	ArticleFailed     ArticleStatus = "failed"     // 发布失败
	ArticlePending    ArticleStatus = "pending"    // 等待处理
	ArticleProcessing ArticleStatus = "processing" // 处理中
	ArticleExternal   ArticleStatus = "external"   // 外部导入
)

// 合法的状态转移表,published之后只允许重新发布
var articleTransitions = map[ArticleStatus][]ArticleStatus{
	ArticleDraft:      {ArticleGenerated, ArticlePending, ArticleProcessing},
	ArticlePending:    {ArticleProcessing, ArticleFailed},
	ArticleProcessing: {ArticleGenerated, ArticleFailed},
	ArticleGenerated:  {ArticlePublished, ArticleFailed},
	ArticleFailed:     {ArticlePublished, ArticleProcessing},
	ArticlePublished:  {ArticlePublished},
	ArticleExternal:   {},
}

type Article struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	Title            string        `gorm:"size:500;not null" json:"title"`
	Content          string        `gorm:"type:text" json:"content"`
	Status           ArticleStatus `gorm:"size:20;default:draft" json:"status"`
	Category         string        `gorm:"size:100" json:"category"`
	SourceTitle      string        `gorm:"size:500" json:"source_title,omitempty"`
	SourceLink       string        `gorm:"size:500" json:"source_link,omitempty"`
	CustomPrompt     string        `gorm:"type:text" json:"custom_prompt,omitempty"`
	WordPressPostID  *int          `json:"wordpress_post_id,omitempty"`
	WordPressPostURL string        `gorm:"size:500" json:"wordpress_post_url,omitempty"`
	PublishedAt      *time.Time    `json:"published_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// CanTransitionTo 判断目标状态是否合法,不改变当前状态
func (a *Article) CanTransitionTo(next ArticleStatus) bool {
	for _, allowed := range articleTransitions[a.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo 校验并执行状态转移,非法转移(如published→generated)返回错误
func (a *Article) TransitionTo(next ArticleStatus) error {
	if a.CanTransitionTo(next) {
		a.Status = next
		return nil
	}
	return fmt.Errorf("illegal article transition: %s -> %s", a.Status, next)
}
