package service

import (
	"time"

	"gorm.io/gorm"

	"trend-scribe/internal/model"
)

type StatusService struct {
	db *gorm.DB
}

type SystemStatus struct {
	// 文章统计
	TotalArticles     int64 `json:"total_articles"`
	GeneratedArticles int64 `json:"generated_articles"`
	PublishedArticles int64 `json:"published_articles"`
	FailedArticles    int64 `json:"failed_articles"`

	// 订阅源统计
	TotalFeeds  int64 `json:"total_feeds"`
	ActiveFeeds int64 `json:"active_feeds"`
	ErrorFeeds  int64 `json:"error_feeds"`

	// 自动化统计
	TotalSources  int64 `json:"total_sources"`
	ActiveSources int64 `json:"active_sources"`
	TotalLogs     int64 `json:"total_logs"`
	RunActive     bool  `json:"run_active"`

	// 定时任务信息
	NextPollTime time.Time `json:"next_poll_time"`
}

func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{db: db}
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus() (*SystemStatus, error) {
	status := &SystemStatus{}

	// 统计文章
	s.db.Model(&model.Article{}).Count(&status.TotalArticles)
	s.db.Model(&model.Article{}).Where("status = ?", model.ArticleGenerated).Count(&status.GeneratedArticles)
	s.db.Model(&model.Article{}).Where("status = ?", model.ArticlePublished).Count(&status.PublishedArticles)
	s.db.Model(&model.Article{}).Where("status = ?", model.ArticleFailed).Count(&status.FailedArticles)

	// 统计订阅源
	s.db.Model(&model.Feed{}).Count(&status.TotalFeeds)
	s.db.Model(&model.Feed{}).Where("status = ?", model.FeedActive).Count(&status.ActiveFeeds)
	s.db.Model(&model.Feed{}).Where("status = ?", model.FeedError).Count(&status.ErrorFeeds)

	// 统计自动化
	s.db.Model(&model.AutomationSource{}).Count(&status.TotalSources)
	s.db.Model(&model.AutomationSource{}).Where("is_active = ?", true).Count(&status.ActiveSources)
	s.db.Model(&model.AutomationLog{}).Count(&status.TotalLogs)

	return status, nil
}
