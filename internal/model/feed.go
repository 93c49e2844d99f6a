package model

import "time"

type FeedStatus string

const (
	FeedActive FeedStatus = "active" // 正常
	FeedPaused FeedStatus = "paused" // 暂停
	FeedError  FeedStatus = "error"  // 抓取失败
)

type Feed struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	URL         string     `gorm:"size:500;uniqueIndex;not null" json:"url"`
	Category    string     `gorm:"size:100" json:"category"`
	Status      FeedStatus `gorm:"size:20;default:active" json:"status"`
	LastFetched *time.Time `json:"last_fetched,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
