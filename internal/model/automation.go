package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type SourceType string

const (
	SourceRSS    SourceType = "rss"    // RSS源轮询
	SourceSheets SourceType = "sheets" // 表格导入
	SourceManual SourceType = "manual" // 手动输入标题
	SourceFile   SourceType = "file"   // 文件导入
)

// TitleList 标题列表,以JSON文本存入sqlite
type TitleList []string

func (t TitleList) Value() (driver.Value, error) {
	if len(t) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (t *TitleList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), t)
	case []byte:
		return json.Unmarshal(v, t)
	}
	return fmt.Errorf("unsupported title list type: %T", value)
}

type AutomationSource struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	Type          SourceType `gorm:"size:20;not null" json:"type"`
	URL           string     `gorm:"size:500" json:"url,omitempty"`
	Titles        TitleList  `gorm:"type:text" json:"titles,omitempty"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	LastProcessed *time.Time `json:"last_processed,omitempty"` // 整批处理完成后才更新
	CreatedAt     time.Time  `json:"created_at"`
}

type LogStatus string

const (
	LogProcessing LogStatus = "processing"
	LogSuccess    LogStatus = "success"
	LogFailed     LogStatus = "failed"
)

// AutomationLog 只追加的处理日志,每个标题产生一条processing加一条终态记录
type AutomationLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"size:36;index" json:"run_id"`
	SourceID   uint      `gorm:"index" json:"source_id"`
	SourceName string    `gorm:"size:255" json:"source_name"`
	Title      string    `gorm:"size:500" json:"title"`
	Status     LogStatus `gorm:"size:20" json:"status"`
	Message    string    `gorm:"type:text" json:"message"`
	ArticleID  *uint     `json:"article_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
