package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"trend-scribe/internal/model"
)

const defaultItemDelayMS = 2000

// RunOptions 一次批量运行的生成参数
type RunOptions struct {
	AutoPublish  bool
	Model        string
	OutputFormat string
	Tone         string
	Language     string
	WordCount    int
	Category     string
}

// RunSummary 批量运行的结果统计
type RunSummary struct {
	RunID   string `json:"run_id"`
	Total   int    `json:"total"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

type AutomationService struct {
	db        *gorm.DB
	generator *GeneratorService
	feeds     *FeedService
	wp        *WordPressService

	mu      sync.Mutex
	running bool
}

func NewAutomationService(db *gorm.DB, generator *GeneratorService, feeds *FeedService, wp *WordPressService) *AutomationService {
	return &AutomationService{
		db:        db,
		generator: generator,
		feeds:     feeds,
		wp:        wp,
	}
}

// IsRunning 是否有批量运行在进行
func (s *AutomationService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// acquire 抢占运行名额,同时只允许一个批量运行,第二次调用直接拒绝而非排队
func (s *AutomationService) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunActive
	}
	s.running = true
	return nil
}

func (s *AutomationService) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Run 对一个自动化源的标题列表顺序执行批量生成
// 单个标题失败只记日志不中断,整批完成后才更新LastProcessed
func (s *AutomationService) Run(ctx context.Context, sourceID uint, opts RunOptions) (*RunSummary, error) {
	var source model.AutomationSource
	if err := s.db.First(&source, sourceID).Error; err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	inputs := make([]GenerateInput, 0, len(source.Titles))
	for _, title := range source.Titles {
		inputs = append(inputs, GenerateInput{Title: title})
	}

	return s.runBatch(ctx, &source, inputs, opts)
}

// ProcessFeedSource 处理一个RSS类型的源:取最新条目,按其标题跑一条生成
// 定时轮询走这里
func (s *AutomationService) ProcessFeedSource(ctx context.Context, source *model.AutomationSource, opts RunOptions) (*RunSummary, error) {
	if source.Type != model.SourceRSS || source.URL == "" {
		return nil, fmt.Errorf("source %d is not a feed source", source.ID)
	}

	item, err := s.feeds.FetchLatest(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	inputs := []GenerateInput{{
		Title:       "Analysis of: " + item.Title,
		Topic:       item.Description,
		SourceTitle: item.Title,
		SourceLink:  item.Link,
	}}

	return s.runBatch(ctx, source, inputs, opts)
}

func (s *AutomationService) runBatch(ctx context.Context, source *model.AutomationSource, inputs []GenerateInput, opts RunOptions) (*RunSummary, error) {
	// 前置检查全部在产生任何副作用之前
	if len(inputs) == 0 {
		return nil, ErrNoTitles
	}
	if _, err := s.generator.llm.DefaultProvider(opts.Model); err != nil {
		return nil, err
	}
	if opts.AutoPublish && !s.wp.Connected() {
		return nil, fmt.Errorf("%w: wordpress not connected", ErrNotConfigured)
	}

	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	summary := &RunSummary{RunID: uuid.NewString(), Total: len(inputs)}
	delay := time.Duration(configInt(s.db, model.ConfigItemDelayMS, defaultItemDelayMS)) * time.Millisecond

	log.Printf("[Automation] run %s started: source=%s titles=%d", summary.RunID, source.Name, len(inputs))

	for i, input := range inputs {
		// 条目之间的固定间隔,取消后不再追加任何日志
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(delay):
			}
		}
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		s.appendLog(summary.RunID, source, input.Title, model.LogProcessing, "generating article", nil)

		input.AutoPublish = opts.AutoPublish
		input.Model = opts.Model
		input.OutputFormat = opts.OutputFormat
		input.Tone = opts.Tone
		input.Language = opts.Language
		input.WordCount = opts.WordCount
		input.Category = opts.Category

		article, err := s.generator.Generate(ctx, input)
		if err != nil {
			// 单条失败不中断整批
			summary.Failed++
			s.appendLog(summary.RunID, source, input.Title, model.LogFailed, err.Error(), nil)
			continue
		}

		summary.Success++
		s.appendLog(summary.RunID, source, input.Title, model.LogSuccess, "article generated", &article.ID)

		if opts.AutoPublish && article.Status == model.ArticlePublished {
			s.appendLog(summary.RunID, source, input.Title, model.LogSuccess,
				"published to wordpress: "+article.WordPressPostURL, &article.ID)
		}
	}

	now := time.Now()
	source.LastProcessed = &now
	if err := s.db.Save(source).Error; err != nil {
		return summary, fmt.Errorf("stamp source: %w", err)
	}

	log.Printf("[Automation] run %s finished: success=%d failed=%d", summary.RunID, summary.Success, summary.Failed)
	return summary, nil
}

func (s *AutomationService) appendLog(runID string, source *model.AutomationSource, title string, status model.LogStatus, message string, articleID *uint) {
	entry := model.AutomationLog{
		RunID:      runID,
		SourceID:   source.ID,
		SourceName: source.Name,
		Title:      title,
		Status:     status,
		Message:    message,
		ArticleID:  articleID,
		Timestamp:  time.Now(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("[Automation] append log: %v", err)
	}
}

// RecentLogs 最新的处理日志
func (s *AutomationService) RecentLogs(limit int) ([]model.AutomationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []model.AutomationLog
	err := s.db.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// ClearLogs 清空处理日志
func (s *AutomationService) ClearLogs() error {
	return s.db.Where("1 = 1").Delete(&model.AutomationLog{}).Error
}
