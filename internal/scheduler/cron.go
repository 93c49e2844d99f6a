package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"trend-scribe/internal/model"
	"trend-scribe/internal/service"
)

const (
	minPollMinutes     = 10 // 轮询间隔下限
	defaultPollMinutes = 30
)

type Scheduler struct {
	cron        *cron.Cron
	db          *gorm.DB
	automation  *service.AutomationService
	pollEntryID cron.EntryID
}

func NewScheduler(db *gorm.DB, automation *service.AutomationService) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		db:         db,
		automation: automation,
	}
}

// Start 按配置的间隔轮询自动化源,间隔改动需重启生效
func (s *Scheduler) Start() {
	minutes := s.pollMinutes()

	s.pollEntryID, _ = s.cron.AddFunc(fmt.Sprintf("@every %dm", minutes), func() {
		log.Println("[Cron] Polling automation sources...")
		s.PollSources(context.Background())
	})

	s.cron.Start()
	log.Printf("[Cron] Scheduler started (poll every %dm)", minutes)
}

// PollSources 轮询所有启用的RSS自动化源,抓最新条目并生成
func (s *Scheduler) PollSources(ctx context.Context) {
	if s.automation.IsRunning() {
		log.Println("[Cron] Skip poll: a run is already active")
		return
	}

	var sources []model.AutomationSource
	s.db.Where("is_active = ? AND type = ?", true, model.SourceRSS).Find(&sources)

	for _, source := range sources {
		summary, err := s.automation.ProcessFeedSource(ctx, &source, service.RunOptions{})
		if err != nil {
			if errors.Is(err, service.ErrRunActive) {
				return
			}
			log.Printf("[Cron] source %s: %v", source.Name, err)
			continue
		}
		log.Printf("[Cron] source %s: success=%d failed=%d", source.Name, summary.Success, summary.Failed)
	}
}

// GetNextPollTime 获取下次轮询时间
func (s *Scheduler) GetNextPollTime() time.Time {
	entry := s.cron.Entry(s.pollEntryID)
	return entry.Next
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) pollMinutes() int {
	minutes := defaultPollMinutes
	var item model.Config
	if err := s.db.Where("key = ?", model.ConfigPollMinutes).First(&item).Error; err == nil {
		if n, convErr := parsePositive(item.Value); convErr == nil {
			minutes = n
		}
	}
	if minutes < minPollMinutes {
		minutes = minPollMinutes
	}
	return minutes
}

func parsePositive(value string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("non-positive value: %d", n)
	}
	return n, nil
}
