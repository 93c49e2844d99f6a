package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gorm.io/gorm"

	"trend-scribe/internal/model"
)

const (
	fetchRetries    = 2
	fetchRetryDelay = 500 * time.Millisecond
)

// NormalizedItem Feed最新条目的统一结构,JSON和XML两种来源都归一到这里
type NormalizedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// convertEnvelope RSS转JSON服务的响应包
type convertEnvelope struct {
	Status  string           `json:"status"`
	Items   []NormalizedItem `json:"items"`
	Message string           `json:"message"`
}

type FeedService struct {
	db     *gorm.DB
	parser *gofeed.Parser
	client *http.Client
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{
		db:     db,
		parser: gofeed.NewParser(),
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

// FetchLatest 抓取Feed的最新一条并归一化
// RSS源通常禁止跨域直接抓取,请求经配置的转换服务或CORS中转发出,
// 按响应Content-Type区分JSON包还是原始XML
func (s *FeedService) FetchLatest(ctx context.Context, feedURL string) (*NormalizedItem, error) {
	requestURL := s.buildRequestURL(feedURL)

	resp, err := s.doGet(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch feed: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d", ErrInvalidFeed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return s.parseEnvelope(body)
	}
	return s.parseXML(string(body))
}

// FetchAndTrack 抓取最新条目并把结果落回Feed:
// 无论成败LastFetched都更新,status在error和active之间切换
func (s *FeedService) FetchAndTrack(ctx context.Context, feed *model.Feed) (*NormalizedItem, error) {
	item, err := s.FetchLatest(ctx, feed.URL)

	now := time.Now()
	feed.LastFetched = &now
	if err != nil {
		feed.Status = model.FeedError
	} else {
		feed.Status = model.FeedActive
	}

	if saveErr := s.db.Save(feed).Error; saveErr != nil {
		return nil, saveErr
	}
	return item, err
}

// Validate 验证Feed是否可抓取
func (s *FeedService) Validate(ctx context.Context, feed *model.Feed) error {
	_, err := s.FetchAndTrack(ctx, feed)
	return err
}

// buildRequestURL 优先走RSS转JSON服务,未配置时走CORS中转
func (s *FeedService) buildRequestURL(feedURL string) string {
	configs := loadConfigMap(s.db)

	if convert := configs[model.ConfigFeedConvertURL]; convert != "" {
		return convert + url.QueryEscape(feedURL)
	}
	if proxy := configs[model.ConfigFeedProxyURL]; proxy != "" {
		return proxy + url.QueryEscape(feedURL)
	}
	return feedURL
}

// doGet 带有限次重试的GET,只对网络层错误重试
func (s *FeedService) doGet(ctx context.Context, requestURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= fetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * fetchRetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json, application/rss+xml, application/xml, text/xml")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (s *FeedService) parseEnvelope(body []byte) (*NormalizedItem, error) {
	var envelope convertEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}

	if envelope.Status != "ok" {
		if envelope.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFeed, envelope.Message)
		}
		return nil, fmt.Errorf("%w: status %q", ErrInvalidFeed, envelope.Status)
	}
	if len(envelope.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidFeed)
	}

	return normalizeItem(envelope.Items[0])
}

func (s *FeedService) parseXML(body string) (*NormalizedItem, error) {
	parsed, err := s.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}
	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidFeed)
	}

	first := parsed.Items[0]
	return normalizeItem(NormalizedItem{
		Title:       first.Title,
		Description: first.Description,
		Link:        first.Link,
	})
}

// normalizeItem 只取最新一条,缺标题或链接视为硬失败
func normalizeItem(item NormalizedItem) (*NormalizedItem, error) {
	item.Title = strings.TrimSpace(item.Title)
	item.Link = strings.TrimSpace(item.Link)
	if item.Title == "" || item.Link == "" {
		return nil, ErrMissingFields
	}
	return &item, nil
}
