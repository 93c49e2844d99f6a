package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"trend-scribe/internal/model"
)

// PublishResult 发布成功后的远端标识
type PublishResult struct {
	PostID  int    `json:"post_id"`
	PostURL string `json:"post_url"`
}

type wpPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type wpPostResponse struct {
	ID      int    `json:"id"`
	Link    string `json:"link"`
	Message string `json:"message"`
}

type WordPressService struct {
	db     *gorm.DB
	client *http.Client
}

func NewWordPressService(db *gorm.DB) *WordPressService {
	return &WordPressService{
		db:     db,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Publish 把文章发到WordPress REST端点
// 本身不改文章状态,published/failed的落库由调用方统一处理
func (s *WordPressService) Publish(ctx context.Context, article *model.Article) (*PublishResult, error) {
	cfg := loadWordPressConfig(s.db)
	if !cfg.Complete() {
		return nil, fmt.Errorf("%w: wordpress url/username/password incomplete", ErrNotConfigured)
	}

	reqBody := wpPostRequest{
		Title:   article.Title,
		Content: article.Content,
		Status:  "publish",
	}
	jsonBody, _ := json.Marshal(reqBody)

	endpoint := strings.TrimRight(cfg.URL, "/") + "/wp-json/wp/v2/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cfg.Username, cfg.Password)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wordpress request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	// 只有2xx算成功,3xx重定向一样拿不到新文章的id/link
	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices

	var wpResp wpPostResponse
	if err := json.Unmarshal(body, &wpResp); err != nil && ok {
		return nil, fmt.Errorf("decode wordpress response: %w", err)
	}

	if !ok {
		if wpResp.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrRemote, wpResp.Message)
		}
		return nil, fmt.Errorf("%w: wordpress status %d", ErrRemote, resp.StatusCode)
	}

	return &PublishResult{PostID: wpResp.ID, PostURL: wpResp.Link}, nil
}

// TestConnection 验证凭据并回写connected标记
// 该标记之后不会在每次发布前重新校验,过期凭据会在发布时才暴露
func (s *WordPressService) TestConnection(ctx context.Context) error {
	cfg := loadWordPressConfig(s.db)
	if !cfg.Complete() {
		saveConfigValue(s.db, model.ConfigWordPressConnected, "false")
		return fmt.Errorf("%w: wordpress url/username/password incomplete", ErrNotConfigured)
	}

	endpoint := strings.TrimRight(cfg.URL, "/") + "/wp-json/wp/v2/users/me"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(cfg.Username, cfg.Password)

	resp, err := s.client.Do(req)
	if err != nil {
		saveConfigValue(s.db, model.ConfigWordPressConnected, "false")
		return fmt.Errorf("wordpress request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		saveConfigValue(s.db, model.ConfigWordPressConnected, "false")
		return fmt.Errorf("%w: wordpress status %d", ErrRemote, resp.StatusCode)
	}

	saveConfigValue(s.db, model.ConfigWordPressConnected, "true")
	return nil
}

// Connected 读取手动设置的连接标记
func (s *WordPressService) Connected() bool {
	return loadWordPressConfig(s.db).Connected
}
