package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gorm.io/gorm"

	"trend-scribe/internal/model"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// ProviderConfig 按提供方区分的封闭变体,调用点用类型switch穷举,
// 避免松散配置下取到不存在的字段
type ProviderConfig interface {
	providerName() string
}

type OpenRouterProvider struct {
	APIKey string
	Model  string
}

type OpenAIProvider struct {
	APIKey string
	Model  string
}

type AnthropicProvider struct {
	APIKey string
	Model  string
}

// CustomProvider 自定义OpenAI兼容端点
type CustomProvider struct {
	Endpoint string
	APIKey   string
	Model    string
}

func (OpenRouterProvider) providerName() string { return "openrouter" }
func (OpenAIProvider) providerName() string     { return "openai" }
func (AnthropicProvider) providerName() string  { return "anthropic" }
func (CustomProvider) providerName() string     { return "custom" }

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type ModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type LLMService struct {
	db      *gorm.DB
	client  *http.Client
	baseURL string // OpenRouter基地址,测试时可替换
}

func NewLLMService(db *gorm.DB) *LLMService {
	return &LLMService{
		db:      db,
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: openRouterBaseURL,
	}
}

// DefaultProvider 从Config表解析默认提供方(OpenRouter)
func (s *LLMService) DefaultProvider(requestedModel string) (ProviderConfig, error) {
	cfg := loadOpenRouterConfig(s.db)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openrouter api key missing", ErrNotConfigured)
	}

	m := cfg.ResolveModel(requestedModel)
	if m == "" {
		return nil, fmt.Errorf("%w: no model selected", ErrNotConfigured)
	}

	return OpenRouterProvider{APIKey: cfg.APIKey, Model: m}, nil
}

// resolve 穷举所有提供方变体,返回端点/密钥/模型
func (s *LLMService) resolve(p ProviderConfig) (endpoint, apiKey, chatModel string, err error) {
	switch v := p.(type) {
	case OpenRouterProvider:
		return s.baseURL + "/chat/completions", v.APIKey, v.Model, nil
	case OpenAIProvider:
		return "https://api.openai.com/v1/chat/completions", v.APIKey, v.Model, nil
	case AnthropicProvider:
		return "https://api.anthropic.com/v1/chat/completions", v.APIKey, v.Model, nil
	case CustomProvider:
		return v.Endpoint + "/chat/completions", v.APIKey, v.Model, nil
	default:
		return "", "", "", fmt.Errorf("unknown provider: %T", p)
	}
}

// Chat 调用chat-completion端点,返回首个choice的内容
func (s *LLMService) Chat(ctx context.Context, p ProviderConfig, system, user string, temperature float64) (string, error) {
	endpoint, apiKey, chatModel, err := s.resolve(p)
	if err != nil {
		return "", err
	}

	messages := []Message{}
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: user})

	reqBody := ChatRequest{
		Model:       chatModel,
		Messages:    messages,
		Temperature: temperature,
	}

	jsonBody, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAPIError, resp.StatusCode, truncateBody(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}

	// 防御部分提供方漏掉choices数组的响应
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", ErrEmptyContent
	}

	return chatResp.Choices[0].Message.Content, nil
}

// GetModels 获取OpenRouter可用模型列表
func (s *LLMService) GetModels(ctx context.Context) ([]string, error) {
	cfg := loadOpenRouterConfig(s.db)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openrouter api key missing", ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API返回错误: %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)

	var modelsResp ModelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}

	models := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		models = append(models, m.ID)
	}

	return models, nil
}

// TestConnection 发一条测试消息验证配置,并回写connected标记
func (s *LLMService) TestConnection(ctx context.Context) (string, error) {
	provider, err := s.DefaultProvider("")
	if err != nil {
		saveConfigValue(s.db, model.ConfigOpenRouterConnected, "false")
		return "", err
	}

	reply, err := s.Chat(ctx, provider, "", "Hi", 0.2)
	if err != nil {
		saveConfigValue(s.db, model.ConfigOpenRouterConnected, "false")
		return "", err
	}

	saveConfigValue(s.db, model.ConfigOpenRouterConnected, "true")
	return reply, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
