package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"trend-scribe/internal/model"
)

// 清理LLM偶尔带出的XML声明,不去掉会破坏下游HTML渲染
var xmlPrologPattern = regexp.MustCompile(`(?s)<\?xml.*?\?>\s*`)

// GenerateInput 一次生成的全部输入,凭据和端点选择不在这里
type GenerateInput struct {
	Title          string
	Topic          string
	PromptOverride string
	Model          string // 空=默认模型,"free"=免费模型,其余为自定义模型串
	OutputFormat   string // html / markdown / text
	Tone           string
	Language       string
	WordCount      int
	Category       string
	SourceTitle    string
	SourceLink     string
	AutoPublish    bool
}

type GeneratorService struct {
	db  *gorm.DB
	llm *LLMService
	wp  *WordPressService
}

func NewGeneratorService(db *gorm.DB, llm *LLMService, wp *WordPressService) *GeneratorService {
	return &GeneratorService{db: db, llm: llm, wp: wp}
}

// Generate 构建提示词→调LLM→清理→落库,始终以generated状态新建文章
// AutoPublish开启且WordPress已连接时随即发布并按结果落状态
func (s *GeneratorService) Generate(ctx context.Context, input GenerateInput) (*model.Article, error) {
	provider, err := s.llm.DefaultProvider(input.Model)
	if err != nil {
		return nil, err
	}

	system := input.PromptOverride
	if system == "" {
		system = s.buildSystemPrompt(input)
	}

	content, err := s.llm.Chat(ctx, provider, system, buildUserPrompt(input), 0.7)
	if err != nil {
		return nil, err
	}

	article := &model.Article{
		Title:        input.Title,
		Content:      stripXMLProlog(content),
		Status:       model.ArticleGenerated,
		Category:     input.Category,
		SourceTitle:  input.SourceTitle,
		SourceLink:   input.SourceLink,
		CustomPrompt: input.PromptOverride,
	}

	if err := s.db.Create(article).Error; err != nil {
		return nil, fmt.Errorf("save article: %w", err)
	}

	if input.AutoPublish && s.wp.Connected() {
		if err := s.PublishArticle(ctx, article); err != nil {
			log.Printf("[Generator] auto-publish failed: %v", err)
		}
	}

	return article, nil
}

// PublishArticle 调用发布并把结果落回文章
// 发布器自身无副作用,published|failed的转移集中在这里
// 不能进入published的状态在网络调用之前就拒绝,避免在远端建出多余文章
func (s *GeneratorService) PublishArticle(ctx context.Context, article *model.Article) error {
	if !article.CanTransitionTo(model.ArticlePublished) {
		return fmt.Errorf("article %d cannot be published from status %s", article.ID, article.Status)
	}

	result, err := s.wp.Publish(ctx, article)
	if err != nil {
		// 重新发布失败时保留published,远端旧文章仍然存在
		if article.Status != model.ArticlePublished {
			if tErr := article.TransitionTo(model.ArticleFailed); tErr != nil {
				return tErr
			}
			if saveErr := s.db.Save(article).Error; saveErr != nil {
				log.Printf("[Generator] save failed article %d: %v", article.ID, saveErr)
			}
		}
		return err
	}

	if tErr := article.TransitionTo(model.ArticlePublished); tErr != nil {
		return tErr
	}
	now := time.Now()
	article.WordPressPostID = &result.PostID
	article.WordPressPostURL = result.PostURL
	article.PublishedAt = &now
	return s.db.Save(article).Error
}

// buildSystemPrompt 角色+语气+语言+输出格式规则
func (s *GeneratorService) buildSystemPrompt(input GenerateInput) string {
	base := s.defaultPrompt()

	var b strings.Builder
	b.WriteString(base)

	if input.Tone != "" {
		fmt.Fprintf(&b, " Write in a %s tone.", input.Tone)
	}
	if input.Language != "" {
		fmt.Fprintf(&b, " Write the article in %s.", input.Language)
	}

	switch input.OutputFormat {
	case "markdown":
		b.WriteString(" Format the output as Markdown: # for the main heading, ## for sections, **bold** for emphasis, - for list items. Do not wrap the output in code fences.")
	case "text":
		b.WriteString(" Write plain prose paragraphs with no markup of any kind.")
	default:
		b.WriteString(" Format the output as clean HTML using only <h2>, <h3>, <p>, <ul>, <ol>, <li>, <strong> and <em> tags. Do not include <html>, <head> or <body> tags.")
	}

	return b.String()
}

func (s *GeneratorService) defaultPrompt() string {
	var item model.Config
	if err := s.db.Where("key = ?", model.ConfigPromptArticle).First(&item).Error; err == nil && item.Value != "" {
		return item.Value
	}
	return "You are a professional content writer producing well-structured, engaging articles."
}

func buildUserPrompt(input GenerateInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an article titled %q.", input.Title)
	if input.Topic != "" {
		fmt.Fprintf(&b, " The article covers: %s.", input.Topic)
	}
	words := input.WordCount
	if words <= 0 {
		words = 800
	}
	fmt.Fprintf(&b, " Target length: about %d words.", words)
	return b.String()
}

func stripXMLProlog(content string) string {
	return strings.TrimSpace(xmlPrologPattern.ReplaceAllString(content, ""))
}
