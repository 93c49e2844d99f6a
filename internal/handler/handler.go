package handler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"trend-scribe/internal/model"
	"trend-scribe/internal/service"
)

type Handler struct {
	db         *gorm.DB
	feed       *service.FeedService
	llm        *service.LLMService
	generator  *service.GeneratorService
	wordpress  *service.WordPressService
	automation *service.AutomationService
	export     *service.ExportService
	status     *service.StatusService
	scheduler  interface {
		GetNextPollTime() time.Time
	}
}

func NewHandler(db *gorm.DB) *Handler {
	llm := service.NewLLMService(db)
	wp := service.NewWordPressService(db)
	feed := service.NewFeedService(db)
	generator := service.NewGeneratorService(db, llm, wp)
	return &Handler{
		db:         db,
		feed:       feed,
		llm:        llm,
		generator:  generator,
		wordpress:  wp,
		automation: service.NewAutomationService(db, generator, feed, wp),
		export:     service.NewExportService(),
		status:     service.NewStatusService(db),
	}
}

// Automation 暴露给调度器复用同一个单飞实例
func (h *Handler) Automation() *service.AutomationService {
	return h.automation
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	GetNextPollTime() time.Time
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// 页面
	r.GET("/", h.IndexPage)
	r.GET("/feeds", h.FeedsPage)
	r.GET("/articles", h.ArticlesPage)
	r.GET("/automation", h.AutomationPage)
	r.GET("/settings", h.SettingsPage)
	r.GET("/status", h.StatusPage)

	// API
	api := r.Group("/api")
	{
		// Feeds
		api.GET("/feeds", h.ListFeeds)
		api.POST("/feeds", h.CreateFeed)
		api.DELETE("/feeds/:id", h.DeleteFeed)
		api.POST("/feeds/:id/validate", h.ValidateFeed)
		api.POST("/feeds/:id/generate", h.GenerateFromFeed)

		// Articles
		api.GET("/articles", h.ListArticles)
		api.GET("/articles/:id", h.GetArticle)
		api.POST("/articles/generate", h.GenerateArticle)
		api.POST("/articles/:id/publish", h.PublishArticle)
		api.DELETE("/articles/:id", h.DeleteArticle)
		api.GET("/articles/:id/export", h.ExportArticle)

		// Automation
		api.GET("/sources", h.ListSources)
		api.POST("/sources", h.CreateSource)
		api.DELETE("/sources/:id", h.DeleteSource)
		api.POST("/sources/:id/run", h.RunSource)
		api.GET("/automation/logs", h.ListLogs)
		api.DELETE("/automation/logs", h.ClearLogs)

		// Config
		api.GET("/config", h.GetConfig)
		api.POST("/config", h.SaveConfig)

		// LLM
		api.GET("/llm/models", h.GetLLMModels)
		api.POST("/llm/test", h.TestLLMConnection)

		// WordPress
		api.POST("/wordpress/test", h.TestWordPressConnection)

		// Status
		api.GET("/status", h.GetStatus)
	}
}

// ===== Feed相关 =====

func (h *Handler) ListFeeds(c *gin.Context) {
	var feeds []model.Feed
	h.db.Find(&feeds)
	c.JSON(http.StatusOK, feeds)
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var feed model.Feed
	if err := c.ShouldBindJSON(&feed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if feed.Status == "" {
		feed.Status = model.FeedActive
	}

	if err := h.db.Create(&feed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	id := c.Param("id")
	h.db.Delete(&model.Feed{}, id)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ValidateFeed 手动验证Feed,结果落回status/last_fetched
func (h *Handler) ValidateFeed(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))
	var feed model.Feed
	if err := h.db.First(&feed, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}

	if err := h.feed.Validate(c.Request.Context(), &feed); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "feed": feed})
		return
	}

	c.JSON(http.StatusOK, feed)
}

type feedGenerateRequest struct {
	Model        string `json:"model"`
	OutputFormat string `json:"output_format"`
	Tone         string `json:"tone"`
	Language     string `json:"language"`
	WordCount    int    `json:"word_count"`
	AutoPublish  bool   `json:"auto_publish"`
}

// GenerateFromFeed 抓取Feed最新条目并就地生成一篇分析文章
func (h *Handler) GenerateFromFeed(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))
	var feed model.Feed
	if err := h.db.First(&feed, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}

	// body可为空
	var req feedGenerateRequest
	_ = c.ShouldBindJSON(&req)

	item, err := h.feed.FetchAndTrack(c.Request.Context(), &feed)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "feed": feed})
		return
	}

	article, err := h.generator.Generate(c.Request.Context(), service.GenerateInput{
		Title:        "Analysis of: " + item.Title,
		Topic:        item.Description,
		Model:        req.Model,
		OutputFormat: req.OutputFormat,
		Tone:         req.Tone,
		Language:     req.Language,
		WordCount:    req.WordCount,
		Category:     feed.Category,
		SourceTitle:  item.Title,
		SourceLink:   item.Link,
		AutoPublish:  req.AutoPublish,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrNotConfigured) {
			status = http.StatusPreconditionFailed
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, article)
}

// ===== Article相关 =====

func (h *Handler) ListArticles(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize := 20

	query := h.db.Model(&model.Article{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var articles []model.Article
	query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&articles)

	c.JSON(http.StatusOK, gin.H{
		"data":  articles,
		"total": total,
		"page":  page,
	})
}

func (h *Handler) GetArticle(c *gin.Context) {
	var article model.Article
	if err := h.db.First(&article, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}
	c.JSON(http.StatusOK, article)
}

type generateRequest struct {
	Title          string `json:"title" binding:"required"`
	Topic          string `json:"topic"`
	PromptOverride string `json:"prompt_override"`
	Model          string `json:"model"`
	OutputFormat   string `json:"output_format"`
	Tone           string `json:"tone"`
	Language       string `json:"language"`
	WordCount      int    `json:"word_count"`
	Category       string `json:"category"`
	SourceTitle    string `json:"source_title"`
	SourceLink     string `json:"source_link"`
	AutoPublish    bool   `json:"auto_publish"`
}

func (h *Handler) GenerateArticle(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	article, err := h.generator.Generate(c.Request.Context(), service.GenerateInput{
		Title:          req.Title,
		Topic:          req.Topic,
		PromptOverride: req.PromptOverride,
		Model:          req.Model,
		OutputFormat:   req.OutputFormat,
		Tone:           req.Tone,
		Language:       req.Language,
		WordCount:      req.WordCount,
		Category:       req.Category,
		SourceTitle:    req.SourceTitle,
		SourceLink:     req.SourceLink,
		AutoPublish:    req.AutoPublish,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrNotConfigured) {
			status = http.StatusPreconditionFailed
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, article)
}

// PublishArticle 手动发布,与自动发布共用同一套落库逻辑
func (h *Handler) PublishArticle(c *gin.Context) {
	var article model.Article
	if err := h.db.First(&article, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}

	if err := h.generator.PublishArticle(c.Request.Context(), &article); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrNotConfigured) {
			status = http.StatusPreconditionFailed
		}
		c.JSON(status, gin.H{"error": err.Error(), "article": article})
		return
	}

	c.JSON(http.StatusOK, article)
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	id := c.Param("id")
	h.db.Delete(&model.Article{}, id)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *Handler) ExportArticle(c *gin.Context) {
	var article model.Article
	if err := h.db.First(&article, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}

	filename, body, contentType, err := h.export.Export(&article, c.DefaultQuery("format", "txt"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

// ===== Automation相关 =====

func (h *Handler) ListSources(c *gin.Context) {
	var sources []model.AutomationSource
	h.db.Find(&sources)
	c.JSON(http.StatusOK, sources)
}

func (h *Handler) CreateSource(c *gin.Context) {
	var source model.AutomationSource
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.Create(&source).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, source)
}

func (h *Handler) DeleteSource(c *gin.Context) {
	id := c.Param("id")
	h.db.Delete(&model.AutomationSource{}, id)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type runRequest struct {
	AutoPublish  bool   `json:"auto_publish"`
	Model        string `json:"model"`
	OutputFormat string `json:"output_format"`
	Tone         string `json:"tone"`
	Language     string `json:"language"`
	WordCount    int    `json:"word_count"`
	Category     string `json:"category"`
}

// RunSource 启动一次批量运行,运行期间的第二次请求被拒绝
func (h *Handler) RunSource(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("id"))

	// body可为空,全部走默认参数
	var req runRequest
	_ = c.ShouldBindJSON(&req)

	var source model.AutomationSource
	if err := h.db.First(&source, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}

	if h.automation.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrRunActive.Error()})
		return
	}

	opts := service.RunOptions{
		AutoPublish:  req.AutoPublish,
		Model:        req.Model,
		OutputFormat: req.OutputFormat,
		Tone:         req.Tone,
		Language:     req.Language,
		WordCount:    req.WordCount,
		Category:     req.Category,
	}

	go func() {
		if _, err := h.automation.Run(context.Background(), source.ID, opts); err != nil {
			log.Printf("[Automation] run source %d: %v", source.ID, err)
		}
	}()

	c.JSON(http.StatusOK, gin.H{"message": "run started"})
}

func (h *Handler) ListLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.automation.RecentLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) ClearLogs(c *gin.Context) {
	if err := h.automation.ClearLogs(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cleared"})
}

// ===== Config相关 =====

var secretConfigKeys = map[string]bool{
	model.ConfigOpenRouterAPIKey:  true,
	model.ConfigWordPressPassword: true,
}

func (h *Handler) GetConfig(c *gin.Context) {
	var configs []model.Config
	h.db.Find(&configs)

	result := make(map[string]string)
	for _, cfg := range configs {
		if secretConfigKeys[cfg.Key] && cfg.Value != "" {
			result[cfg.Key] = "********"
			continue
		}
		result[cfg.Key] = cfg.Value
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) SaveConfig(c *gin.Context) {
	var input map[string]string
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for key, value := range input {
		// 掩码值回传时跳过,避免把星号存成密钥
		if secretConfigKeys[key] && value == "********" {
			continue
		}
		h.db.Where("key = ?", key).Assign(model.Config{Value: value}).FirstOrCreate(&model.Config{Key: key})
	}

	c.JSON(http.StatusOK, gin.H{"message": "saved"})
}

// ===== 页面 =====

func (h *Handler) IndexPage(c *gin.Context) {
	c.Redirect(http.StatusFound, "/articles")
}

func (h *Handler) FeedsPage(c *gin.Context) {
	var feeds []model.Feed
	h.db.Find(&feeds)
	c.HTML(http.StatusOK, "feeds.html", gin.H{"feeds": feeds})
}

func (h *Handler) ArticlesPage(c *gin.Context) {
	status := c.DefaultQuery("status", "generated")
	c.HTML(http.StatusOK, "articles.html", gin.H{"status": status})
}

func (h *Handler) AutomationPage(c *gin.Context) {
	var sources []model.AutomationSource
	h.db.Find(&sources)
	c.HTML(http.StatusOK, "automation.html", gin.H{"sources": sources})
}

func (h *Handler) SettingsPage(c *gin.Context) {
	var configs []model.Config
	h.db.Find(&configs)

	configMap := make(map[string]string)
	for _, cfg := range configs {
		configMap[cfg.Key] = cfg.Value
	}

	c.HTML(http.StatusOK, "settings.html", gin.H{"config": configMap})
}

// ===== LLM相关 =====

func (h *Handler) GetLLMModels(c *gin.Context) {
	models, err := h.llm.GetModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (h *Handler) TestLLMConnection(c *gin.Context) {
	response, err := h.llm.TestConnection(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "连接成功",
		"response": response,
	})
}

// ===== WordPress相关 =====

func (h *Handler) TestWordPressConnection(c *gin.Context) {
	if err := h.wordpress.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "连接成功",
	})
}

// ===== Status相关 =====

func (h *Handler) StatusPage(c *gin.Context) {
	c.HTML(http.StatusOK, "status.html", nil)
}

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status.RunActive = h.automation.IsRunning()

	// 添加定时任务信息
	if h.scheduler != nil {
		status.NextPollTime = h.scheduler.GetNextPollTime()
	}

	c.JSON(http.StatusOK, status)
}
