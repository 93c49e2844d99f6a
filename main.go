package main

import (
	"html/template"
	"log"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"trend-scribe/config"
	"trend-scribe/internal/handler"
	"trend-scribe/internal/model"
	"trend-scribe/internal/scheduler"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect database:", err)
	}

	// 自动迁移
	db.AutoMigrate(&model.Feed{}, &model.Article{}, &model.AutomationSource{}, &model.AutomationLog{}, &model.Config{})

	// 初始化默认配置
	initDefaultConfig(db)

	// 注册路由
	h := handler.NewHandler(db)

	// 启动定时轮询
	sched := scheduler.NewScheduler(db, h.Automation())
	sched.Start()
	defer sched.Stop()
	h.SetScheduler(sched)

	// 初始化Gin
	r := gin.Default()

	// 加载模板
	r.SetHTMLTemplate(template.Must(template.ParseGlob("web/templates/*.html")))
	r.Static("/static", "web/static")

	h.RegisterRoutes(r)

	// 启动服务
	addr := cfg.GetServerAddress()
	log.Println("Server starting on", addr)
	r.Run(addr)
}

func initDefaultConfig(db *gorm.DB) {
	defaults := map[string]string{
		model.ConfigOpenRouterModel:     "openai/gpt-4o-mini",
		model.ConfigOpenRouterFreeModel: "meta-llama/llama-3.3-70b-instruct:free",
		model.ConfigFeedConvertURL:      "https://api.rss2json.com/v1/api.json?rss_url=",
		model.ConfigFeedProxyURL:        "https://api.allorigins.win/raw?url=",
		model.ConfigPollMinutes:         "30",
		model.ConfigItemDelayMS:         "2000",
		model.ConfigPromptArticle:       "You are a professional content writer producing well-structured, engaging articles.",
	}

	for key, value := range defaults {
		db.Where("key = ?", key).FirstOrCreate(&model.Config{Key: key, Value: value})
	}
}
