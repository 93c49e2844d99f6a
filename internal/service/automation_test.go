package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trend-scribe/internal/model"
)

// newAutomationFixture 带mock LLM的批量运行服务,条目间延迟为0
func newAutomationFixture(t *testing.T, llmHandler http.HandlerFunc) (*AutomationService, func()) {
	t.Helper()

	server := httptest.NewServer(llmHandler)

	db := newTestDB(t)
	setConfig(t, db, model.ConfigOpenRouterAPIKey, "test-key")
	setConfig(t, db, model.ConfigOpenRouterModel, "test-model")
	setConfig(t, db, model.ConfigItemDelayMS, "0")

	llm := NewLLMService(db)
	llm.baseURL = server.URL
	wp := NewWordPressService(db)
	feeds := NewFeedService(db)
	gen := NewGeneratorService(db, llm, wp)

	return NewAutomationService(db, gen, feeds, wp), server.Close
}

func createSource(t *testing.T, svc *AutomationService, titles ...string) *model.AutomationSource {
	t.Helper()
	source := &model.AutomationSource{
		Name:     "Batch",
		Type:     model.SourceManual,
		Titles:   model.TitleList(titles),
		IsActive: true,
	}
	if err := svc.db.Create(source).Error; err != nil {
		t.Fatalf("create source: %v", err)
	}
	return source
}

// 5个标题,第3个失败:4成功1失败,整批不中断,LastProcessed照样更新
func TestRunContainsPerTitleFailure(t *testing.T) {
	svc, closeFn := newAutomationFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, msg := range req.Messages {
			if strings.Contains(msg.Content, "Title 3") {
				http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
				return
			}
		}
		chatReply("<p>ok</p>")(w, r)
	})
	defer closeFn()

	source := createSource(t, svc, "Title 1", "Title 2", "Title 3", "Title 4", "Title 5")

	summary, err := svc.Run(context.Background(), source.ID, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Total != 5 || summary.Success != 4 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var logs []model.AutomationLog
	svc.db.Order("id").Find(&logs)

	var processing, success, failed int
	for _, entry := range logs {
		switch entry.Status {
		case model.LogProcessing:
			processing++
		case model.LogSuccess:
			success++
			if entry.ArticleID == nil {
				t.Errorf("success log without article id: %+v", entry)
			}
		case model.LogFailed:
			failed++
		}
	}

	if processing != 5 || success != 4 || failed != 1 {
		t.Fatalf("unexpected log counts: processing=%d success=%d failed=%d", processing, success, failed)
	}

	var stored model.AutomationSource
	svc.db.First(&stored, source.ID)
	if stored.LastProcessed == nil {
		t.Fatal("LastProcessed not stamped after partially failed batch")
	}
}

// 运行中再次触发:直接拒绝,不追加日志,不更新LastProcessed
func TestRunSingleFlight(t *testing.T) {
	svc, closeFn := newAutomationFixture(t, chatReply("<p>ok</p>"))
	defer closeFn()

	source := createSource(t, svc, "Only")

	svc.running = true
	_, err := svc.Run(context.Background(), source.ID, RunOptions{})
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}

	var count int64
	svc.db.Model(&model.AutomationLog{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected run must not append logs, found %d", count)
	}

	var stored model.AutomationSource
	svc.db.First(&stored, source.ID)
	if stored.LastProcessed != nil {
		t.Fatal("rejected run must not stamp LastProcessed")
	}
}

// 前置检查在任何副作用之前:没有标题或没有凭据时一条日志都不能出现
func TestRunPreconditions(t *testing.T) {
	t.Run("no titles", func(t *testing.T) {
		svc, closeFn := newAutomationFixture(t, chatReply("<p>ok</p>"))
		defer closeFn()

		source := createSource(t, svc)
		_, err := svc.Run(context.Background(), source.ID, RunOptions{})
		if !errors.Is(err, ErrNoTitles) {
			t.Fatalf("expected ErrNoTitles, got %v", err)
		}
	})

	t.Run("llm not configured", func(t *testing.T) {
		svc, closeFn := newAutomationFixture(t, chatReply("<p>ok</p>"))
		defer closeFn()

		svc.db.Where("key = ?", model.ConfigOpenRouterAPIKey).Delete(&model.Config{})

		source := createSource(t, svc, "Only")
		_, err := svc.Run(context.Background(), source.ID, RunOptions{})
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("autopublish without wordpress", func(t *testing.T) {
		svc, closeFn := newAutomationFixture(t, chatReply("<p>ok</p>"))
		defer closeFn()

		source := createSource(t, svc, "Only")
		_, err := svc.Run(context.Background(), source.ID, RunOptions{AutoPublish: true})
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}

		// 前置失败发生在任何副作用之前
		var count int64
		svc.db.Model(&model.AutomationLog{}).Count(&count)
		if count != 0 {
			t.Fatalf("aborted run must not append logs, found %d", count)
		}
	})
}

// 取消后停止处理,不再追加日志,也不更新LastProcessed
func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	svc, closeFn := newAutomationFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			cancel() // 第一条处理完后取消
		}
		chatReply("<p>ok</p>")(w, r)
	})
	defer closeFn()

	source := createSource(t, svc, "One", "Two", "Three")

	_, err := svc.Run(ctx, source.ID, RunOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	var logs []model.AutomationLog
	svc.db.Find(&logs)
	for _, entry := range logs {
		if entry.Title != "One" {
			t.Fatalf("log appended after cancellation: %+v", entry)
		}
	}

	var stored model.AutomationSource
	svc.db.First(&stored, source.ID)
	if stored.LastProcessed != nil {
		t.Fatal("cancelled run must not stamp LastProcessed")
	}
}

// RSS源:取最新条目并按约定标题生成
func TestProcessFeedSource(t *testing.T) {
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","items":[{"title":"Foo","description":"Bar","link":"http://x/1"}]}`))
	}))
	defer feedServer.Close()

	svc, closeFn := newAutomationFixture(t, chatReply("<h2>Hi</h2>"))
	defer closeFn()

	setConfig(t, svc.db, model.ConfigFeedConvertURL, feedServer.URL+"/convert?rss_url=")

	source := &model.AutomationSource{
		Name:     "Feed",
		Type:     model.SourceRSS,
		URL:      "https://example.com/feed.xml",
		IsActive: true,
	}
	if err := svc.db.Create(source).Error; err != nil {
		t.Fatalf("create source: %v", err)
	}

	summary, err := svc.ProcessFeedSource(context.Background(), source, RunOptions{})
	if err != nil {
		t.Fatalf("ProcessFeedSource: %v", err)
	}
	if summary.Success != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var article model.Article
	if err := svc.db.First(&article).Error; err != nil {
		t.Fatalf("load article: %v", err)
	}

	if article.Title != "Analysis of: Foo" {
		t.Fatalf("unexpected title: %q", article.Title)
	}
	if article.Content != "<h2>Hi</h2>" || article.Status != model.ArticleGenerated {
		t.Fatalf("unexpected article: %+v", article)
	}
	if article.SourceTitle != "Foo" || article.SourceLink != "http://x/1" {
		t.Fatalf("source fields missing: %+v", article)
	}
}
