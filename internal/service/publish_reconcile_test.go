package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"trend-scribe/internal/model"
)

// newPipelineFixture 同一库上同时接好mock LLM和mock WordPress
func newPipelineFixture(t *testing.T, llmHandler, wpHandler http.HandlerFunc) (*GeneratorService, func()) {
	t.Helper()

	llmServer := httptest.NewServer(llmHandler)
	wpServer := httptest.NewServer(wpHandler)

	db := newTestDB(t)
	setConfig(t, db, model.ConfigOpenRouterAPIKey, "test-key")
	setConfig(t, db, model.ConfigOpenRouterModel, "test-model")
	setConfig(t, db, model.ConfigWordPressURL, wpServer.URL)
	setConfig(t, db, model.ConfigWordPressUsername, "admin")
	setConfig(t, db, model.ConfigWordPressPassword, "secret")
	setConfig(t, db, model.ConfigWordPressConnected, "true")

	llm := NewLLMService(db)
	llm.baseURL = llmServer.URL
	gen := NewGeneratorService(db, llm, NewWordPressService(db))

	return gen, func() {
		llmServer.Close()
		wpServer.Close()
	}
}

// 发布成功:published + 远端id/url/发布时间齐全
func TestAutoPublishReconciliationSuccess(t *testing.T) {
	gen, closeFn := newPipelineFixture(t,
		chatReply("<h2>Post</h2>"),
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":7,"link":"https://blog.example/7"}`))
		})
	defer closeFn()

	article, err := gen.Generate(context.Background(), GenerateInput{Title: "Auto", AutoPublish: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if article.Status != model.ArticlePublished {
		t.Fatalf("expected published, got %s", article.Status)
	}
	if article.WordPressPostID == nil || *article.WordPressPostID != 7 {
		t.Fatalf("post id not persisted: %v", article.WordPressPostID)
	}
	if article.WordPressPostURL != "https://blog.example/7" {
		t.Fatalf("post url not persisted: %q", article.WordPressPostURL)
	}
	if article.PublishedAt == nil {
		t.Fatal("published_at not persisted")
	}
}

// 发布失败:failed,远端字段保持为空
func TestAutoPublishReconciliationFailure(t *testing.T) {
	gen, closeFn := newPipelineFixture(t,
		chatReply("<h2>Post</h2>"),
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"boom"}`))
		})
	defer closeFn()

	article, err := gen.Generate(context.Background(), GenerateInput{Title: "Auto", AutoPublish: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var stored model.Article
	if err := gen.db.First(&stored, article.ID).Error; err != nil {
		t.Fatalf("load article: %v", err)
	}

	if stored.Status != model.ArticleFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.WordPressPostID != nil || stored.WordPressPostURL != "" || stored.PublishedAt != nil {
		t.Fatalf("remote fields should stay empty: %+v", stored)
	}
}

// 已发布文章重新发布:仅一次POST,新的远端id/url落回,状态保持published
func TestRepublishPublishedArticle(t *testing.T) {
	posts := 0
	gen, closeFn := newPipelineFixture(t,
		chatReply("<h2>Post</h2>"),
		func(w http.ResponseWriter, r *http.Request) {
			posts++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":12,"link":"https://blog.example/12"}`))
		})
	defer closeFn()

	oldID := 7
	article := &model.Article{
		Title:            "Repost",
		Content:          "<p>body</p>",
		Status:           model.ArticlePublished,
		WordPressPostID:  &oldID,
		WordPressPostURL: "https://blog.example/7",
	}
	if err := gen.db.Create(article).Error; err != nil {
		t.Fatalf("create article: %v", err)
	}

	if err := gen.PublishArticle(context.Background(), article); err != nil {
		t.Fatalf("PublishArticle: %v", err)
	}

	if posts != 1 {
		t.Fatalf("expected 1 post request, got %d", posts)
	}
	if article.Status != model.ArticlePublished {
		t.Fatalf("expected published, got %s", article.Status)
	}
	if article.WordPressPostID == nil || *article.WordPressPostID != 12 {
		t.Fatalf("new post id not reconciled: %v", article.WordPressPostID)
	}
	if article.WordPressPostURL != "https://blog.example/12" {
		t.Fatalf("new post url not reconciled: %q", article.WordPressPostURL)
	}
}

// 重新发布失败:状态保持published,旧的远端字段不动
func TestRepublishFailureKeepsPublished(t *testing.T) {
	gen, closeFn := newPipelineFixture(t,
		chatReply("<h2>Post</h2>"),
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"boom"}`))
		})
	defer closeFn()

	oldID := 7
	article := &model.Article{
		Title:            "Repost",
		Content:          "<p>body</p>",
		Status:           model.ArticlePublished,
		WordPressPostID:  &oldID,
		WordPressPostURL: "https://blog.example/7",
	}
	if err := gen.db.Create(article).Error; err != nil {
		t.Fatalf("create article: %v", err)
	}

	err := gen.PublishArticle(context.Background(), article)
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("expected ErrRemote, got %v", err)
	}

	var stored model.Article
	if err := gen.db.First(&stored, article.ID).Error; err != nil {
		t.Fatalf("load article: %v", err)
	}
	if stored.Status != model.ArticlePublished {
		t.Fatalf("expected published, got %s", stored.Status)
	}
	if stored.WordPressPostID == nil || *stored.WordPressPostID != 7 {
		t.Fatalf("old post id should survive: %v", stored.WordPressPostID)
	}
}

// 进不了published的状态在发起网络调用之前就被拒绝
func TestPublishRejectedWithoutRemoteCall(t *testing.T) {
	wpCalled := false
	gen, closeFn := newPipelineFixture(t,
		chatReply("<h2>Post</h2>"),
		func(w http.ResponseWriter, r *http.Request) {
			wpCalled = true
		})
	defer closeFn()

	article := &model.Article{Title: "External", Status: model.ArticleExternal}
	if err := gen.db.Create(article).Error; err != nil {
		t.Fatalf("create article: %v", err)
	}

	if err := gen.PublishArticle(context.Background(), article); err == nil {
		t.Fatal("expected error")
	}
	if wpCalled {
		t.Fatal("wordpress should not be called")
	}
	if article.Status != model.ArticleExternal {
		t.Fatalf("status changed: %s", article.Status)
	}
}

// connected标记关掉时自动发布分支不触发,文章停在generated
func TestAutoPublishSkippedWhenDisconnected(t *testing.T) {
	wpCalled := false
	gen, closeFn := newPipelineFixture(t,
		chatReply("<h2>Post</h2>"),
		func(w http.ResponseWriter, r *http.Request) {
			wpCalled = true
		})
	defer closeFn()

	setConfig(t, gen.db, model.ConfigWordPressConnected, "false")

	article, err := gen.Generate(context.Background(), GenerateInput{Title: "Auto", AutoPublish: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if wpCalled {
		t.Fatal("wordpress should not be called")
	}
	if article.Status != model.ArticleGenerated {
		t.Fatalf("expected generated, got %s", article.Status)
	}
}
