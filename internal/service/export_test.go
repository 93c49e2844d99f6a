package service

import (
	"strings"
	"testing"

	"trend-scribe/internal/model"
)

func TestExportFilename(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello, World!", "HelloWorld"},
		{"A Very Long Title That Definitely Exceeds The Thirty Character Limit", "AVeryLongTitleThatDefinitelyEx"},
		{"日本語のタイトル!!", "article"},
		{"", "article"},
		{"Mix3d ch@rs & numb3rs", "Mix3dchrsnumb3rs"},
	}

	for _, tc := range cases {
		if got := ExportFilename(tc.title); got != tc.want {
			t.Errorf("ExportFilename(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestExportFormats(t *testing.T) {
	svc := NewExportService()
	article := &model.Article{
		Title:   "Sample Post",
		Content: "<h2>Heading</h2><p>First paragraph.</p><ul><li>Point</li></ul>",
	}

	name, body, contentType, err := svc.Export(article, ExportHTML)
	if err != nil {
		t.Fatalf("Export html: %v", err)
	}
	if name != "SamplePost.html" {
		t.Fatalf("unexpected html filename: %s", name)
	}
	if string(body) != article.Content {
		t.Fatalf("html export must keep content verbatim")
	}
	if !strings.HasPrefix(contentType, "text/html") {
		t.Fatalf("unexpected content type: %s", contentType)
	}

	name, body, contentType, err = svc.Export(article, ExportText)
	if err != nil {
		t.Fatalf("Export txt: %v", err)
	}
	if name != "SamplePost.txt" {
		t.Fatalf("unexpected txt filename: %s", name)
	}
	text := string(body)
	if strings.Contains(text, "<") {
		t.Fatalf("txt export should have no markup: %q", text)
	}
	for _, want := range []string{"Heading", "First paragraph.", "Point"} {
		if !strings.Contains(text, want) {
			t.Fatalf("txt export missing %q: %q", want, text)
		}
	}
	if !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("unexpected content type: %s", contentType)
	}

	if _, _, _, err := svc.Export(article, "pdf"); err == nil {
		t.Fatal("unsupported format should error")
	}
}
