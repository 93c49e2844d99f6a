package service

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"trend-scribe/internal/model"
)

const exportNameLimit = 30

// ExportFormat 导出格式
const (
	ExportHTML = "html"
	ExportText = "txt"
)

type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// Export 导出文章内容,返回文件名/正文/Content-Type
// txt导出会先把HTML转成纯文本
func (s *ExportService) Export(article *model.Article, format string) (filename string, body []byte, contentType string, err error) {
	name := ExportFilename(article.Title)

	switch format {
	case ExportHTML:
		return name + ".html", []byte(article.Content), "text/html; charset=utf-8", nil
	case ExportText, "":
		text, tErr := PlainText(article.Content)
		if tErr != nil {
			return "", nil, "", tErr
		}
		return name + ".txt", []byte(text), "text/plain; charset=utf-8", nil
	default:
		return "", nil, "", fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportFilename 标题截断到30个字符并去掉非字母数字
func ExportFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		if b.Len() >= exportNameLimit {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "article"
	}
	return b.String()
}

// PlainText 去掉HTML标记,块级元素之间保留换行
func PlainText(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	var parts []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(parts, "\n\n"), nil
}
