package service

import "errors"

// 各管线阶段的错误分类,调用方用errors.Is判断
var (
	// Feed抓取
	ErrInvalidFeed   = errors.New("invalid feed")
	ErrMissingFields = errors.New("feed item missing title or link")
	ErrNetwork       = errors.New("network error")

	// 文章生成
	ErrAPIError      = errors.New("llm api error")
	ErrEmptyContent  = errors.New("empty content from llm")
	ErrNotConfigured = errors.New("service not configured")

	// WordPress发布
	ErrRemote = errors.New("remote error")

	// 批量自动化
	ErrRunActive = errors.New("automation run already active")
	ErrNoTitles  = errors.New("automation source has no titles")
)
