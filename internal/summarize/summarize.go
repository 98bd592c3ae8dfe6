package summarize

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const (
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 4096
)

// Summarizer 把转写文本整理为会议纪要。
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Error 是摘要服务的失败；Error() 原样返回 Message。
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL 为空时使用官方地址（https://api.anthropic.com/v1）。
	BaseURL    string
	HTTPClient *http.Client
}

// Anthropic 通过 Messages API 生成纪要。
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropic(opts Options) (*Anthropic, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("Anthropic API 密钥未设置")
	}
	var copts []anthropic.ClientOption
	if opts.BaseURL != "" {
		copts = append(copts, anthropic.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		copts = append(copts, anthropic.WithHTTPClient(opts.HTTPClient))
	}

	a := &Anthropic{
		client:    anthropic.NewClient(opts.APIKey, copts...),
		model:     strings.TrimSpace(opts.Model),
		maxTokens: opts.MaxTokens,
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	return a, nil
}

func (*Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Summarize(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", &Error{Message: "转写文本为空，无法生成纪要"}
	}

	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(a.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(MinutesPrompt + transcript),
				},
			},
		},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", &Error{Message: "Anthropic API 错误：" + apiMessage(err), Err: err}
	}

	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText && c.Text != nil {
			return strings.TrimSpace(*c.Text), nil
		}
	}
	return "", &Error{Message: "纪要生成失败：没有返回文本"}
}

func apiMessage(err error) string {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return err.Error()
}

// MinutesPrompt 后面直接拼接转写文本。
const MinutesPrompt = `あなたは議事録作成のプロフェッショナルです。以下の文字起こしテキストから重要なポイントを抽出し、わかりやすい議事録を作成してください。

以下の形式で出力してください：

## 議事録サマリー

### 参加者
- [わかれば記載、不明な場合は「記録なし」]

### 主な議題
- [議題]

### 決定事項
- [決定事項]

### アクションアイテム
- [担当者]: [タスク内容] [期限]

### 次回の予定
- [なければ「未定」]

### その他メモ
- [その他重要なポイント]

---

文字起こしテキスト:
`
