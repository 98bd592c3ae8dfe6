package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/syun3032-tech/camera-verification-ai/internal/recognize"
)

const DefaultModel = "gpt-4o-mini"

// Recognizer 用 OpenAI 的视觉对话接口做 OCR；只处理图片。
type Recognizer struct {
	client *goopenai.Client
	model  string
}

type Options struct {
	APIKey string
	Model  string
	// BaseURL 为空时使用官方地址；测试时指向 httptest。
	BaseURL string
	// HTTPClient 为空时使用 go-openai 的默认客户端。
	HTTPClient *http.Client
}

func New(opts Options) (*Recognizer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("OpenAI API 密钥未设置")
	}
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Recognizer{client: goopenai.NewClientWithConfig(cfg), model: model}, nil
}

func (*Recognizer) Name() string { return "openai" }

func (*Recognizer) Accepts(mime string) bool {
	return recognize.Classify(mime) == recognize.MediaImage
}

func (r *Recognizer) Recognize(ctx context.Context, content []byte, mime string) (string, error) {
	if !r.Accepts(mime) {
		return "", fmt.Errorf("OpenAI 只支持图片，收到：%s", mime)
	}

	req := goopenai.ChatCompletionRequest{
		Model: r.model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{Type: goopenai.ChatMessagePartTypeText, Text: recognize.OCRPrompt},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL:    dataURL(mime, content),
							Detail: goopenai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &recognize.ServiceError{Recognizer: r.Name(), Message: "OpenAI API 错误：" + apiMessage(err), Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &recognize.ServiceError{Recognizer: r.Name(), Message: "OCR 处理失败：OpenAI 没有返回文本"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func dataURL(mime string, content []byte) string {
	return "data:" + recognize.BaseMIME(mime) + ";base64," + base64.StdEncoding.EncodeToString(content)
}

func apiMessage(err error) string {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return err.Error()
}
