package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/syun3032-tech/camera-verification-ai/internal/recognize"
)

const DefaultModel = "gemini-2.0-flash"

// Recognizer 用 Gemini 的多模态接口识别媒体：
// 图片/PDF 走 OCR 提示词，音频/视频走转写提示词，媒体以内联 Blob 发送。
type Recognizer struct {
	client *genai.Client
	model  string
}

// New 创建客户端；apiKey 为空时返回错误（调用方据此决定不注册该服务）。
func New(ctx context.Context, apiKey, model string) (*Recognizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("Gemini API 密钥未设置")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Recognizer{client: client, model: model}, nil
}

func (*Recognizer) Name() string { return "gemini" }

func (*Recognizer) Accepts(mime string) bool {
	return recognize.PromptFor(mime) != ""
}

func (r *Recognizer) Recognize(ctx context.Context, content []byte, mime string) (string, error) {
	prompt := recognize.PromptFor(mime)
	if prompt == "" {
		return "", fmt.Errorf("Gemini 不支持的媒体类型：%s", mime)
	}

	m := r.client.GenerativeModel(r.model)
	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: recognize.BaseMIME(mime), Data: content},
		genai.Text(prompt),
	)
	if err != nil {
		return "", &recognize.ServiceError{Recognizer: r.Name(), Message: "Gemini API 错误：" + apiMessage(err), Err: err}
	}

	text := responseText(resp)
	if text == "" {
		return "", &recognize.ServiceError{Recognizer: r.Name(), Message: emptyMessage(mime)}
	}
	return text, nil
}

// Close 释放底层连接。
func (r *Recognizer) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// responseText 拼接第一个候选中的全部文本片段。
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

func apiMessage(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && strings.TrimSpace(gerr.Message) != "" {
		return gerr.Message
	}
	return err.Error()
}

func emptyMessage(mime string) string {
	switch recognize.Classify(mime) {
	case recognize.MediaAudio, recognize.MediaVideo:
		return "转写失败：Gemini 没有返回文本"
	default:
		return "OCR 处理失败：Gemini 没有返回文本"
	}
}
