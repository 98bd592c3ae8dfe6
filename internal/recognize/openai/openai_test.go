package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/syun3032-tech/camera-verification-ai/internal/recognize"
)

func newServer(t *testing.T, h http.HandlerFunc) *Recognizer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	r, err := New(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	return r
}

func TestRecognize_SendsImageAsDataURL(t *testing.T) {
	var body string
	r := newServer(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/chat/completions" {
			t.Errorf("意外的路径：%s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization 不正确：%q", got)
		}
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":" 車台番号: AAZH20-1002549 \n"},"finish_reason":"stop"}]}`)
	})

	text, err := r.Recognize(context.Background(), []byte("PNGDATA"), "image/png")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if text != "車台番号: AAZH20-1002549" {
		t.Fatalf("结果不符合预期：%q", text)
	}
	if !strings.Contains(body, "data:image/png;base64,UE5HREFUQQ==") {
		t.Fatalf("请求中缺少 data URL：%s", body)
	}

	var parsed struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil || parsed.Model != DefaultModel {
		t.Fatalf("model 不正确：%q err=%v", parsed.Model, err)
	}
}

func TestRecognize_APIErrorBecomesServiceError(t *testing.T) {
	r := newServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	})

	_, err := r.Recognize(context.Background(), []byte("x"), "image/jpeg")
	var se *recognize.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("期望 *ServiceError，实际 %T %v", err, err)
	}
	if se.Error() != "OpenAI API 错误：Rate limit reached" {
		t.Fatalf("错误消息不符合预期：%q", se.Error())
	}
}

func TestRecognize_EmptyChoices(t *testing.T) {
	r := newServer(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})
	_, err := r.Recognize(context.Background(), []byte("x"), "image/jpeg")
	var se *recognize.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("期望 *ServiceError，实际 %v", err)
	}
}

func TestRecognize_RejectsNonImage(t *testing.T) {
	r, err := New(Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if r.Accepts("audio/mpeg") {
		t.Fatalf("不应接受音频")
	}
	if _, err := r.Recognize(context.Background(), []byte("x"), "audio/mpeg"); err == nil {
		t.Fatalf("非图片应返回错误")
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("缺少密钥时应返回错误")
	}
}
