package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/syun3032-tech/camera-verification-ai/internal/config"
	"github.com/syun3032-tech/camera-verification-ai/internal/infra/httpx"
	"github.com/syun3032-tech/camera-verification-ai/internal/recognize"
	"github.com/syun3032-tech/camera-verification-ai/internal/recognize/gemini"
	"github.com/syun3032-tech/camera-verification-ai/internal/recognize/hocr"
	"github.com/syun3032-tech/camera-verification-ai/internal/recognize/openai"
)

const (
	envGeminiKey    = "GEMINI_API_KEY"
	envOpenAIKey    = "OPENAI_API_KEY"
	envAnthropicKey = "ANTHROPIC_API_KEY"
)

// buildRegistry 注册可用的识别服务：密钥缺失的服务不注册；hOCR 读取器总是可用。
// 注册顺序即回退顺序：gemini -> openai -> hocr。
func buildRegistry(ctx context.Context, eff config.EffectiveConfig) (recognize.Registry, func(), error) {
	client, err := apiClient(eff)
	if err != nil {
		return recognize.Registry{}, nil, err
	}

	var (
		list    []recognize.Recognizer
		closers []func()
	)
	if key := strings.TrimSpace(os.Getenv(envGeminiKey)); key != "" {
		g, err := gemini.New(ctx, key, eff.GeminiModel)
		if err != nil {
			return recognize.Registry{}, nil, fmt.Errorf("初始化 Gemini 失败：%w", err)
		}
		list = append(list, g)
		closers = append(closers, func() { _ = g.Close() })
	} else {
		slog.Debug("未设置密钥，跳过识别服务", "recognizer", "gemini", "env", envGeminiKey)
	}
	if key := strings.TrimSpace(os.Getenv(envOpenAIKey)); key != "" {
		o, err := openai.New(openai.Options{APIKey: key, Model: eff.OpenAIModel, HTTPClient: client})
		if err != nil {
			return recognize.Registry{}, nil, fmt.Errorf("初始化 OpenAI 失败：%w", err)
		}
		list = append(list, o)
	} else {
		slog.Debug("未设置密钥，跳过识别服务", "recognizer", "openai", "env", envOpenAIKey)
	}
	list = append(list, hocr.Recognizer{MinConfidence: eff.HOCRMinConfidence})

	reg, err := recognize.NewRegistry(list...)
	if err != nil {
		return recognize.Registry{}, nil, err
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return reg, closeAll, nil
}

func apiClient(eff config.EffectiveConfig) (*http.Client, error) {
	return httpx.NewAPIClient(httpx.Options{
		ProxyURL:          eff.ProxyURL,
		RequestsPerMinute: eff.RequestsPerMinute,
	})
}
