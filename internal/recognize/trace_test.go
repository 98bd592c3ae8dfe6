package recognize

import (
	"context"
	"errors"
	"testing"
)

type stubRecognizer struct {
	name   string
	accept func(mime string) bool

	text string
	err  error

	calls int
}

func (r *stubRecognizer) Name() string { return r.name }

func (r *stubRecognizer) Accepts(mime string) bool {
	if r.accept == nil {
		return true
	}
	return r.accept(mime)
}

func (r *stubRecognizer) Recognize(ctx context.Context, content []byte, mime string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}

func imagesOnly(mime string) bool { return Classify(mime) == MediaImage }

func TestRecognizeTrace_FallbackOnFailure(t *testing.T) {
	gemini := &stubRecognizer{name: "gemini", err: errors.New("quota exceeded")}
	openai := &stubRecognizer{name: "openai", text: "車台番号 AAZH20-1002549"}

	reg, err := NewRegistry(gemini, openai)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	text, used, attempts, err := RecognizeTrace(context.Background(), reg, "gemini", []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if used != "openai" || text != openai.text {
		t.Fatalf("期望 openai 的结果，实际 used=%q text=%q", used, text)
	}
	if len(attempts) != 2 {
		t.Fatalf("期望 2 条 attempts，实际 %d: %+v", len(attempts), attempts)
	}
	if attempts[0].Recognizer != "gemini" || attempts[0].Stage != StageRecognize || attempts[0].Err == nil {
		t.Fatalf("attempt[0] 不符合预期：%+v", attempts[0])
	}
	if attempts[1].Recognizer != "openai" || attempts[1].Stage != StageOK || attempts[1].Err != nil {
		t.Fatalf("attempt[1] 不符合预期：%+v", attempts[1])
	}
}

func TestRecognizeTrace_SkipsRecognizerThatRejectsMIME(t *testing.T) {
	openai := &stubRecognizer{name: "openai", accept: imagesOnly, text: "never"}
	gemini := &stubRecognizer{name: "gemini", text: "transcript"}

	reg, err := NewRegistry(openai, gemini)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	text, used, attempts, err := RecognizeTrace(context.Background(), reg, "openai", []byte("x"), "audio/mpeg")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if used != "gemini" || text != "transcript" {
		t.Fatalf("期望 gemini 转写，实际 used=%q text=%q", used, text)
	}
	if openai.calls != 0 {
		t.Fatalf("不支持该 MIME 的服务不应被调用")
	}
	if len(attempts) != 1 {
		t.Fatalf("跳过的服务不应记入 attempts：%+v", attempts)
	}
}

func TestRecognizeTrace_AllFailReturnsVerbatimMessage(t *testing.T) {
	gemini := &stubRecognizer{name: "gemini", err: errors.New("Gemini API error: 503 overloaded")}
	reg, err := NewRegistry(gemini)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	_, _, attempts, err := RecognizeTrace(context.Background(), reg, "", []byte("x"), "image/png")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("期望 *ServiceError，实际 %T %v", err, err)
	}
	if se.Error() != "Gemini API error: 503 overloaded" {
		t.Fatalf("消息应原样透传，实际 %q", se.Error())
	}
	if se.Recognizer != "gemini" {
		t.Fatalf("期望 Recognizer=gemini，实际 %q", se.Recognizer)
	}
	if len(attempts) != 1 {
		t.Fatalf("期望 1 条 attempts，实际 %d", len(attempts))
	}
}

func TestRecognizeTrace_UnregisteredRequestedFallsBack(t *testing.T) {
	gemini := &stubRecognizer{name: "gemini", text: "ok"}
	reg, err := NewRegistry(gemini)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	text, used, attempts, err := RecognizeTrace(context.Background(), reg, "openai", []byte("x"), "image/png")
	if err != nil || used != "gemini" || text != "ok" {
		t.Fatalf("期望回退到 gemini，实际 used=%q err=%v", used, err)
	}
	if attempts[0].Stage != StageResolve {
		t.Fatalf("未注册的服务应记为 resolve 失败：%+v", attempts[0])
	}
}

func TestRecognizeTrace_CanceledStopsFallback(t *testing.T) {
	first := &stubRecognizer{name: "gemini", err: context.Canceled}
	second := &stubRecognizer{name: "openai", text: "ok"}
	reg, err := NewRegistry(first, second)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	_, _, _, err = RecognizeTrace(context.Background(), reg, "gemini", []byte("x"), "image/png")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望取消错误，实际 %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("取消后不应继续回退")
	}
}

func TestRecognizeTrace_NoRecognizerForMIME(t *testing.T) {
	reg, err := NewRegistry(&stubRecognizer{name: "openai", accept: imagesOnly})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	_, _, _, err = RecognizeTrace(context.Background(), reg, "", []byte("x"), "video/mp4")
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("期望 *ServiceError，实际 %v", err)
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&stubRecognizer{name: "gemini"}, &stubRecognizer{name: " Gemini "})
	if err == nil {
		t.Fatalf("期望重复注册报错")
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Media{
		"image/jpeg":               MediaImage,
		"Application/PDF":          MediaPDF,
		"audio/webm; codecs=opus":  MediaAudio,
		"video/mp4":                MediaVideo,
		"text/html; charset=utf-8": MediaDocument,
		"text/csv":                 MediaUnknown,
	}
	for in, want := range cases {
		if got := Classify(in); got != want {
			t.Fatalf("Classify(%q)=%q，期望 %q", in, got, want)
		}
	}
}
