package recognize

import (
	"context"
	"fmt"
)

const (
	StageResolve   = "resolve"
	StageRecognize = "recognize"
	StageOK        = "ok"
)

// Attempt 记录一次识别尝试（用于解释回退原因）。
type Attempt struct {
	Recognizer string
	Stage      string
	Err        error
}

// Recognize 按“requested -> 其余已注册服务（注册顺序）”尝试识别。
func Recognize(ctx context.Context, reg Registry, requested string, content []byte, mime string) (text string, used string, err error) {
	text, used, _, err = RecognizeTrace(ctx, reg, requested, content, mime)
	return text, used, err
}

// RecognizeTrace 与 Recognize 相同，但额外返回尝试链路。
//
// 不支持该 MIME 的服务直接跳过（不记入 attempts）；
// 调用方取消时立即停止，不再回退。
// 全部失败时返回最后一个 *ServiceError。
func RecognizeTrace(ctx context.Context, reg Registry, requested string, content []byte, mime string) (text string, used string, attempts []Attempt, err error) {
	order := fallbackOrder(reg, requested)

	var lastErr error
	for _, name := range order {
		r, ok := reg.Get(name)
		if !ok {
			lastErr = &ServiceError{Recognizer: name, Message: fmt.Sprintf("识别服务未配置：%q", name)}
			attempts = append(attempts, Attempt{Recognizer: name, Stage: StageResolve, Err: lastErr})
			continue
		}
		if !r.Accepts(mime) {
			continue
		}

		t, rerr := r.Recognize(ctx, content, mime)
		if rerr != nil {
			se := AsServiceError(name, rerr)
			attempts = append(attempts, Attempt{Recognizer: name, Stage: StageRecognize, Err: se})
			lastErr = se
			if ctx.Err() != nil || IsCanceled(rerr) {
				return "", "", attempts, lastErr
			}
			continue
		}

		attempts = append(attempts, Attempt{Recognizer: name, Stage: StageOK})
		return t, name, attempts, nil
	}
	if lastErr == nil {
		lastErr = &ServiceError{Message: fmt.Sprintf("没有可处理 %s 的识别服务", mime)}
	}
	return "", "", attempts, lastErr
}

func fallbackOrder(reg Registry, requested string) []string {
	requested = normName(requested)
	out := make([]string, 0, reg.Len()+1)
	if requested != "" {
		out = append(out, requested)
	}
	for _, name := range reg.Names() {
		if name != requested {
			out = append(out, name)
		}
	}
	return out
}
