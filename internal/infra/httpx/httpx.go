package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 120 * time.Second
	defaultRetryMax = 2
	defaultBackoff  = 500 * time.Millisecond
)

// Transport 把“代理 + 限速 + 有界重试”固化为统一策略，
// 识别与摘要服务的 SDK 只负责组装请求。
type Transport struct {
	Base http.RoundTripper

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int
	// Backoff 是第一次重试前的等待时间，之后每次翻倍；0 表示不等待。
	Backoff time.Duration
	// Limiter 非空时，每次尝试（含重试）前都要先取得令牌。
	Limiter *rate.Limiter
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：无 body，或 body 可以通过 GetBody 重新获取。
	canRetry := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	ctx := req.Context()
	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 0; attempt <= max; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, t.Backoff<<(attempt-1)); err != nil {
				return nil, lastErrOr(lastErr, err)
			}
		}
		if t.Limiter != nil {
			if err := t.Limiter.Wait(ctx); err != nil {
				return nil, lastErrOr(lastErr, err)
			}
		}

		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}

		resp, lastErr = t.Base.RoundTrip(r)
		if lastErr == nil {
			if !retryableStatus(resp.StatusCode) || attempt == max {
				return resp, nil
			}
			// 丢弃本次响应，准备重试。
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode}
			continue
		}
		if ctx.Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// StatusError 只在内部重试时使用：最后一次尝试的响应会原样返回给 SDK。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string { return "HTTP " + http.StatusText(e.StatusCode) }

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func lastErrOr(last, err error) error {
	if last != nil {
		return last
	}
	return err
}

type Options struct {
	// ProxyURL 非空时所有请求走该代理。
	ProxyURL string
	// RequestsPerMinute > 0 时启用限速（突发为 1）。
	RequestsPerMinute int
	Timeout           time.Duration
	RetryMax          *int
}

// NewAPIClient 构造调用识别/摘要服务的 HTTP client。
//
// 规则：
// - ProxyURL 非空：必须走代理
// - 有界重试（网络错误与 429/502/503/504）+ 指数退避 + 总超时
func NewAPIClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 90 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy_url 必须包含协议与主机，例如 http://127.0.0.1:7890")
		}
		base.Proxy = http.ProxyURL(u)
	}

	tr := &Transport{
		Base:     base,
		RetryMax: defaultRetryMax,
		Backoff:  defaultBackoff,
	}
	if opts.RetryMax != nil {
		tr.RetryMax = *opts.RetryMax
	}
	if opts.RequestsPerMinute > 0 {
		tr.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}
