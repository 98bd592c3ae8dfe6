package recognize

import (
	"context"
	"strings"
)

// Recognizer 把二进制媒体转换为自由文本（OCR 或转写）。
//
// 约束：
// - Recognize 不做缓存、不做重试（缓存由 infra/cache、重试由 infra/httpx 统一实现）
// - 失败时返回的错误消息会原样展示给操作人员，应当可读
// - Accepts 只看 MIME，不读内容
type Recognizer interface {
	Name() string
	Accepts(mime string) bool
	Recognize(ctx context.Context, content []byte, mime string) (string, error)
}

// Media 按 MIME 前缀归类，供各实现判断是否支持以及选择提示词。
type Media string

const (
	MediaImage    Media = "image"
	MediaPDF      Media = "pdf"
	MediaAudio    Media = "audio"
	MediaVideo    Media = "video"
	MediaDocument Media = "document"
	MediaUnknown  Media = ""
)

func Classify(mime string) Media {
	mime = BaseMIME(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage
	case mime == "application/pdf":
		return MediaPDF
	case strings.HasPrefix(mime, "audio/"):
		return MediaAudio
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo
	case mime == "text/html" || mime == "application/xhtml+xml" || mime == "text/vnd.hocr+html":
		return MediaDocument
	default:
		return MediaUnknown
	}
}
