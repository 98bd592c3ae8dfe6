package hocr

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/syun3032-tech/camera-verification-ai/internal/recognize"
)

// Recognizer 读取已经过 OCR 的 hOCR/HTML 文档（例如 tesseract 的 hocr 输出），
// 本地还原出按行排列的文本，不访问网络。
type Recognizer struct {
	// MinConfidence 过滤置信度（x_wconf）低于该值的单词；0 表示不过滤。
	MinConfidence int
}

func (Recognizer) Name() string { return "hocr" }

func (Recognizer) Accepts(mime string) bool {
	return recognize.Classify(mime) == recognize.MediaDocument
}

func (r Recognizer) Recognize(ctx context.Context, content []byte, mime string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(content) == 0 {
		return "", errors.New("hOCR 文档为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	var lines []string
	doc.Find(".ocr_line, .ocrx_line").Each(func(_ int, line *goquery.Selection) {
		var words []string
		line.Find(".ocrx_word").Each(func(_ int, w *goquery.Selection) {
			if r.MinConfidence > 0 && wordConfidence(w) < r.MinConfidence {
				return
			}
			if t := normSpace(w.Text()); t != "" {
				words = append(words, t)
			}
		})
		if len(words) == 0 && line.Find(".ocrx_word").Length() == 0 {
			if t := normSpace(line.Text()); t != "" {
				words = append(words, t)
			}
		}
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
		}
	})

	// 不是 hOCR（或没有行结构）时退化为正文文本。
	if len(lines) == 0 {
		doc.Find("script, style").Remove()
		for _, l := range strings.Split(doc.Find("body").Text(), "\n") {
			if t := normSpace(l); t != "" {
				lines = append(lines, t)
			}
		}
	}
	if len(lines) == 0 {
		return "", errors.New("hOCR 文档中没有可读文本")
	}
	return strings.Join(lines, "\n"), nil
}

// wordConfidence 从 title="bbox 1 2 3 4; x_wconf 93" 中读出置信度；缺失时视为 100。
func wordConfidence(s *goquery.Selection) int {
	title, ok := s.Attr("title")
	if !ok {
		return 100
	}
	for _, part := range strings.Split(title, ";") {
		fields := strings.Fields(part)
		if len(fields) == 2 && fields[0] == "x_wconf" {
			if n, err := strconv.Atoi(fields[1]); err == nil {
				return n
			}
		}
	}
	return 100
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
