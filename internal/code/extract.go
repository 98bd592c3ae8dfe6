package code

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

// patterns 按“越具体越靠前”排列；Extract 只取第一条命中的规则，
// 同一规则内也只取文本中最靠前的一处，不尝试在多个候选之间取舍。
var patterns = []*regexp.Regexp{
	// 字母数字段 + 可选分隔符 + 数字段，例如 AAZH20-1002549、HNT32 -117910。
	regexp.MustCompile(`(?i)([A-Z0-9]{4,6}\s*-?\s*[0-9]{4,10})`),
	// 更长的通用形式：尾段可以混有字母，例如 ZVW30-12A4567。
	regexp.MustCompile(`(?i)([A-Z0-9]{2,10}-[A-Z0-9]{5,12})`),
	// 带标签的形式。
	regexp.MustCompile(`(?i)車台番号[:：\s]*([A-Z0-9-]{6,})`),
	regexp.MustCompile(`(?i)IDENTIFIER[:：\s]*([A-Z0-9-]{6,})`),
	regexp.MustCompile(`(?i)CHASSIS(?:\s*NO\.?)?[:：\s]*([A-Z0-9-]{6,})`),
	regexp.MustCompile(`(?i)VIN[:：\s]*([A-Z0-9-]{6,})`),
}

// Extract 从识别服务返回的自由文本中提取候选 Identifier。
//
// 先把全角字符折叠为半角（OCR 常输出 ＡＡＺＨ２０－１００２５４９），
// 再按顺序尝试各规则；命中后返回规范化结果。
// 没有任何规则命中时返回 ok=false，这不是错误。
func Extract(text string) (id domain.Identifier, ok bool) {
	text = strings.TrimSpace(width.Fold.String(text))
	if text == "" {
		return "", false
	}
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if id := domain.Normalize(m[1]); id != "" {
			return id, true
		}
	}
	return "", false
}

// Truncate 截取前 n 个字符（按 rune 计），用于在提示中展示识别原文。
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
