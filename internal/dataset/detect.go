package dataset

import "strings"

// LooksLikeDataset 按文件名后缀或声明的 MIME 判断输入是否为分隔符表格文本。
func LooksLikeDataset(name, mime string) bool {
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return true
	}
	return strings.Contains(strings.ToLower(mime), "csv")
}
