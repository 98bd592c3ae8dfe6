package domain

// Record 是数据集中的一行：表头名 -> 单元格值。
type Record map[string]string

// Dataset 是一份已载入的参照表，以文件名为唯一键。
//
// 不变量：
// - Headers 的顺序即原始列顺序（定位型识别列规则依赖它）
// - Headers 内不存在重复名称（解析阶段已去重）
type Dataset struct {
	Name    string
	Headers []string
	Records []Record
}

// HeaderIndex 返回表头在 Headers 中的位置；不存在时返回 -1。
func (d Dataset) HeaderIndex(name string) int {
	for i, h := range d.Headers {
		if h == name {
			return i
		}
	}
	return -1
}
