package domain

type InputKind string

const (
	// InputDataset 是分隔符表格文本（按后缀 .csv 或 MIME 含 csv 判定）。
	InputDataset InputKind = "dataset"
	// InputMedia 是需要外部识别服务处理的图片/PDF/音视频。
	InputMedia InputKind = "media"
	// InputDocument 是已经过 OCR 的 hOCR/HTML 文档，本地即可读出文本。
	InputDocument InputKind = "document"
)

// InputFile 描述一次扫描得到的输入文件（扫描阶段只做 stat，不读内容）。
type InputFile struct {
	AbsPath string
	RelPath string
	Name    string // 带扩展名的文件名，也是数据集的键
	Ext     string // 小写，例如 ".csv"
	MIME    string
	Kind    InputKind
	Size    int64
}
