package recognize

import "strings"

// OCRPrompt 用于图片/PDF：要求按“项目: 值”逐行输出，车台番号放在第一行。
// 提示词面向日本的车辆书类，保持日语。
const OCRPrompt = `この書類の画像から、車台番号を含む情報を抽出してください。

【最重要】車台番号
「車台番号」欄の番号を正確に読み取ってください。
例: AAZH20-1002549

【出力形式】
必ず以下の形式で、1 行に 1 項目ずつ出力してください：

車台番号: AAZH20-1002549
登録番号: 品川 500 あ 12-34
車名: トヨタ
型式: 6AA-AAZH20
初度登録年月: 2020年1月
所有者名: 株式会社○○
交付年月日: 2024年10月1日

【注意事項】
- 車台番号は絶対に正確に読み取ってください
- 車台番号が見つからない場合は「車台番号: 不明」と記載してください
- 読み取れない項目は「不明」と記載してください
- ハイフンや空白も正確に読み取ってください`

// TranscriptionPrompt 用于音频/视频：按话者分段转写。
const TranscriptionPrompt = `この音声を日本語で文字起こししてください。

【出力形式】
**話者A:**
[話者Aの発言内容]

**話者B:**
[話者Bの発言内容]

【注意事項】
- 声の特徴から 2〜3 人の話者に分け、同じ人物は同じ話者として統一してください
- 時系列順に記録してください
- 句読点を適切に入れて、自然な日本語にしてください`

// PromptFor 按媒体类型选择提示词；不支持的类型返回空串。
func PromptFor(mime string) string {
	switch Classify(mime) {
	case MediaImage, MediaPDF:
		return OCRPrompt
	case MediaAudio, MediaVideo:
		return TranscriptionPrompt
	default:
		return ""
	}
}

// BaseMIME 去掉参数部分（例如 "audio/webm; codecs=opus" -> "audio/webm"）。
func BaseMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
