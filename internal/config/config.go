package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

// FileName 是配置文件的固定文件名。
const FileName = "camverify.toml"

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 camverify.toml。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = domain.ErrCodeConfigMissingPath
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	// DefaultProvider 是 provider 的最终默认值（当 CLI 与配置文件都未指定时）。
	DefaultProvider = ProviderGemini
	// DefaultConcurrency 是识别并发的内置默认值。
	DefaultConcurrency = 4
	MaxConcurrency     = 16

	DefaultColumnIndex   = 8
	DefaultMaxImageBytes = 4_718_592
	DefaultExportPrefix  = "unverified"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
)

// DefaultKeywords 与 match.DefaultKeywords 保持一致；config 不依赖 match 包。
var DefaultKeywords = []string{"車台番号", "IDENTIFIER", "CHASSIS", "VIN"}

// CLIArgs 只包含 CLI 暴露的入口（path/provider/apply），并保留“是否显式指定”的信息。
// 例如 --apply=false 必须能覆盖 apply = true。
type CLIArgs struct {
	Path string

	// ConfigFile 非空时直接读取该文件（必须存在），跳过发现规则。
	ConfigFile string

	Provider    string
	ProviderSet bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 camverify.toml 的解析结构。
type FileConfig struct {
	Path              string   `toml:"path"`
	Provider          string   `toml:"provider"`
	Apply             *bool    `toml:"apply"`
	Concurrency       int      `toml:"concurrency"`
	ProxyURL          string   `toml:"proxy_url"`
	ExcludeDirs       []string `toml:"exclude_dirs"`
	RequestsPerMinute int      `toml:"requests_per_minute"`

	Matching      MatchingConfig      `toml:"matching"`
	Recognition   RecognitionConfig   `toml:"recognition"`
	Summarization SummarizationConfig `toml:"summarization"`
	Export        ExportConfig        `toml:"export"`
	Log           LogConfig           `toml:"log"`
}

type MatchingConfig struct {
	// IdentifierColumnIndex 为 nil 时取默认 8；负数表示关闭位置规则。
	IdentifierColumnIndex *int     `toml:"identifier_column_index"`
	IdentifierKeywords    []string `toml:"identifier_keywords"`
}

type RecognitionConfig struct {
	GeminiModel       string `toml:"gemini_model"`
	OpenAIModel       string `toml:"openai_model"`
	MaxImageBytes     int    `toml:"max_image_bytes"`
	HOCRMinConfidence int    `toml:"hocr_min_confidence"`
}

type SummarizationConfig struct {
	AnthropicModel string `toml:"anthropic_model"`
	MaxTokens      int    `toml:"max_tokens"`
}

type ExportConfig struct {
	FilenamePrefix string `toml:"filename_prefix"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	Provider string
	Apply    bool

	Concurrency       int
	ProxyURL          string
	ExcludeDirs       []string
	RequestsPerMinute int

	ColumnIndex int
	Keywords    []string

	GeminiModel       string
	OpenAIModel       string
	MaxImageBytes     int
	HOCRMinConfidence int

	AnthropicModel string
	MaxTokens      int

	ExportPrefix string

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 0) CLI 提供 --config：读取该文件（必选），path 仍按 CLI > 文件 的顺序取
// 1) CLI 提供 path：尝试读取 <path>/camverify.toml（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/camverify.toml（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：
// - path：CLI path > config path
// - provider：CLI > config > 默认 gemini
// - apply：CLI --apply/--apply=false > config > 默认 false
// - 其他字段：仅由 config 控制
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.ConfigFile) != "" {
		cfgPath := absCleanFrom(cwdAbs, cli.ConfigFile)
		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		var absPath string
		switch {
		case strings.TrimSpace(cli.Path) != "":
			absPath = absCleanFrom(cwdAbs, cli.Path)
		case strings.TrimSpace(fc.Path) != "":
			// 文件里的相对 path 以配置文件所在目录为基准。
			absPath = absCleanFrom(filepath.Dir(cfgPath), fc.Path)
		default:
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	if strings.TrimSpace(cli.Path) != "" {
		// CLI 给了 path：配置文件可选，位置固定在 <path>/camverify.toml。
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, FileName)

		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	return merge(absCleanFrom(cwdAbs, fc.Path), cli, fc, cfgPath)
}

// Defaults 返回不读取任何文件时的配置（extract/summarize 等子命令使用）。
func Defaults() EffectiveConfig {
	eff, _ := merge("", CLIArgs{}, FileConfig{}, "")
	return eff
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	provider := DefaultProvider
	if cli.ProviderSet {
		provider = cli.Provider
	} else if strings.TrimSpace(fc.Provider) != "" {
		provider = fc.Provider
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := validateProvider(provider); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 超出 [1, 16] 截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	proxyURL := strings.TrimSpace(fc.ProxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return EffectiveConfig{}, invalid("proxy_url 无效：%w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid("proxy_url 缺少 scheme 或 host：%q", proxyURL)
		}
	}

	if fc.RequestsPerMinute < 0 {
		return EffectiveConfig{}, invalid("requests_per_minute 不能为负数：%d", fc.RequestsPerMinute)
	}

	columnIndex := DefaultColumnIndex
	if fc.Matching.IdentifierColumnIndex != nil {
		columnIndex = *fc.Matching.IdentifierColumnIndex
	}
	keywords := DefaultKeywords
	if len(fc.Matching.IdentifierKeywords) > 0 {
		keywords = nil
		for _, k := range fc.Matching.IdentifierKeywords {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return EffectiveConfig{}, invalid("matching.identifier_keywords 不能全为空")
		}
	}

	maxImageBytes := fc.Recognition.MaxImageBytes
	if maxImageBytes == 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	if maxImageBytes < 0 {
		return EffectiveConfig{}, invalid("recognition.max_image_bytes 不能为负数：%d", maxImageBytes)
	}
	if c := fc.Recognition.HOCRMinConfidence; c < 0 || c > 100 {
		return EffectiveConfig{}, invalid("recognition.hocr_min_confidence 必须在 [0, 100]：%d", c)
	}
	if fc.Summarization.MaxTokens < 0 {
		return EffectiveConfig{}, invalid("summarization.max_tokens 不能为负数：%d", fc.Summarization.MaxTokens)
	}

	prefix := strings.TrimSpace(fc.Export.FilenamePrefix)
	if prefix == "" {
		prefix = DefaultExportPrefix
	}
	if strings.ContainsAny(prefix, `/\`) {
		return EffectiveConfig{}, invalid("export.filename_prefix 不能包含路径分隔符：%q", prefix)
	}

	level := strings.ToLower(strings.TrimSpace(fc.Log.Level))
	if level == "" {
		level = DefaultLogLevel
	}
	format := strings.ToLower(strings.TrimSpace(fc.Log.Format))
	if format == "" {
		format = DefaultLogFormat
	}
	if format != "console" && format != "json" {
		return EffectiveConfig{}, invalid("log.format 只能是 console 或 json，实际是 %q", format)
	}

	return EffectiveConfig{
		Path:              absPath,
		ConfigPath:        cfgPath,
		Provider:          provider,
		Apply:             apply,
		Concurrency:       concurrency,
		ProxyURL:          proxyURL,
		ExcludeDirs:       append([]string(nil), fc.ExcludeDirs...),
		RequestsPerMinute: fc.RequestsPerMinute,
		ColumnIndex:       columnIndex,
		Keywords:          append([]string(nil), keywords...),
		GeminiModel:       strings.TrimSpace(fc.Recognition.GeminiModel),
		OpenAIModel:       strings.TrimSpace(fc.Recognition.OpenAIModel),
		MaxImageBytes:     maxImageBytes,
		HOCRMinConfidence: fc.Recognition.HOCRMinConfidence,
		AnthropicModel:    strings.TrimSpace(fc.Summarization.AnthropicModel),
		MaxTokens:         fc.Summarization.MaxTokens,
		ExportPrefix:      prefix,
		LogLevel:          level,
		LogFormat:         format,
	}, nil
}

func validateProvider(p string) error {
	switch p {
	case ProviderGemini, ProviderOpenAI:
		return nil
	case "":
		return fmt.Errorf("provider 不能为空")
	default:
		return fmt.Errorf("provider 只能是 gemini 或 openai，实际是 %q", p)
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）；未知字段视为错误。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
