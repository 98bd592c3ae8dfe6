package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ConfigMissingPath(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`provider = "openai"`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingPath {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingPath, err, Code(err))
	}
}

func TestLoadEffective_ApplyCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \"captures\"\napply = true\n"))

	eff, err := LoadEffective(cwd, CLIArgs{
		Apply:    false,
		ApplySet: true, // --apply=false
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Apply != false {
		t.Fatalf("期望 apply=false，实际=%v", eff.Apply)
	}

	wantPath := filepath.Join(cwd, "captures")
	if eff.Path != wantPath {
		t.Fatalf("期望 path=%q，实际=%q", wantPath, eff.Path)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("ConfigPath 不正确：%q", eff.ConfigPath)
	}
}

func TestLoadEffective_ProviderMergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \"p\"\nprovider = \"openai\"\n"))

	// CLI 未指定 provider，则应使用配置文件中的 openai。
	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Provider != ProviderOpenAI {
		t.Fatalf("期望 provider=openai，实际=%q", eff.Provider)
	}

	// CLI 显式指定，则覆盖配置文件。
	eff2, err := LoadEffective(cwd, CLIArgs{
		Provider:    "gemini",
		ProviderSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Provider != ProviderGemini {
		t.Fatalf("期望 provider=gemini，实际=%q", eff2.Provider)
	}
}

func TestLoadEffective_CLIPath_ConfigOptionalDefaults(t *testing.T) {
	cwd := t.TempDir()
	root := filepath.Join(cwd, "root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	eff, err := LoadEffective(cwd, CLIArgs{Path: root})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != root {
		t.Fatalf("期望 path=%q，实际=%q", root, eff.Path)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("未读取配置文件时 ConfigPath 应为空，实际=%q", eff.ConfigPath)
	}
	if eff.Provider != DefaultProvider {
		t.Fatalf("期望 provider=%q，实际=%q", DefaultProvider, eff.Provider)
	}
	if eff.Concurrency != DefaultConcurrency {
		t.Fatalf("期望 concurrency=%d，实际=%d", DefaultConcurrency, eff.Concurrency)
	}
	if eff.ColumnIndex != DefaultColumnIndex {
		t.Fatalf("期望 column index=%d，实际=%d", DefaultColumnIndex, eff.ColumnIndex)
	}
	if !reflect.DeepEqual(eff.Keywords, DefaultKeywords) {
		t.Fatalf("期望默认关键字，实际=%v", eff.Keywords)
	}
	if eff.MaxImageBytes != DefaultMaxImageBytes || eff.ExportPrefix != DefaultExportPrefix {
		t.Fatalf("默认值不正确：%+v", eff)
	}
	if eff.LogLevel != "info" || eff.LogFormat != "console" {
		t.Fatalf("日志默认值不正确：level=%q format=%q", eff.LogLevel, eff.LogFormat)
	}
}

func TestLoadEffective_FullFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
path = "data"
concurrency = 64
proxy_url = "http://127.0.0.1:7890"
exclude_dirs = ["archive"]
requests_per_minute = 30

[matching]
identifier_column_index = -1
identifier_keywords = ["VIN", "  ", "フレーム番号"]

[recognition]
gemini_model = "gemini-1.5-pro"
max_image_bytes = 1000000
hocr_min_confidence = 60

[summarization]
anthropic_model = "claude-3-haiku-20240307"
max_tokens = 2048

[export]
filename_prefix = "未認証データ"

[log]
level = "DEBUG"
format = "json"
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != MaxConcurrency {
		t.Fatalf("concurrency 应截断为 %d，实际=%d", MaxConcurrency, eff.Concurrency)
	}
	if eff.ColumnIndex != -1 {
		t.Fatalf("负数列位置应原样保留，实际=%d", eff.ColumnIndex)
	}
	if !reflect.DeepEqual(eff.Keywords, []string{"VIN", "フレーム番号"}) {
		t.Fatalf("关键字应去掉空白项，实际=%v", eff.Keywords)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" || eff.RequestsPerMinute != 30 {
		t.Fatalf("网络配置不正确：%+v", eff)
	}
	if !reflect.DeepEqual(eff.ExcludeDirs, []string{"archive"}) {
		t.Fatalf("exclude_dirs 不正确：%v", eff.ExcludeDirs)
	}
	if eff.GeminiModel != "gemini-1.5-pro" || eff.MaxImageBytes != 1000000 || eff.HOCRMinConfidence != 60 {
		t.Fatalf("recognition 配置不正确：%+v", eff)
	}
	if eff.AnthropicModel != "claude-3-haiku-20240307" || eff.MaxTokens != 2048 {
		t.Fatalf("summarization 配置不正确：%+v", eff)
	}
	if eff.ExportPrefix != "未認証データ" {
		t.Fatalf("export 前缀不正确：%q", eff.ExportPrefix)
	}
	if eff.LogLevel != "debug" || eff.LogFormat != "json" {
		t.Fatalf("log 配置不正确：level=%q format=%q", eff.LogLevel, eff.LogFormat)
	}
}

func TestLoadEffective_ExplicitConfigFile(t *testing.T) {
	cwd := t.TempDir()
	cfgDir := filepath.Join(cwd, "etc")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	cfg := filepath.Join(cfgDir, "site.toml")
	writeFile(t, cfg, []byte(`path = "../captures"`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigFile: cfg})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if want := filepath.Join(cwd, "captures"); eff.Path != want {
		t.Fatalf("相对 path 应以配置文件目录为基准：期望 %q，实际 %q", want, eff.Path)
	}

	_, err = LoadEffective(cwd, CLIArgs{ConfigFile: filepath.Join(cwd, "missing.toml")})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeNotFound, err)
	}
}

func TestLoadEffective_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"provider":      "path = \"p\"\nprovider = \"nope\"\n",
		"proxy":         "path = \"p\"\nproxy_url = \"http://[::1\"\n",
		"proxy_no_host": "path = \"p\"\nproxy_url = \"127.0.0.1:7890\"\n",
		"rpm":           "path = \"p\"\nrequests_per_minute = -1\n",
		"keywords":      "path = \"p\"\n[matching]\nidentifier_keywords = [\" \"]\n",
		"confidence":    "path = \"p\"\n[recognition]\nhocr_min_confidence = 101\n",
		"prefix":        "path = \"p\"\n[export]\nfilename_prefix = \"a/b\"\n",
		"log_format":    "path = \"p\"\n[log]\nformat = \"xml\"\n",
		"unknown_field": "path = \"p\"\nprovidr = \"gemini\"\n",
		"syntax":        "path = ",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(body))

			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_CLIPath_InvalidConfig(t *testing.T) {
	cwd := t.TempDir()
	root := filepath.Join(cwd, "root")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(root, FileName), []byte(`[matching`))

	_, err := LoadEffective(cwd, CLIArgs{Path: root})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Provider != DefaultProvider || d.Concurrency != DefaultConcurrency || d.ExportPrefix != DefaultExportPrefix {
		t.Fatalf("Defaults 不正确：%+v", d)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
