package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/syun3032-tech/camera-verification-ai/internal/infra/fsx"
)

// Store 提供 <path>/cache/ 下的识别结果缓存读写。
// 同一份媒体内容只调用一次外部识别服务（按内容 sha256 索引）。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - apply：允许写（ReadOnly=false）
type Store struct {
	Root     string // <path>（扫描根目录）
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// Key 返回内容的缓存键（sha256 十六进制）。
func Key(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// TranscriptPath 返回识别文本缓存的绝对路径：
// <root>/cache/transcripts/<recognizer>/<key>.txt
func (s Store) TranscriptPath(recognizer, key string) (string, error) {
	dir, name, err := s.transcriptLoc(recognizer, key)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (s Store) ReadTranscript(recognizer, key string) (string, bool, error) {
	path, err := s.TranscriptPath(recognizer, key)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (s Store) WriteTranscript(recognizer, key, text string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	dir, name, err := s.transcriptLoc(recognizer, key)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, name, []byte(text))
}

func (s Store) transcriptLoc(recognizer, key string) (dir, name string, err error) {
	r, err := cleanName(recognizer)
	if err != nil {
		return "", "", err
	}
	if !keyRE.MatchString(key) {
		return "", "", fmt.Errorf("非法缓存键：%q", key)
	}
	return filepath.Join(s.Root, "cache", "transcripts", r), key + ".txt", nil
}

var (
	nameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	keyRE  = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

func cleanName(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("recognizer 不能为空")
	}
	// 最小约束：避免路径穿越。
	if !nameRE.MatchString(p) {
		return "", fmt.Errorf("非法 recognizer：%q", p)
	}
	return p, nil
}
