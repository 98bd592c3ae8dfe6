package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/syun3032-tech/camera-verification-ai/internal/dataset"
	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

// mimeByExt 固定扩展名到 MIME 的映射，避免依赖系统的 mime.types（不同平台结果不同）。
var mimeByExt = map[string]string{
	".csv": "text/csv",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".pdf":  "application/pdf",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",

	".html": "text/html",
	".htm":  "text/html",
	".hocr": "text/vnd.hocr+html",
}

// Classify 按扩展名判断输入类型；不支持的扩展名返回 ok=false。
func Classify(name string) (kind domain.InputKind, mime string, ok bool) {
	ext := strings.ToLower(filepath.Ext(name))
	mime, ok = mimeByExt[ext]
	if !ok {
		return "", "", false
	}
	switch {
	case dataset.LooksLikeDataset(name, mime):
		return domain.InputDataset, mime, true
	case strings.HasPrefix(mime, "text/"):
		return domain.InputDocument, mime, true
	default:
		return domain.InputMedia, mime, true
	}
}

// ScanInputs 扫描 root 下的数据集与待识别文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 永久排除：<root>/out/ 与 <root>/cache/
// - excludeDirs：来自配置文件，均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
// - 结果按 RelPath 排序
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanInputs(root string, excludeDirs []string) ([]domain.InputFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.InputFile, 0, 64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			// 隐藏目录（.git 等）不是输入。
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			return nil
		}
		kind, mime, ok := Classify(name)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.InputFile{
			AbsPath: path,
			RelPath: rel,
			Name:    name,
			Ext:     strings.ToLower(filepath.Ext(name)),
			MIME:    mime,
			Kind:    kind,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Split 把扫描结果分成数据集与待识别两组，各自保持原有顺序。
func Split(files []domain.InputFile) (datasets, captures []domain.InputFile) {
	for _, f := range files {
		if f.Kind == domain.InputDataset {
			datasets = append(datasets, f)
		} else {
			captures = append(captures, f)
		}
	}
	return datasets, captures
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, 2+len(excludeDirs))
	excluded = append(excluded, filepath.Join(root, "out"), filepath.Join(root, "cache"))

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Join(root, x))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	sep := string(filepath.Separator)
	for _, base := range excluded {
		if path == base || strings.HasPrefix(path, base+sep) {
			return true
		}
	}
	return false
}
