package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicReplace_OverwritesAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	for _, content := range []string{"first", "second"} {
		if err := WriteFileAtomicReplace(dir, "report.json", []byte(content)); err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "second" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, dir)
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error { return os.ErrPermission }
	defer func() { renameFunc = old }()

	if err := WriteFileAtomicReplace(dir, "a.txt", []byte("hello")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("失败后目录应为空，实际：%v", entries)
	}
}

func TestWriteFileAtomicNoOverwrite(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFileAtomicNoOverwrite(dir, "a.csv", []byte("1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomicNoOverwrite(dir, "a.csv", []byte("2")); !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 os.ErrExist，实际：%v", err)
	}

	if err := os.Mkdir(filepath.Join(dir, "d.csv"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := WriteFileAtomicNoOverwrite(dir, "d.csv", []byte("x")); !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestWriteFileAtomicUnique_SuffixesOnConflict(t *testing.T) {
	dir := t.TempDir()
	name := "unverified_2026-10-15.csv"

	want := []string{name, "unverified_2026-10-15_2.csv", "unverified_2026-10-15_3.csv"}
	for i, w := range want {
		got, err := WriteFileAtomicUnique(dir, name, []byte{byte('a' + i)})
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if got != w {
			t.Fatalf("第 %d 次写入期望 %q，实际 %q", i+1, w, got)
		}
	}
	b, _ := os.ReadFile(filepath.Join(dir, name))
	if string(b) != "a" {
		t.Fatalf("已有文件不应被覆盖：%q", b)
	}
	assertNoTemp(t, dir)
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
