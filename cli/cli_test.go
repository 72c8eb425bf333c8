package cli

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestShareLinkFallsBackToPrompt(t *testing.T) {
	orig := writeClipboard
	t.Cleanup(func() { writeClipboard = orig })

	var copied string
	writeClipboard = func(s string) error { copied = s; return nil }
	var buf bytes.Buffer
	shareLink(&buf, "http://x/resource/1")
	if copied != "http://x/resource/1" || buf.String() != "链接已复制到剪贴板\n" {
		t.Errorf("copied=%q out=%q", copied, buf.String())
	}

	writeClipboard = func(string) error { return errors.New("no xclip") }
	buf.Reset()
	shareLink(&buf, "http://x/resource/1")
	if buf.String() != "复制链接: http://x/resource/1\n" {
		t.Errorf("fallback out = %q", buf.String())
	}
}

func TestShareURL(t *testing.T) {
	if got := shareURL("https://files.example/", models.Resource{ID: "42"}); got != "https://files.example/resource/42" {
		t.Errorf("shareURL = %q", got)
	}
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer
	if err := renderList(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "没有找到资源\n" {
		t.Errorf("empty = %q", buf.String())
	}

	buf.Reset()
	cards := catalog.NewCards(catalog.SeedResources(time.Now()), nil)
	if err := renderList(&buf, cards); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("table = %q", buf.String())
	}
	if !strings.Contains(lines[1], "软件") || !strings.Contains(lines[2], "450 MB") {
		t.Errorf("rows = %q", lines[1:])
	}
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, catalog.ComputeStats(catalog.SeedResources(time.Now()), 10))
	want := "文件总数: 2\n总大小: 2.74 GB\n存储使用: 27.4% / 10 GB\n"
	if buf.String() != want {
		t.Errorf("stats = %q", buf.String())
	}
}

func TestFilesFromPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := filesFromPaths([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if files[0].Name != "notes.pdf" || files[0].Size != 8 || files[0].Type != "application/pdf" {
		t.Errorf("file = %+v", files[0])
	}
	if _, err := filesFromPaths([]string{dir}); err == nil {
		t.Error("expected error for a directory")
	}
	if _, err := filesFromPaths([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for a missing file")
	}
}

// Every command bootstraps its own memory store, so each one starts from the seeds.
func TestCommandsWithMemoryStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "none.json"))
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("BLOB_BACKEND", "local")
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("PROGRESS_TICK_MS", "1")
	t.Setenv("LOG_LEVEL", "error")

	orig := writeClipboard
	t.Cleanup(func() { writeClipboard = orig })
	writeClipboard = func(string) error { return errors.New("headless") }

	t.Run("list", func(t *testing.T) {
		out, err := run(t, "list", "--category", "video")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "React框架入门教程.mp4") || strings.Contains(out, "Photoshop") {
			t.Errorf("out = %q", out)
		}
		if _, err := run(t, "list", "--sort", "popular"); !errors.Is(err, catalog.ErrInvalidFilter) {
			t.Errorf("unknown sort err = %v", err)
		}
	})

	t.Run("download", func(t *testing.T) {
		out, err := run(t, "download", "1")
		if err != nil || !strings.Contains(out, "开始下载: Photoshop 2023 安装包.zip") {
			t.Errorf("out=%q err=%v", out, err)
		}
		if _, err := run(t, "download", "missing"); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("missing id err = %v", err)
		}
	})

	t.Run("share", func(t *testing.T) {
		out, err := run(t, "share", "2")
		if err != nil || out != "复制链接: http://localhost:8080/resource/2\n" {
			t.Errorf("out=%q err=%v", out, err)
		}
	})

	t.Run("theme", func(t *testing.T) {
		out, err := run(t, "theme", "toggle")
		if err != nil || out != "dark\n" {
			t.Errorf("out=%q err=%v", out, err)
		}
		if _, err := run(t, "theme", "sepia"); !errors.Is(err, catalog.ErrInvalidTheme) {
			t.Errorf("invalid theme err = %v", err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		out, err := run(t, "stats")
		if err != nil || !strings.HasPrefix(out, "文件总数: 2\n") {
			t.Errorf("out=%q err=%v", out, err)
		}
	})

	t.Run("upload", func(t *testing.T) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))); err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, "shot.png")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
		out, err := run(t, "upload", path, "--tags", "demo")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "上传完成！") || !strings.Contains(out, "shot.png") || !strings.Contains(out, "图片") {
			t.Errorf("out = %q", out)
		}
		stored, _ := filepath.Glob(filepath.Join(dir, "uploads", "*", "*", "*", "*_shot.png"))
		if len(stored) != 1 {
			t.Errorf("stored blobs = %v", stored)
		}
	})
}
