package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/expliyh/VideoTitler/internal/domain"
)

func TestVideos_NaturalOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"v2.mp4", "v10.mp4", "v1.mp4"} {
		touch(t, filepath.Join(root, name))
	}

	got, err := Videos(root, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	want := []string{"v1.mp4", "v2.mp4", "v10.mp4"}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 个文件，实际 %d", len(want), len(got))
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Fatalf("第 %d 个期望 %q，实际 %q", i, want[i], filepath.Base(got[i]))
		}
	}
}

func TestVideos_ExtCaseInsensitiveAndFiltered(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "A.MP4"))
	touch(t, filepath.Join(root, "b.WebM"))
	touch(t, filepath.Join(root, "c.txt"))
	touch(t, filepath.Join(root, "d.mp4.bak"))

	got, err := Videos(root, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 个视频文件，实际 %d：%v", len(got), got)
	}
}

func TestVideos_NonRecursiveSkipsSubdirs(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "top.mp4"))
	touch(t, filepath.Join(root, "sub", "inner.mp4"))

	got, err := Videos(root, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "top.mp4" {
		t.Fatalf("期望只有 top.mp4，实际 %v", got)
	}
}

func TestVideos_Recursive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "top.mp4"))
	touch(t, filepath.Join(root, "sub", "inner.mkv"))

	got, err := Videos(root, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 个视频文件，实际 %d：%v", len(got), got)
	}
}

func TestVideos_MissingRootIsIOError(t *testing.T) {
	_, err := Videos(filepath.Join(t.TempDir(), "不存在"), false)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if kind := domain.ErrKind(err); kind != domain.ErrKindIOFailed {
		t.Fatalf("期望 kind=%q，实际=%q", domain.ErrKindIOFailed, kind)
	}
}

func TestNaturalLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"v1.mp4", "v2.mp4", true},
		{"v2.mp4", "v10.mp4", true},
		{"v10.mp4", "v2.mp4", false},
		{"a.mp4", "B.mp4", true},     // 大小写不敏感
		{"v01.mp4", "v1.mp4", false}, // 数值相等：继续比较后续片段，前缀一致则等长
		{"v", "v1", true},            // 前缀一致时片段少者在前
		{"第1集.mp4", "第10集.mp4", true},
		{"999999999999999999999.mp4", "1000000000000000000000.mp4", true}, // 不溢出
	}
	for _, c := range cases {
		if got := NaturalLess(c.a, c.b); got != c.want {
			t.Errorf("NaturalLess(%q, %q) = %v，期望 %v", c.a, c.b, got, c.want)
		}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
