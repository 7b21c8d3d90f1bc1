package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "tilde slash", path: "~/test/path", want: filepath.Join(home, "test", "path")},
		{name: "tilde only", path: "~", want: home},
		{name: "absolute", path: "/absolute/path", want: "/absolute/path"},
		// ~user形式は未対応なのでそのまま
		{name: "tilde user", path: "~otheruser/path", want: "~otheruser/path"},
		{name: "relative", path: "data", want: "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandTilde(tt.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	got, err := ResolvePath("")
	if err != nil || got != "" {
		t.Errorf("expected empty path unchanged, got %q, %v", got, err)
	}

	got, err = ResolvePath("relative/dir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %q", got)
	}
	if filepath.Base(got) != "dir" {
		t.Errorf("expected path to end with dir, got %q", got)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path, err := GetDefaultConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	expected := filepath.Join(home, ".semstore", "config.json")
	if path != expected {
		t.Errorf("expected %q, got %q", expected, path)
	}
}

func TestGetDefaultDataDir(t *testing.T) {
	dir, err := GetDefaultDataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home dir: %v", err)
	}

	expected := filepath.Join(home, ".semstore", "data")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("expected dir to exist: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("expected %q to be a directory", dir)
	}

	// 既存ディレクトリでもエラーにならない
	if err := EnsureDir(dir); err != nil {
		t.Errorf("unexpected error on existing dir: %v", err)
	}
}
