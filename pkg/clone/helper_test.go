package clone

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitAbs(t *testing.T) {
	tests := []struct {
		in       string
		dir      string
		base     string
	}{
		{"/a/b/c", "/a/b", "c"},
		{"/a/b/c/", "/a/b", "c"},
		{"/a", "/", "a"},
		{"", "", ""},
	}
	for _, tt := range tests {
		dir, base := splitAbs(tt.in)
		if dir != tt.dir || base != tt.base {
			t.Errorf("splitAbs(%q) = (%q, %q), want (%q, %q)", tt.in, dir, base, tt.dir, tt.base)
		}
	}
}

func TestDirIsEmpty(t *testing.T) {
	root := t.TempDir()
	empty, err := dirIsEmpty(root)
	if err != nil {
		t.Fatalf("dirIsEmpty: %v", err)
	}
	if !empty {
		t.Error("fresh temp dir should be empty")
	}

	if err := os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty, err = dirIsEmpty(root)
	if err != nil {
		t.Fatalf("dirIsEmpty: %v", err)
	}
	if empty {
		t.Error("dir with a file should not be empty")
	}
}

func TestDirExistsFileExists(t *testing.T) {
	root := t.TempDir()
	if !dirExists(root) {
		t.Error("dirExists should be true for a temp dir")
	}
	if dirExists(filepath.Join(root, "nope")) {
		t.Error("dirExists should be false for a missing path")
	}

	f := filepath.Join(root, "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !fileExists(f) {
		t.Error("fileExists should be true for a regular file")
	}
	if fileExists(root) {
		t.Error("fileExists should be false for a directory")
	}
}

func TestLinkOrCopyFallsBackToCopy(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := linkOrCopy(src, dst, false); err != nil {
		t.Fatalf("linkOrCopy: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading dst: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("dst content = %q, want %q", data, "payload")
	}

	srcInfo, _ := os.Stat(src)
	dstInfo, _ := os.Stat(dst)
	if os.SameFile(srcInfo, dstInfo) {
		t.Error("allowHardlink=false must produce a copy, not a hardlink")
	}
}
