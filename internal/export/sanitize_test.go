package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{" A\nB\rC\tD\x00 ", 0, "ABCD"},
		{"Az09 -_.,()", 0, "Az09 -_.,()"},
		{"bad<>|\"name", 0, "bad____name"},
		{"Lecture: part 1", 0, "Lecture_ part 1"},
		{"../../etc", 0, ".._.._etc"},
		{"Vorlesung über Größen", 0, "Vorlesung über Größen"},
		{"abcdefghijklmnopqrstuvwxyz", 10, "abcdefghij"},
		{"ünïcödé", 3, "ünï"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("SanitizeName(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestValidateOutputDir(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateOutputDir(base); err != nil {
		t.Fatalf("ValidateOutputDir(%q) = %v", base, err)
	}
	for _, dir := range []string{
		"",
		filepath.Join(base, "missing"),
		"/tmp/../etc",
		base + "/",
		file,
	} {
		if err := ValidateOutputDir(dir); !errors.Is(err, ErrBadOutputDir) {
			t.Errorf("ValidateOutputDir(%q) = %v, want ErrBadOutputDir", dir, err)
		}
	}
}

func TestOutputPath(t *testing.T) {
	base := t.TempDir()

	got, err := OutputPath(base, "media-1", "Lecture: part 1", ".edl")
	if err != nil {
		t.Fatalf("OutputPath() error = %v", err)
	}
	want := filepath.Join(base, "media-1", "Lecture_ part 1.edl")
	if got != want {
		t.Fatalf("OutputPath() = %q, want %q", got, want)
	}
	if info, err := os.Stat(filepath.Dir(got)); err != nil || !info.IsDir() {
		t.Fatalf("media directory was not created: %v", err)
	}
}

func TestOutputPath_RejectsEscapes(t *testing.T) {
	base := t.TempDir()
	if _, err := OutputPath(base, "..", "cut", ".edl"); err == nil {
		t.Fatal("expected error for parent directory media id")
	}
	if _, err := OutputPath(base, "m", "", ".edl"); err == nil {
		t.Fatal("expected error for empty name")
	}
}
