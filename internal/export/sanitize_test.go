package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName(" A\nB\rC\tD\x00 ", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "ABCD" {
		t.Fatalf("SanitizeName control char behavior mismatch, got %q", got)
	}
}

func TestSanitizeName_MaxLength(t *testing.T) {
	got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected length 10, got %d (%q)", len([]rune(got)), got)
	}
}

func TestSanitizeName_AllowedChars(t *testing.T) {
	input := "Az09 -_.,()"
	got := SanitizeName(input, 100)
	if got != input {
		t.Fatalf("SanitizeName changed allowed chars: got %q want %q", got, input)
	}
}

func TestSanitizeName_ReplacesDisallowed(t *testing.T) {
	got := SanitizeName("bad<>|\"name", 100)
	if got != "bad____name" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	res := &Result{Title: "My Cut: v2", EDL: "TITLE: My Cut_ v2\n"}
	if err := WriteFile(dir, res); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if filepath.Base(res.OutputPath) != "My_Cut__v2.edl" {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if !strings.HasPrefix(string(data), "TITLE:") {
		t.Errorf("file content = %q", data)
	}
}

func TestWriteFile_SymbolTitle(t *testing.T) {
	res := &Result{Title: "<>"}
	dir := t.TempDir()
	if err := WriteFile(dir, res); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if filepath.Base(res.OutputPath) != "__.edl" {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
}

func TestWriteFile_BadDirs(t *testing.T) {
	base := t.TempDir()
	filePath := filepath.Join(base, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	for _, dir := range []string{"", "/tmp/../etc", filepath.Join(base, "missing"), filePath, base + "/"} {
		if err := WriteFile(dir, &Result{Title: "x"}); err == nil {
			t.Errorf("WriteFile(%q) expected error", dir)
		}
	}
}
