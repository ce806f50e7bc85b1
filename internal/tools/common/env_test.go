package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestLoadEnvFileLoadsAndPreservesExisting(t *testing.T) {
	t.Setenv("VOTECTL_EXISTING", "from-env")
	t.Setenv("VOTECTL_NEW", "")
	t.Setenv("VOTECTL_QUOTED", "")
	os.Unsetenv("VOTECTL_NEW")
	os.Unsetenv("VOTECTL_QUOTED")

	file := filepath.Join(t.TempDir(), "test.env")
	content := "# comment\nVOTECTL_EXISTING=from-file\nVOTECTL_NEW=hello\nVOTECTL_QUOTED=\"x\"\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := LoadEnvFile(file); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("VOTECTL_EXISTING"); got != "from-env" {
		t.Fatalf("expected existing var to be preserved, got %q", got)
	}
	if got := os.Getenv("VOTECTL_NEW"); got != "hello" {
		t.Fatalf("unexpected VOTECTL_NEW=%q", got)
	}
	if got := os.Getenv("VOTECTL_QUOTED"); got != "x" {
		t.Fatalf("unexpected VOTECTL_QUOTED=%q", got)
	}
}

func TestLoadEnvFileDirectoryIsError(t *testing.T) {
	if err := LoadEnvFile(t.TempDir()); err == nil {
		t.Fatal("expected error when path is a directory")
	}
}
