package preflight_test

import (
	"context"
	"testing"

	"bookscribe/internal/preflight"
	"bookscribe/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := preflight.CheckDirectoryAccess("Library directory", dir)
	if !result.Passed {
		t.Fatalf("check failed for writable dir: %s", result.Detail)
	}

	result = preflight.CheckDirectoryAccess("Library directory", dir+"/missing")
	if result.Passed {
		t.Fatal("check passed for missing dir")
	}
}

func TestRunAllWithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg)
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if !preflight.Passed(results) {
		t.Fatalf("preflight failed: %+v", results)
	}
}

func TestRunAllMissingBinariesFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	t.Setenv("PATH", t.TempDir())

	results := preflight.RunAll(context.Background(), cfg)
	if preflight.Passed(results) {
		t.Fatal("preflight passed with no binaries on PATH")
	}

	// FFprobe is optional; its absence alone must not fail.
	for _, result := range results {
		if result.Name == "FFprobe" && !result.Passed {
			t.Fatalf("optional ffprobe absence failed preflight: %+v", result)
		}
	}
}
