package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bookscribe/internal/config"
	"bookscribe/internal/testsupport"
)

// writeConfigFile persists a test config so commands can load it via --config.
func writeConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", configPath))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
}

func TestBooksCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "war_and_peace", "ch1.mp3", 2048)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.LibraryDir, "war_and_peace", "ch1.vtt"), 64)
	configPath := writeConfigFile(t, cfg)

	out, err := runCLI(t, configPath, "books")
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	if !strings.Contains(out, "war_and_peace") || !strings.Contains(out, "War And Peace") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, "1/1") {
		t.Fatalf("output missing caption count: %q", out)
	}

	out, err = runCLI(t, configPath, "books", "war_and_peace")
	if err != nil {
		t.Fatalf("books war_and_peace: %v", err)
	}
	if !strings.Contains(out, "ch1.mp3") {
		t.Fatalf("output = %q", out)
	}
}

func TestTranscribeCommandSingleFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "war_and_peace", "ch1.mp3", 2048)
	configPath := writeConfigFile(t, cfg)

	out, err := runCLI(t, configPath, "transcribe", "war_and_peace", "ch1.mp3")
	if err != nil {
		t.Fatalf("transcribe: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "Detecting language") {
		t.Fatalf("output missing streamed log: %q", out)
	}
	if !strings.Contains(out, "transcribed") {
		t.Fatalf("output = %q", out)
	}

	captionPath := filepath.Join(cfg.Paths.LibraryDir, "war_and_peace", "ch1.vtt")
	if _, err := os.Stat(captionPath); err != nil {
		t.Fatalf("caption artifact missing: %v", err)
	}

	// Re-running reports the existing caption and succeeds.
	out, err = runCLI(t, configPath, "transcribe", "war_and_peace", "ch1.mp3")
	if err != nil {
		t.Fatalf("transcribe rerun: %v", err)
	}
	if !strings.Contains(out, "already has a caption") {
		t.Fatalf("output = %q", out)
	}
}

func TestTranscribeCommandUsesConfiguredOptions(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithWhisperOptions(false, false, true))
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "war_and_peace", "ch1.mp3", 2048)
	configPath := writeConfigFile(t, cfg)

	out, err := runCLI(t, configPath, "transcribe", "war_and_peace", "ch1.mp3")
	if err != nil {
		t.Fatalf("transcribe: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "--fp16 True") {
		t.Fatalf("configured fp16 not passed to whisper: %q", out)
	}
	if strings.Contains(out, "--word_timestamps") {
		t.Fatalf("word timestamps passed despite config disabling them: %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := writeConfigFile(t, cfg)

	out, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "Whisper") || !strings.Contains(out, "[OK]") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigShowCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeConfigFile(t, cfg)

	out, err := runCLI(t, "", "config", "show", "--config-file", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[paths]") || !strings.Contains(out, "library") {
		t.Fatalf("output = %q", out)
	}
}
