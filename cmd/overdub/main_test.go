package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`
credentials = ["test-credential"]

[paths]
work_dir = %q
log_dir = %q

[translation]
model = "test/translator"

[synthesis]
providers = ["tts-1:alloy"]

[logging]
format = "json"
`, filepath.Join(base, "work"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OVERDUB_CONFIG", configPath)
	return configPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, "Wrote sample configuration") {
		t.Fatalf("output = %q", output)
	}
	if info, statErr := os.Stat(target); statErr != nil || info.Size() == 0 {
		t.Fatalf("sample config missing: %v", statErr)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("existing"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}

func TestConfigValidate(t *testing.T) {
	writeTestConfig(t)

	output, err := runCLI(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(output, "Configuration valid") {
		t.Fatalf("output = %q", output)
	}
	if !strings.Contains(output, "Credentials configured: 1") {
		t.Fatalf("output = %q", output)
	}
}

func TestStatusReportsFreshFile(t *testing.T) {
	writeTestConfig(t)
	source := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(source, []byte("container"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	output, err := runCLI(t, "status", source)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(output, "Next stage: recognition") {
		t.Fatalf("output = %q", output)
	}
	if !strings.Contains(output, "No run recorded") {
		t.Fatalf("output = %q", output)
	}
}

func TestConfigShowRedactsCredentials(t *testing.T) {
	writeTestConfig(t)

	output, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(output, "test-credential") {
		t.Fatalf("credential leaked: %q", output)
	}
	if !strings.Contains(output, "<redacted>") {
		t.Fatalf("output = %q", output)
	}
	if !strings.Contains(output, "test/translator") {
		t.Fatalf("output = %q", output)
	}
}

func TestRunRequiresTargetFlag(t *testing.T) {
	writeTestConfig(t)

	if _, err := runCLI(t, "run", "movie.mkv"); err == nil {
		t.Fatal("expected missing --to flag error")
	}
}

func TestResumeRequiresTargetFlag(t *testing.T) {
	writeTestConfig(t)

	if _, err := runCLI(t, "resume", "movie.mkv"); err == nil {
		t.Fatal("expected missing --to flag error")
	}
}

func TestRequestsLogAlias(t *testing.T) {
	writeTestConfig(t)
	source := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(source, []byte("container"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	output, err := runCLI(t, "log", source)
	if err != nil {
		t.Fatalf("log alias: %v", err)
	}
	if !strings.Contains(output, "No requests recorded") {
		t.Fatalf("output = %q", output)
	}
}
