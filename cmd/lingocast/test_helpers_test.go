package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"lingocast/internal/config"
	"lingocast/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	base       string
	configPath string
	workDir    string
	checkpoint string
	outputDir  string
	historyDB  string
	binDir     string
}

// setupCLITestEnv writes a config whose directories live under a temp dir and
// whose tool binaries are stub scripts.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("LINGOCAST_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("LINGOCAST_NTFY_TOPIC", "")

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	env := &cliTestEnv{
		cfg:        cfg,
		base:       base,
		workDir:    cfg.Paths.WorkDir,
		checkpoint: cfg.Paths.CheckpointDir,
		outputDir:  cfg.Paths.OutputDir,
		historyDB:  cfg.Paths.HistoryDB,
		binDir:     testsupport.BinDir(cfg),
	}
	env.writeConfig(t)
	return env
}

// writeConfig persists the current env.cfg.
func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	e.configPath = testsupport.WriteConfigFile(t, e.cfg)
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	full := args
	if env != nil {
		full = append([]string{"--config", env.configPath}, args...)
	}
	cmd.SetArgs(full)
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
