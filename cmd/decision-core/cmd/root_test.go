package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScenario = `
name: cli smoke
portfolio_value: 20000
start: 2026-03-02T00:00:00Z
steps:
  - ticks: [{symbol: BTCUSDT, price: 100, volume: 1}]
  - evaluate:
      label: t1
      symbol: BTCUSDT
      entry: 100
      fill: true
      signals:
        - {strategy: a, signal: BUY, confidence: 0.9}
        - {strategy: b, signal: BUY, confidence: 0.8}
  - close: {label: t1, pnl: 35}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	textfile := filepath.Join(dir, "metrics", "core.prom")
	cfg := writeFile(t, dir, "config.yaml", "logging:\n  level: error\nmetrics:\n  enabled: true\n  textfile: "+textfile+"\n")
	scenario := writeFile(t, dir, "scenario.yaml", testScenario)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "replay",
		"--config", cfg,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--scenario", scenario,
		"--out", outDir,
		"--json", "--csv")
	require.NoError(t, err)

	assert.Contains(t, out, "REPLAY: cli smoke")
	assert.Contains(t, out, "✅ approved")
	assert.FileExists(t, filepath.Join(outDir, "report.json"))
	assert.FileExists(t, filepath.Join(outDir, "decisions.csv"))
	assert.NoFileExists(t, filepath.Join(outDir, "report.xlsx"))

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `decision_core_risk_assessments_total{outcome="approved"} 1`)
}

func TestReplayCommand_RequiresScenario(t *testing.T) {
	_, err := execute(t, "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario")
}

func TestReplayCommand_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "risk:\n  max_position_size: 3\n")
	scenario := writeFile(t, dir, "scenario.yaml", testScenario)

	_, err := execute(t, "replay", "--config", cfg, "--env-file", filepath.Join(dir, "none"), "-s", scenario, "-q")
	require.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", "logging:\n  level: error\nrisk:\n  strict_risk_reward: true\n")

	out, err := execute(t, "config", "show", "--config", cfg, "--env-file", filepath.Join(dir, "none"))
	require.NoError(t, err)
	assert.Contains(t, out, "strict_risk_reward: true")
	assert.Contains(t, out, "circuit_breaker_cooldown: 1h0m0s")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "decision-core v"+Version)
}
