package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Dispatch.DelaySecs)
	assert.Equal(t, 3, cfg.Dispatch.MaxRetries)
	assert.Equal(t, 5, cfg.Dispatch.RetryDelaySecs)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.RetryDelay())
	assert.Equal(t, 5, cfg.Recording.PollRetries)
	assert.Equal(t, 5, cfg.Recording.PollDelaySecs)
	assert.Equal(t, int64(2000), cfg.Recording.MinBytes)
	assert.Equal(t, "downloads", cfg.Recording.DownloadDir)
	assert.Equal(t, DefaultQuestions, cfg.IVR.Questions)
	assert.Equal(t, "https://api.openai.com", cfg.Whisper.BaseURL)
	assert.Equal(t, "whisper-1", cfg.Whisper.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "logs/responses.csv", cfg.Ledger.ResponsesPath)
	assert.Equal(t, "logs/summaries.csv", cfg.Ledger.SummariesPath)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads", cfg.Ingest.WatchDir)
	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
twilio:
  account_sid: AC00000000000000000000000000000000
  phone_number: "+15005550006"
  test_number: "+15551230000"
dispatch:
  delay_secs: 1
  max_retries: 5
ivr:
  questions:
    - "Have you scheduled a cleaning this year?"
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "AC00000000000000000000000000000000", cfg.Twilio.AccountSID)
	assert.Equal(t, "+15005550006", cfg.Twilio.PhoneNumber)
	assert.Equal(t, 1, cfg.Dispatch.DelaySecs)
	assert.Equal(t, time.Second, cfg.Dispatch.Delay())
	assert.Equal(t, 5, cfg.Dispatch.MaxRetries)
	assert.Equal(t, []string{"Have you scheduled a cleaning this year?"}, cfg.IVR.Questions)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply to untouched sections.
	assert.Equal(t, 5, cfg.Recording.PollRetries)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
