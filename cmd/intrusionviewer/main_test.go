package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/intrusionViewer/internal/config"
	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/fileInfo"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signal_url: ws://from-file:8765/ws\ndefault_amount: 7\n"), 0o600))

	flags := &rootFlags{
		configPath: path,
		signalURL:  "ws://from-flag:8765/ws",
		saveDir:    filepath.Join(dir, "saved"),
		record:     filepath.Join(dir, "live"),
	}
	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, "ws://from-flag:8765/ws", cfg.SignalURL)
	assert.Equal(t, 7, cfg.DefaultAmount)
	assert.Equal(t, filepath.Join(dir, "saved"), cfg.SaveDir)
	assert.Equal(t, filepath.Join(dir, "live"), cfg.Live.RecordPath)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o600))

	_, err := loadConfig(&rootFlags{configPath: path, signalURL: "http://example.org/ws"})
	assert.Error(t, err)
}

func TestLoadConfigValidatesCommandOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_amount: 7\n"), 0o600))
	flags := &rootFlags{configPath: path}

	tests := []struct {
		name    string
		amount  int
		wantErr bool
	}{
		{name: "within bounds", amount: 20},
		{name: "above maximum", amount: 1001, wantErr: true},
		{name: "zero", amount: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(flags, func(c *config.Config) { c.DefaultAmount = tt.amount })
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, cfg.DefaultAmount)
		})
	}
}

func TestPrintVideos(t *testing.T) {
	videos := control.VideoList{
		{Path: "clips/a.mp4", Description: "person, car"},
		{Path: "clips/b.mp4"},
	}

	var table bytes.Buffer
	printVideos(&table, videos)
	out := table.String()
	assert.Contains(t, out, "clips/a.mp4")
	assert.Contains(t, out, "person, car")
	assert.Contains(t, out, control.DefaultDescription)

	var plain bytes.Buffer
	printVideosPlain(&plain, videos)
	lines := bytes.Split(bytes.TrimSpace(plain.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.True(t, bytes.HasPrefix(lines[0], []byte("clips/a.mp4 ")))
	assert.True(t, bytes.HasSuffix(lines[0], []byte("person, car")))
}

func TestPrintSaved(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	nodes := []fileInfo.FileNode{
		{Name: "a.mp4", Size: 2048, MimeType: "video/mp4", ModTime: now.Add(-2 * time.Hour)},
	}

	var buf bytes.Buffer
	printSaved(&buf, nodes, now)
	out := buf.String()
	assert.Contains(t, out, "a.mp4")
	assert.Contains(t, out, "2 KB")
	assert.Contains(t, out, "video/mp4")
	assert.Contains(t, out, "2h ago")
}

func TestSetupLoggingRejectsUnknownLevel(t *testing.T) {
	_, err := setupLogging(filepath.Join(t.TempDir(), "debug.log"), "loud")
	assert.Error(t, err)
}
