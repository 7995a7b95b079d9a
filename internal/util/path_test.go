package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name   string
		path   string
		exists bool
		isDir  bool
	}{
		{"directory", dir, true, true},
		{"file", file, true, false},
		{"missing", filepath.Join(dir, "missing"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, isDir, err := CheckDirectory(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)
			assert.Equal(t, tt.isDir, isDir)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "Videos"), ExpandHome("~/Videos"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/var/lib/clips", ExpandHome("/var/lib/clips"))
	assert.Equal(t, "~user/clips", ExpandHome("~user/clips"))
}
