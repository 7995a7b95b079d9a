// Package receiver writes assembled clips to disk, either into the user's
// save directory or into a player directory for viewing.
package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/rescp17/intrusionViewer/internal/util"
	"github.com/rescp17/intrusionViewer/pkg/fileInfo"
	"github.com/rescp17/intrusionViewer/pkg/transfer"
)

const maxNameAttempts = 1000

// SavedClip describes a clip written by DiskSaver.
type SavedClip struct {
	Filename string
	Path     string
	Node     fileInfo.FileNode
}

// DiskSaver persists clips into a directory without overwriting existing files.
type DiskSaver struct {
	outputDir string
	onSaved   func(SavedClip)
	logger    *slog.Logger
}

// NewDiskSaver creates a saver writing into outputDir. onSaved, if not nil,
// is called after every successful save.
func NewDiskSaver(outputDir string, onSaved func(SavedClip)) *DiskSaver {
	return &DiskSaver{
		outputDir: outputDir,
		onSaved:   onSaved,
		logger:    slog.Default(),
	}
}

// Persist writes the clip under a sanitized version of suggested and returns the final path.
func (s *DiskSaver) Persist(clip *transfer.Clip, suggested string) (string, error) {
	if err := ensureDir(s.outputDir); err != nil {
		return "", err
	}
	name := withExtension(sanitizeName(suggested), clip.MIME)

	file, outputPath, err := createUnique(s.outputDir, name)
	if err != nil {
		return "", err
	}
	if _, err := file.Write(clip.Data); err != nil {
		file.Close()
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", outputPath, err)
	}

	node, err := fileInfo.Describe(outputPath, false)
	if err != nil {
		return "", fmt.Errorf("failed to inspect %s: %w", outputPath, err)
	}
	ok, err := node.VerifySHA256(fileInfo.SHA256Bytes(clip.Data))
	if err != nil {
		return "", fmt.Errorf("failed to verify %s: %w", outputPath, err)
	}
	if !ok {
		os.Remove(outputPath)
		return "", fmt.Errorf("saved file %s does not match the downloaded clip", outputPath)
	}

	s.logger.Info("Saved clip", "filename", clip.Filename, "path", outputPath, "size", node.Size)
	if s.onSaved != nil {
		s.onSaved(SavedClip{Filename: clip.Filename, Path: outputPath, Node: node})
	}
	return outputPath, nil
}

// sanitizeName strips any directory part so a name cannot escape the output directory.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	base = strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == "/" || base == ".." {
		return "clip"
	}
	return base
}

func withExtension(name, mime string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		return name + m.Extension()
	}
	return name
}

func ensureDir(dir string) error {
	exists, isDir, err := util.CheckDirectory(dir)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", dir, err)
	}
	if exists && !isDir {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	if !exists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// createUnique creates name in dir, appending " (n)" before the extension
// when the name is taken.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	cleanDir := filepath.Clean(dir)

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		outputPath := filepath.Join(cleanDir, candidate)
		if !strings.HasPrefix(outputPath, cleanDir+string(filepath.Separator)) {
			return nil, "", fmt.Errorf("invalid output path: %s", outputPath)
		}
		file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return file, outputPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
	}
	return nil, "", fmt.Errorf("no free filename for %s in %s", name, dir)
}
