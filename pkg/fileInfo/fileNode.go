// Package fileInfo describes clips that have been written to disk.
package fileInfo

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

type FileNode struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	ModTime  time.Time `json:"mod_time"`
	Path     string    `json:"-"`
}

// Describe inspects a regular file. Checksums are only computed when withChecksum is set.
func Describe(path string, withChecksum bool) (FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	if info.IsDir() {
		return FileNode{}, fmt.Errorf("%s is a directory", path)
	}
	node := FileNode{
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Path:    path,
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		node.MimeType = "application/octet-stream"
	} else {
		node.MimeType = mime.String()
	}
	if withChecksum {
		sum, err := SHA256File(path)
		if err != nil {
			return FileNode{}, err
		}
		node.Checksum = sum
	}
	return node, nil
}

// ScanDir describes the regular files directly inside dir, newest first.
// A missing directory yields an empty list.
func ScanDir(dir string) ([]FileNode, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	nodes := make([]FileNode, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		childPath := filepath.Join(dir, entry.Name())
		node, err := Describe(childPath, false)
		if err != nil {
			log.Printf("Skipping %s: %v", childPath, err)
			continue
		}
		nodes = append(nodes, node)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].ModTime.Equal(nodes[j].ModTime) {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ModTime.After(nodes[j].ModTime)
	})
	return nodes, nil
}
