package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// DefaultDescription is shown for clips in which nothing was recognised.
const DefaultDescription = "No recognisable objects by yolox was detected."

// VideoEntry is one recorded clip and the scene description attached to it.
type VideoEntry struct {
	Path        string
	Description string
}

// Filename is the last element of the clip path, used as the list title.
func (v VideoEntry) Filename() string {
	return path.Base(strings.ReplaceAll(v.Path, "\\", "/"))
}

// DisplayDescription returns the description or the default text when blank.
func (v VideoEntry) DisplayDescription() string {
	if strings.TrimSpace(v.Description) == "" {
		return DefaultDescription
	}
	return v.Description
}

// VideoList is a path to description mapping that keeps the device's order.
type VideoList []VideoEntry

// UnmarshalJSON reads a JSON object preserving key order.
func (l *VideoList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("videos_with_metadata: expected object, got %v", tok)
	}

	out := VideoList{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("videos_with_metadata: unexpected key %v", keyTok)
		}
		var desc *string
		if err := dec.Decode(&desc); err != nil {
			return fmt.Errorf("videos_with_metadata[%q]: %w", key, err)
		}
		entry := VideoEntry{Path: key}
		if desc != nil {
			entry.Description = *desc
		}
		out = append(out, entry)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = out
	return nil
}

// MarshalJSON writes the list back as an ordered JSON object.
func (l VideoList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Path)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(entry.Description)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
