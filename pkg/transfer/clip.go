package transfer

import (
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// FallbackMIME is used when the clip content is not recognised.
const FallbackMIME = "video/mp4"

// Clip is an assembled download. It is never modified after creation.
type Clip struct {
	Filename    string
	Data        []byte
	MIME        string
	CompletedAt time.Time
}

// Size returns the clip length in bytes.
func (c *Clip) Size() int64 {
	return int64(len(c.Data))
}

func newClip(filename string, data []byte, at time.Time) *Clip {
	mime := FallbackMIME
	if len(data) > 0 {
		if detected := mimetype.Detect(data); detected != nil && !detected.Is("application/octet-stream") {
			mime = detected.String()
		}
	}
	return &Clip{
		Filename:    filename,
		Data:        data,
		MIME:        mime,
		CompletedAt: at,
	}
}
