// Package media attaches inbound media tracks to a sink: a recording on disk
// when a directory is configured, otherwise a reader that discards packets so
// the receive buffers never fill.
package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
)

// RemoteTrack is the part of *webrtc.TrackRemote the recorder reads.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

var _ RemoteTrack = (*webrtc.TrackRemote)(nil)

// Renderer binds a remote track to a named output.
type Renderer interface {
	Attach(track RemoteTrack, elementID string) error
}

// Attachment describes a track once it is bound.
type Attachment struct {
	TrackID   string
	StreamID  string
	ElementID string
	Codec     string
	// Path is empty when the track is drained without recording.
	Path string
}

type rtpWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

type trackState struct {
	attachment Attachment
	packets    int
	done       bool
}

// Recorder implements Renderer. Attach is idempotent per track id.
type Recorder struct {
	dir      string
	logger   *slog.Logger
	onAttach func(Attachment)

	mu     sync.Mutex
	tracks map[string]*trackState
	wg     sync.WaitGroup
}

// NewRecorder writes tracks into dir; an empty dir drains them.
func NewRecorder(dir string, logger *slog.Logger, onAttach func(Attachment)) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		dir:      dir,
		logger:   logger,
		onAttach: onAttach,
		tracks:   make(map[string]*trackState),
	}
}

func (r *Recorder) Attach(track RemoteTrack, elementID string) error {
	r.mu.Lock()
	if _, ok := r.tracks[track.ID()]; ok {
		r.mu.Unlock()
		r.logger.Debug("track already attached", "track", track.ID())
		return nil
	}
	st := &trackState{attachment: Attachment{
		TrackID:   track.ID(),
		StreamID:  track.StreamID(),
		ElementID: elementID,
		Codec:     track.Codec().MimeType,
	}}
	r.tracks[track.ID()] = st
	r.mu.Unlock()

	writer, path, err := r.openWriter(track, elementID)
	if err != nil {
		r.logger.Warn("cannot record track, draining instead", "track", track.ID(), "error", err)
		writer, path = nil, ""
	}

	r.mu.Lock()
	st.attachment.Path = path
	attachment := st.attachment
	r.mu.Unlock()

	r.logger.Info("track attached", "track", attachment.TrackID, "element", elementID, "codec", attachment.Codec, "path", path)
	if r.onAttach != nil {
		r.onAttach(attachment)
	}

	r.wg.Add(1)
	go r.read(track, st, writer)
	return err
}

func (r *Recorder) openWriter(track RemoteTrack, elementID string) (rtpWriter, string, error) {
	if r.dir == "" || track.Kind() != webrtc.RTPCodecTypeVideo {
		return nil, "", nil
	}
	mime := track.Codec().MimeType
	var ext string
	switch {
	case strings.EqualFold(mime, webrtc.MimeTypeVP8):
		ext = ".ivf"
	case strings.EqualFold(mime, webrtc.MimeTypeH264):
		ext = ".h264"
	default:
		return nil, "", fmt.Errorf("unsupported codec %q", mime)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create record directory: %w", err)
	}

	path := filepath.Join(r.dir, fileStem(elementID, track.ID())+ext)
	var (
		w   rtpWriter
		err error
	)
	if ext == ".ivf" {
		w, err = ivfwriter.New(path)
	} else {
		w, err = h264writer.New(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	return w, path, nil
}

func fileStem(elementID, trackID string) string {
	stem := elementID + "-" + trackID
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '{', '}':
			return '_'
		}
		return r
	}, stem)
}

func (r *Recorder) read(track RemoteTrack, st *trackState, writer rtpWriter) {
	defer r.wg.Done()
	defer func() {
		if writer != nil {
			if err := writer.Close(); err != nil {
				r.logger.Warn("failed to close recording", "track", track.ID(), "error", err)
			}
		}
		r.mu.Lock()
		st.done = true
		packets := st.packets
		r.mu.Unlock()
		r.logger.Info("track ended", "track", track.ID(), "packets", packets)
	}()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Warn("rtp read error", "track", track.ID(), "error", err)
			}
			return
		}
		if pkt == nil {
			continue
		}
		r.mu.Lock()
		st.packets++
		r.mu.Unlock()
		if writer == nil {
			continue
		}
		if err := writer.WriteRTP(pkt); err != nil {
			r.logger.Debug("failed to write rtp packet", "track", track.ID(), "error", err)
		}
	}
}

// Packets returns how many packets were read from the track so far.
func (r *Recorder) Packets(trackID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.tracks[trackID]
	if !ok {
		return 0, false
	}
	return st.packets, true
}

// Attachments lists the bound tracks.
func (r *Recorder) Attachments() []Attachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Attachment, 0, len(r.tracks))
	for _, st := range r.tracks {
		out = append(out, st.attachment)
	}
	return out
}

// Wait blocks until every attached track has ended.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
