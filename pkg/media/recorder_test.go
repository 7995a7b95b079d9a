package media

import (
	"io"
	"os"
	"sync"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrack struct {
	id      string
	kind    webrtc.RTPCodecType
	mime    string
	mu      sync.Mutex
	packets []*rtp.Packet
}

func newFakeTrack(id, mime string, n int) *fakeTrack {
	t := &fakeTrack{id: id, kind: webrtc.RTPCodecTypeVideo, mime: mime}
	for i := 0; i < n; i++ {
		t.packets = append(t.packets, &rtp.Packet{
			Header:  rtp.Header{Version: 2, SequenceNumber: uint16(i), Timestamp: uint32(i * 3000)},
			Payload: []byte{0x09, 0xf0},
		})
	}
	return t
}

func (t *fakeTrack) ID() string                { return t.id }
func (t *fakeTrack) StreamID() string          { return "stream-" + t.id }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }

func (t *fakeTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: t.mime, ClockRate: 90000}}
}

func (t *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.packets) == 0 {
		return nil, nil, io.EOF
	}
	p := t.packets[0]
	t.packets = t.packets[1:]
	return p, nil, nil
}

func TestDrainWithoutDirectory(t *testing.T) {
	var attached []Attachment
	r := NewRecorder("", nil, func(a Attachment) { attached = append(attached, a) })

	require.NoError(t, r.Attach(newFakeTrack("v1", webrtc.MimeTypeVP8, 7), "live_video"))
	r.Wait()

	n, ok := r.Packets("v1")
	require.True(t, ok)
	assert.Equal(t, 7, n)
	require.Len(t, attached, 1)
	assert.Empty(t, attached[0].Path)
	assert.Equal(t, "live_video", attached[0].ElementID)
	assert.Equal(t, "stream-v1", attached[0].StreamID)
}

func TestAttachIsIdempotentPerTrack(t *testing.T) {
	calls := 0
	r := NewRecorder("", nil, func(Attachment) { calls++ })
	track := newFakeTrack("v1", webrtc.MimeTypeVP8, 3)

	require.NoError(t, r.Attach(track, "live_video"))
	require.NoError(t, r.Attach(track, "live_video"))
	r.Wait()

	assert.Equal(t, 1, calls)
	assert.Len(t, r.Attachments(), 1)
	n, _ := r.Packets("v1")
	assert.Equal(t, 3, n)
}

func TestRecordsToCodecFile(t *testing.T) {
	tests := []struct {
		mime string
		ext  string
	}{
		{webrtc.MimeTypeVP8, ".ivf"},
		{webrtc.MimeTypeH264, ".h264"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			dir := t.TempDir()
			r := NewRecorder(dir, nil, nil)

			require.NoError(t, r.Attach(newFakeTrack("cam", tt.mime, 0), "live_video"))
			r.Wait()

			attachments := r.Attachments()
			require.Len(t, attachments, 1)
			assert.Contains(t, attachments[0].Path, "live_video-cam"+tt.ext)
			_, err := os.Stat(attachments[0].Path)
			assert.NoError(t, err)
		})
	}
}

func TestUnsupportedCodecFallsBackToDrain(t *testing.T) {
	r := NewRecorder(t.TempDir(), nil, nil)

	err := r.Attach(newFakeTrack("v9", "video/AV1", 2), "live_video")
	assert.Error(t, err)
	r.Wait()

	n, ok := r.Packets("v9")
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Empty(t, r.Attachments()[0].Path)
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "live_video-_abc_", fileStem("live_video", "{abc}"))
	assert.Equal(t, "a_b-c_d", fileStem("a/b", "c:d"))
}
