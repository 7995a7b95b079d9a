package transfer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/fault"
)

type mockRequester struct {
	sent []control.Message
	err  error
}

func (r *mockRequester) Send(msg control.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *mockRequester) downloads() []control.RequestDownload {
	var out []control.RequestDownload
	for _, m := range r.sent {
		if d, ok := m.(control.RequestDownload); ok {
			out = append(out, d)
		}
	}
	return out
}

type renderCall struct {
	filename string
	data     string
	playerID string
}

type mockRenderer struct{ calls []renderCall }

func (r *mockRenderer) Render(clip *Clip, playerID string) error {
	r.calls = append(r.calls, renderCall{clip.Filename, string(clip.Data), playerID})
	return nil
}

type mockPersister struct {
	saved map[string]string
	order []string
}

func (p *mockPersister) Persist(clip *Clip, suggested string) (string, error) {
	if p.saved == nil {
		p.saved = map[string]string{}
	}
	p.saved[suggested] = string(clip.Data)
	p.order = append(p.order, suggested)
	return "/tmp/" + suggested, nil
}

type mockNotifier struct{ errs []error }

func (n *mockNotifier) Notify(err error) { n.errs = append(n.errs, err) }

type statusReport struct {
	filename string
	state    State
	buffered int64
	pending  []string
}

type mockObserver struct{ reports []statusReport }

func (o *mockObserver) TransferChanged(st Status, pending []string) {
	o.reports = append(o.reports, statusReport{st.Filename, st.State, st.BufferedBytes, pending})
}

type mockScheduler struct {
	pending []*mockTimer
}

type mockTimer struct {
	d         time.Duration
	f         func()
	cancelled bool
}

func (s *mockScheduler) AfterFunc(d time.Duration, f func()) func() {
	t := &mockTimer{d: d, f: f}
	s.pending = append(s.pending, t)
	return func() { t.cancelled = true }
}

// fireLive runs every timer that has not been cancelled.
func (s *mockScheduler) fireLive() int {
	fired := 0
	timers := s.pending
	s.pending = nil
	for _, t := range timers {
		if !t.cancelled {
			t.f()
			fired++
		}
	}
	return fired
}

type fixture struct {
	mgr       *Manager
	requester *mockRequester
	renderer  *mockRenderer
	persister *mockPersister
	notifier  *mockNotifier
	scheduler *mockScheduler
}

func newFixture() *fixture {
	f := &fixture{
		requester: &mockRequester{},
		renderer:  &mockRenderer{},
		persister: &mockPersister{},
		notifier:  &mockNotifier{},
		scheduler: &mockScheduler{},
	}
	f.mgr = NewManager(DefaultConfig(), Dependencies{
		Requester: f.requester,
		Renderer:  f.renderer,
		Persister: f.persister,
		Notifier:  f.notifier,
		Scheduler: f.scheduler,
	})
	return f
}

func TestPlayAndSaveResolveOnCompletion(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.mgr.RequestPlay("clip1.mp4", "recent_intrusion_video_player"))
	require.NoError(t, f.mgr.RequestSave("clip1.mp4"))

	downloads := f.requester.downloads()
	require.Len(t, downloads, 1, "save for the active clip must not issue a second request")
	assert.Equal(t, control.RequestDownload{Filename: "clip1.mp4", PlayerID: "recent_intrusion_video_player"}, downloads[0])

	f.mgr.OnChunk([]byte("AB"))
	f.mgr.OnChunk([]byte("CD"))
	f.mgr.OnDownloadComplete("clip1.mp4", "recent_intrusion_video_player")

	require.Len(t, f.renderer.calls, 1)
	assert.Equal(t, renderCall{"clip1.mp4", "ABCD", "recent_intrusion_video_player"}, f.renderer.calls[0])
	assert.Equal(t, map[string]string{"clip1.mp4": "ABCD"}, f.persister.saved)

	st, ok := f.mgr.Snapshot("clip1.mp4")
	require.True(t, ok)
	assert.Equal(t, StateCompleted, st.State)
	assert.False(t, st.PlayRequested)
	assert.False(t, st.SaveRequested)
	assert.Equal(t, int64(4), st.ClipSize)
	assert.False(t, f.mgr.Active())

	// A later play reuses the assembled clip without any traffic.
	require.NoError(t, f.mgr.RequestPlay("clip1.mp4", "searched_intrusion_video_player"))
	assert.Len(t, f.requester.downloads(), 1)
	require.Len(t, f.renderer.calls, 2)
	assert.Equal(t, "searched_intrusion_video_player", f.renderer.calls[1].playerID)
}

func TestSaveThenErrorKeepsIntent(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.mgr.RequestSave("clip2.mp4"))
	downloads := f.requester.downloads()
	require.Len(t, downloads, 1)
	assert.Equal(t, "", downloads[0].PlayerID, "save-only download sends no player")

	f.mgr.OnChunk([]byte("partial"))
	f.mgr.OnDownloadError("File 'clip2.mp4' not found on server.")

	require.Len(t, f.notifier.errs, 1)
	assert.Equal(t, "File 'clip2.mp4' not found on server.", errors.Unwrap(f.notifier.errs[0]).Error())
	assert.True(t, fault.Is(f.notifier.errs[0], fault.KindTransfer))
	assert.False(t, f.mgr.Active())
	assert.Empty(t, f.persister.saved)

	st, _ := f.mgr.Snapshot("clip2.mp4")
	assert.Equal(t, StateFailed, st.State)
	assert.True(t, st.SaveRequested, "flags are left as they were")
	assert.Zero(t, st.BufferedBytes)

	// Trying again works and the kept intent resolves.
	require.NoError(t, f.mgr.RequestSave("clip2.mp4"))
	assert.Len(t, f.requester.downloads(), 2)
	f.mgr.OnChunk([]byte("whole"))
	f.mgr.OnDownloadComplete("clip2.mp4", "")
	assert.Equal(t, map[string]string{"clip2.mp4": "whole"}, f.persister.saved)
}

func TestSingleActiveTransferQueuesOthers(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.mgr.RequestPlay("a.mp4", "p"))
	require.NoError(t, f.mgr.RequestPlay("b.mp4", "p"))
	require.NoError(t, f.mgr.RequestSave("c.mp4"))
	require.NoError(t, f.mgr.RequestSave("b.mp4"))

	assert.Len(t, f.requester.downloads(), 1)
	assert.Equal(t, "a.mp4", f.mgr.ActiveFilename())
	assert.Equal(t, []string{"b.mp4", "c.mp4"}, f.mgr.Pending())

	f.mgr.OnChunk([]byte("a"))
	f.mgr.OnDownloadComplete("a.mp4", "p")

	downloads := f.requester.downloads()
	require.Len(t, downloads, 2)
	assert.Equal(t, "b.mp4", downloads[1].Filename)
	assert.Equal(t, "p", downloads[1].PlayerID)
	assert.Equal(t, []string{"c.mp4"}, f.mgr.Pending())

	f.mgr.OnChunk([]byte("b"))
	f.mgr.OnDownloadComplete("b.mp4", "p")
	f.mgr.OnChunk([]byte("c"))
	f.mgr.OnDownloadComplete("c.mp4", "")

	assert.Len(t, f.requester.downloads(), 3)
	assert.Equal(t, []string{"b.mp4", "c.mp4"}, f.persister.order)
	assert.Len(t, f.renderer.calls, 2)
	assert.Empty(t, f.mgr.Pending())
}

func TestCompletionIsIdempotent(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.mgr.RequestPlay("clip1.mp4", "p"))
	require.NoError(t, f.mgr.RequestSave("clip1.mp4"))
	f.mgr.OnChunk([]byte("xyz"))
	f.mgr.OnDownloadComplete("clip1.mp4", "p")
	f.mgr.OnDownloadComplete("clip1.mp4", "p")

	assert.Len(t, f.renderer.calls, 1)
	assert.Len(t, f.persister.order, 1)
	assert.Empty(t, f.notifier.errs)
}

func TestChunksWithoutActiveTransferAreDropped(t *testing.T) {
	f := newFixture()
	f.mgr.OnChunk([]byte("stray"))
	assert.False(t, f.mgr.Active())
	_, ok := f.mgr.Snapshot("anything")
	assert.False(t, ok)
}

func TestErrorWithoutActiveTransferIsSurfaced(t *testing.T) {
	f := newFixture()
	f.mgr.OnDownloadError("boom")
	require.Len(t, f.notifier.errs, 1)
	assert.True(t, fault.Is(f.notifier.errs[0], fault.KindTransfer))
}

func TestCompletionForDifferentFilename(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.mgr.RequestPlay("a.mp4", "p"))
	f.mgr.OnChunk([]byte("data"))
	f.mgr.OnDownloadComplete("other.mp4", "p")

	clip, ok := f.mgr.Clip("other.mp4")
	require.True(t, ok)
	assert.Equal(t, "data", string(clip.Data))

	st, _ := f.mgr.Snapshot("a.mp4")
	assert.Equal(t, StateIdle, st.State)
	assert.True(t, st.PlayRequested)
	assert.False(t, f.mgr.Active())

	require.Len(t, f.notifier.errs, 1)
	assert.True(t, fault.Is(f.notifier.errs[0], fault.KindTransfer))
	assert.Contains(t, f.notifier.errs[0].Error(), "a.mp4 was not played or saved")
}

func TestCompletionNeverReplacesAssembledClip(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.mgr.RequestPlay("a.mp4", "p"))
	f.mgr.OnChunk([]byte("AAAA"))
	f.mgr.OnDownloadComplete("a.mp4", "p")
	first, ok := f.mgr.Clip("a.mp4")
	require.True(t, ok)

	require.NoError(t, f.mgr.RequestSave("b.mp4"))
	require.NoError(t, f.mgr.RequestSave("c.mp4"))
	f.mgr.OnChunk([]byte("BBBB"))
	f.mgr.OnDownloadComplete("a.mp4", "")

	clip, ok := f.mgr.Clip("a.mp4")
	require.True(t, ok)
	assert.Same(t, first, clip)
	assert.Equal(t, "AAAA", string(clip.Data))

	_, ok = f.mgr.Clip("b.mp4")
	assert.False(t, ok)
	st, _ := f.mgr.Snapshot("b.mp4")
	assert.Equal(t, StateIdle, st.State)
	assert.True(t, st.SaveRequested, "intent is kept for an explicit retry")
	assert.Empty(t, f.persister.order)

	require.Len(t, f.notifier.errs, 1)
	assert.True(t, fault.Is(f.notifier.errs[0], fault.KindTransfer))
	assert.Contains(t, f.notifier.errs[0].Error(), "b.mp4")

	assert.Equal(t, "c.mp4", f.mgr.ActiveFilename(), "queue advances after the mismatch")
	assert.Len(t, f.requester.downloads(), 3)
}

func TestStallTimeoutSynthesizesError(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.mgr.RequestPlay("slow.mp4", "p"))
	require.NoError(t, f.mgr.RequestPlay("next.mp4", "p"))
	f.mgr.OnChunk([]byte("1"))

	assert.Equal(t, 1, f.scheduler.fireLive(), "only the latest timer is live")

	require.Len(t, f.notifier.errs, 1)
	assert.True(t, fault.Is(f.notifier.errs[0], fault.KindTransfer))
	assert.Contains(t, f.notifier.errs[0].Error(), "timed out")

	st, _ := f.mgr.Snapshot("slow.mp4")
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "next.mp4", f.mgr.ActiveFilename(), "queue advances after a stall")
}

func TestStallTimerCancelledOnCompletion(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.mgr.RequestPlay("a.mp4", "p"))
	f.mgr.OnDownloadComplete("a.mp4", "p")

	assert.Equal(t, 0, f.scheduler.fireLive())
	assert.Empty(t, f.notifier.errs)
}

func TestSendFailureClearsActive(t *testing.T) {
	f := newFixture()
	f.requester.err = errors.New("data channel closed")

	err := f.mgr.RequestPlay("a.mp4", "p")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindTransport))
	assert.False(t, f.mgr.Active())
	require.Len(t, f.notifier.errs, 1)

	st, _ := f.mgr.Snapshot("a.mp4")
	assert.Equal(t, StateFailed, st.State)
	assert.True(t, st.PlayRequested)
}

func TestMaxClipBytes(t *testing.T) {
	f := newFixture()
	f.mgr.cfg.MaxClipBytes = 4

	require.NoError(t, f.mgr.RequestSave("big.mp4"))
	f.mgr.OnChunk([]byte("123"))
	f.mgr.OnChunk([]byte("45"))

	assert.False(t, f.mgr.Active())
	require.Len(t, f.notifier.errs, 1)
	assert.Contains(t, f.notifier.errs[0].Error(), ErrClipTooLarge.Error())
}

func TestRequestLatestAndCatalog(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.mgr.RequestCatalog())
	require.NoError(t, f.mgr.RequestLatest(0))
	require.NoError(t, f.mgr.RequestLatest(12))

	assert.Equal(t, []control.Message{
		control.RequestCatalog{},
		control.RequestLatestVideos{Amount: DefaultAmount},
		control.RequestLatestVideos{Amount: 12},
	}, f.requester.sent)
}

func TestSearchValidation(t *testing.T) {
	tests := []struct {
		name     string
		objects  []string
		start    string
		end      string
		wantErr  error
		expected control.Message
	}{
		{name: "nothing", objects: []string{" ", ""}, wantErr: ErrEmptySearch},
		{name: "bad date", start: "yesterday", wantErr: ErrInvalidSearchDate},
		{
			name:     "objects only",
			objects:  []string{"person", " car "},
			expected: control.RequestSearch{Objects: []string{"person", "car"}, StartDate: "", EndDate: ""},
		},
		{
			name:     "date range",
			start:    "2024-03-01T08:00",
			end:      "2024-03-02T08:00",
			expected: control.RequestSearch{Objects: []string{}, StartDate: "2024-03-01T08:00", EndDate: "2024-03-02T08:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			err := f.mgr.Search(tt.objects, tt.start, tt.end)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.requester.sent, "nothing is sent for an invalid search")
				return
			}
			require.NoError(t, err)
			require.Len(t, f.requester.sent, 1)
			assert.Equal(t, tt.expected, f.requester.sent[0])
		})
	}
}

func TestEmptyFilenameRejected(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.mgr.RequestPlay("", "p"), ErrEmptyFilename)
	assert.ErrorIs(t, f.mgr.RequestSave(""), ErrEmptyFilename)
	assert.Empty(t, f.requester.sent)
}

func TestObserverSeesDownloadLifecycle(t *testing.T) {
	f := newFixture()
	obs := &mockObserver{}
	f.mgr.observer = obs
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.mgr.now = func() time.Time { return now }

	require.NoError(t, f.mgr.RequestPlay("a.mp4", "p"))
	require.NoError(t, f.mgr.RequestSave("b.mp4"))
	f.mgr.OnChunk([]byte("12"))
	f.mgr.OnChunk([]byte("34"))
	now = now.Add(progressInterval)
	f.mgr.OnChunk([]byte("56"))
	f.mgr.OnDownloadComplete("a.mp4", "p")
	f.mgr.OnDownloadError("network reset")

	want := []statusReport{
		{"a.mp4", StateActive, 0, []string{}},
		{"b.mp4", StateQueued, 0, []string{"b.mp4"}},
		{"a.mp4", StateActive, 2, []string{"b.mp4"}},
		{"a.mp4", StateActive, 6, []string{"b.mp4"}},
		{"a.mp4", StateCompleted, 0, []string{"b.mp4"}},
		{"b.mp4", StateActive, 0, []string{}},
		{"b.mp4", StateFailed, 0, []string{}},
	}
	assert.Equal(t, want, obs.reports)
}
