package transfer

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/fault"
)

// progressInterval bounds how often chunk arrivals are reported to the observer.
const progressInterval = 250 * time.Millisecond

// Requester sends control messages to the device.
type Requester interface {
	Send(msg control.Message) error
}

// Renderer displays an assembled clip in the named player.
type Renderer interface {
	Render(clip *Clip, playerID string) error
}

// Persister stores an assembled clip under a suggested filename.
type Persister interface {
	Persist(clip *Clip, suggestedFilename string) (string, error)
}

// Notifier surfaces errors to the user.
type Notifier interface {
	Notify(err error)
}

// StatusObserver is told whenever a download is queued, grows, completes or fails.
// pending lists the clips waiting behind the active download, in order.
type StatusObserver interface {
	TransferChanged(st Status, pending []string)
}

// Scheduler runs f after d on the goroutine that owns the manager.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

type record struct {
	filename      string
	state         State
	buffer        bytes.Buffer
	chunks        int
	clip          *Clip
	playRequested bool
	saveRequested bool
	playerID      string
}

// Manager owns every download of a session: the single in-flight buffer,
// the assembled clips and the pending play and save intents per clip.
//
// A Manager is not safe for concurrent use. All methods must be called from
// the goroutine that runs the session event loop, and the Scheduler must
// deliver timer callbacks on that same goroutine.
type Manager struct {
	cfg       Config
	requester Requester
	renderer  Renderer
	persister Persister
	notifier  Notifier
	scheduler Scheduler
	observer  StatusObserver
	logger    *slog.Logger
	now       func() time.Time

	records map[string]*record
	active  *record
	queue   []*record

	cancelStall  func()
	stallSeq     uint64
	lastProgress time.Time
}

// Dependencies are the collaborators of a Manager. Scheduler may be nil,
// which disables the stall timeout. Observer may be nil.
type Dependencies struct {
	Requester Requester
	Renderer  Renderer
	Persister Persister
	Notifier  Notifier
	Scheduler Scheduler
	Observer  StatusObserver
	Logger    *slog.Logger
}

// NewManager creates a manager with the given configuration and collaborators.
func NewManager(cfg Config, deps Dependencies) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		requester: deps.Requester,
		renderer:  deps.Renderer,
		persister: deps.Persister,
		notifier:  deps.Notifier,
		scheduler: deps.Scheduler,
		observer:  deps.Observer,
		logger:    logger,
		now:       time.Now,
		records:   make(map[string]*record),
	}
}

// RequestPlay renders the clip in playerID, downloading it first if needed.
func (m *Manager) RequestPlay(filename, playerID string) error {
	if filename == "" {
		return ErrEmptyFilename
	}
	rec := m.record(filename)
	if rec.clip != nil {
		m.render(rec, rec.clip, playerID)
		return nil
	}
	rec.playRequested = true
	if playerID != "" {
		rec.playerID = playerID
	}
	return m.want(rec)
}

// RequestSave persists the clip, downloading it first if needed.
func (m *Manager) RequestSave(filename string) error {
	if filename == "" {
		return ErrEmptyFilename
	}
	rec := m.record(filename)
	if rec.clip != nil {
		m.persist(rec, rec.clip)
		return nil
	}
	rec.saveRequested = true
	return m.want(rec)
}

// Active reports whether a download is accumulating chunks.
func (m *Manager) Active() bool {
	return m.active != nil
}

// ActiveFilename returns the clip being downloaded, or "".
func (m *Manager) ActiveFilename() string {
	if m.active == nil {
		return ""
	}
	return m.active.filename
}

// Pending returns the filenames waiting for the active download to finish, in order.
func (m *Manager) Pending() []string {
	out := make([]string, 0, len(m.queue))
	for _, rec := range m.queue {
		if rec.state == StateQueued {
			out = append(out, rec.filename)
		}
	}
	return out
}

// OnChunk appends a binary frame to the active download.
func (m *Manager) OnChunk(data []byte) {
	if m.active == nil {
		m.logger.Warn("Dropping chunk", "error", ErrNoActiveTransfer, "size", len(data))
		return
	}
	rec := m.active
	if m.cfg.MaxClipBytes > 0 && int64(rec.buffer.Len()+len(data)) > m.cfg.MaxClipBytes {
		m.fail(fmt.Sprintf("%s: %s", rec.filename, ErrClipTooLarge))
		return
	}
	rec.buffer.Write(data)
	rec.chunks++
	m.armStall()
	if now := m.now(); now.Sub(m.lastProgress) >= progressInterval {
		m.lastProgress = now
		m.report(rec)
	}
}

// OnDownloadComplete finalizes the active download into a clip stored under
// filename and resolves the pending intents of that clip. A completion that
// names another clip than the active one abandons the active download's
// intents; an already assembled clip is never replaced.
func (m *Manager) OnDownloadComplete(filename, playerID string) {
	if m.active == nil {
		m.logger.Warn("Ignoring download completion", "error", ErrNoActiveTransfer, "filename", filename)
		return
	}
	active := m.active
	if filename == "" {
		filename = active.filename
	}
	target := m.record(filename)

	m.stopStall()
	m.active = nil

	data := bytes.Clone(active.buffer.Bytes())
	active.buffer.Reset()
	active.chunks = 0

	if target != active {
		m.logger.Warn("Download completion does not match the active transfer",
			"active", active.filename, "completed", filename)
		m.transition(active, StateIdle)
		m.report(active)
		m.notify(fault.Transfer("download", fmt.Sprintf(
			"device completed %s while %s was downloading, %s was not played or saved",
			filename, active.filename, active.filename)))
		if target.clip != nil {
			m.logger.Warn("Discarding data for an already assembled clip", "filename", filename, "size", len(data))
			m.next()
			return
		}
	}

	clip := newClip(filename, data, m.now())
	target.clip = clip
	target.state = StateCompleted
	m.logger.Info("Download complete", "filename", filename, "size", clip.Size(), "mime", clip.MIME)
	m.report(target)

	if playerID == "" {
		playerID = target.playerID
	}
	if target.playRequested {
		if playerID != "" {
			m.render(target, clip, playerID)
		} else {
			m.logger.Warn("Play requested without a player, leaving request pending", "filename", filename)
		}
	}
	if target.saveRequested {
		m.persist(target, clip)
	}

	m.next()
}

// OnDownloadError discards the active download and surfaces message.
// Pending intents are kept so the user can ask again.
func (m *Manager) OnDownloadError(message string) {
	if m.active == nil {
		m.logger.Warn("Download error with no active transfer", "message", message)
		m.notify(fault.Transfer("download", message))
		return
	}
	m.fail(message)
}

// RequestLatest asks for the most recent clips. amount <= 0 uses the configured default.
func (m *Manager) RequestLatest(amount int) error {
	if amount <= 0 {
		amount = m.cfg.DefaultAmount
	}
	return m.send(control.RequestLatestVideos{Amount: amount})
}

// Search asks for clips matching any of the given criteria. Dates use the
// YYYY-MM-DDTHH:MM layout; empty values are ignored.
func (m *Manager) Search(objects []string, startDate, endDate string) error {
	cleaned := make([]string, 0, len(objects))
	for _, o := range objects {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	startDate, endDate = strings.TrimSpace(startDate), strings.TrimSpace(endDate)
	if len(cleaned) == 0 && startDate == "" && endDate == "" {
		return ErrEmptySearch
	}
	for _, d := range []string{startDate, endDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(control.SearchDateLayout, d); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidSearchDate, d)
		}
	}
	return m.send(control.RequestSearch{Objects: cleaned, StartDate: startDate, EndDate: endDate})
}

// RequestCatalog asks for the object classes the device recognises.
func (m *Manager) RequestCatalog() error {
	return m.send(control.RequestCatalog{})
}

// Snapshot returns a copy of the state of one clip.
func (m *Manager) Snapshot(filename string) (Status, bool) {
	rec, ok := m.records[filename]
	if !ok {
		return Status{}, false
	}
	return rec.status(), true
}

// Clip returns the assembled clip for filename, if any.
func (m *Manager) Clip(filename string) (*Clip, bool) {
	rec, ok := m.records[filename]
	if !ok || rec.clip == nil {
		return nil, false
	}
	return rec.clip, true
}

func (rec *record) status() Status {
	st := Status{
		Filename:      rec.filename,
		State:         rec.state,
		BufferedBytes: int64(rec.buffer.Len()),
		Chunks:        rec.chunks,
		PlayRequested: rec.playRequested,
		SaveRequested: rec.saveRequested,
		PlayerID:      rec.playerID,
	}
	if rec.clip != nil {
		st.ClipSize = rec.clip.Size()
		st.CompletedAt = rec.clip.CompletedAt
	}
	return st
}

func (m *Manager) record(filename string) *record {
	rec, ok := m.records[filename]
	if !ok {
		rec = &record{filename: filename}
		m.records[filename] = rec
	}
	return rec
}

// want makes sure a download of rec is in flight or queued.
func (m *Manager) want(rec *record) error {
	switch {
	case m.active == rec:
		m.logger.Debug("Coalescing request into active download", "filename", rec.filename)
		return nil
	case m.active != nil:
		if rec.state != StateQueued {
			m.transition(rec, StateQueued)
			m.queue = append(m.queue, rec)
			m.logger.Info("Download queued", "filename", rec.filename, "active", m.active.filename, "position", len(m.queue))
			m.report(rec)
		}
		return nil
	default:
		return m.issue(rec)
	}
}

func (m *Manager) issue(rec *record) error {
	m.transition(rec, StateActive)
	rec.buffer.Reset()
	rec.chunks = 0
	m.active = rec

	req := control.RequestDownload{Filename: rec.filename}
	if rec.playRequested {
		req.PlayerID = rec.playerID
	}
	if err := m.send(req); err != nil {
		m.active = nil
		m.transition(rec, StateFailed)
		m.dropQueue()
		m.report(rec)
		m.notify(err)
		return err
	}
	m.logger.Info("Download requested", "filename", rec.filename, "player", req.PlayerID)
	m.report(rec)
	m.armStall()
	return nil
}

func (m *Manager) fail(message string) {
	rec := m.active
	m.stopStall()
	m.active = nil
	rec.buffer.Reset()
	rec.chunks = 0
	m.transition(rec, StateFailed)
	m.logger.Warn("Download failed", "filename", rec.filename, "message", message)
	m.report(rec)
	m.notify(fault.Transfer("download", message))
	m.next()
}

// next issues the oldest queued download, if any.
func (m *Manager) next() {
	for len(m.queue) > 0 && m.active == nil {
		rec := m.queue[0]
		m.queue = m.queue[1:]
		if rec.state != StateQueued {
			continue
		}
		if err := m.issue(rec); err != nil {
			return
		}
	}
}

func (m *Manager) dropQueue() {
	for _, rec := range m.queue {
		m.transition(rec, StateIdle)
	}
	if len(m.queue) > 0 {
		m.logger.Warn("Dropped queued downloads after send failure", "count", len(m.queue))
	}
	m.queue = nil
}

func (m *Manager) render(rec *record, clip *Clip, playerID string) {
	rec.playRequested = false
	if m.renderer == nil {
		m.logger.Warn("No renderer configured", "filename", clip.Filename)
		return
	}
	if err := m.renderer.Render(clip, playerID); err != nil {
		m.notify(fmt.Errorf("failed to play %s: %w", clip.Filename, err))
	}
}

func (m *Manager) persist(rec *record, clip *Clip) {
	rec.saveRequested = false
	if m.persister == nil {
		m.logger.Warn("No persister configured", "filename", clip.Filename)
		return
	}
	path, err := m.persister.Persist(clip, clip.Filename)
	if err != nil {
		m.notify(fmt.Errorf("failed to save %s: %w", clip.Filename, err))
		return
	}
	m.logger.Info("Clip saved", "filename", clip.Filename, "path", path)
}

func (m *Manager) send(msg control.Message) error {
	if m.requester == nil {
		return fault.Transport(string(msg.Action()), fmt.Errorf("no data channel"))
	}
	if err := m.requester.Send(msg); err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			return fault.Transport(string(msg.Action()), err)
		}
		return err
	}
	return nil
}

// report hands the observer a snapshot of rec and the queue behind the active download.
func (m *Manager) report(rec *record) {
	if m.observer != nil {
		m.observer.TransferChanged(rec.status(), m.Pending())
	}
}

func (m *Manager) notify(err error) {
	if m.notifier != nil {
		m.notifier.Notify(err)
	}
}

func (m *Manager) transition(rec *record, next State) {
	if !rec.state.CanTransitionTo(next) {
		m.logger.Warn("Unexpected transfer state change", "filename", rec.filename, "from", rec.state, "to", next)
	}
	rec.state = next
}

func (m *Manager) armStall() {
	m.stopStall()
	if m.scheduler == nil || m.cfg.StallTimeout <= 0 {
		return
	}
	m.stallSeq++
	seq := m.stallSeq
	timeout := m.cfg.StallTimeout
	m.cancelStall = m.scheduler.AfterFunc(timeout, func() {
		if seq != m.stallSeq || m.active == nil {
			return
		}
		m.fail(fmt.Sprintf("download of %s timed out after %s", m.active.filename, timeout))
	})
}

func (m *Manager) stopStall() {
	if m.cancelStall != nil {
		m.cancelStall()
		m.cancelStall = nil
	}
	m.stallSeq++
}
