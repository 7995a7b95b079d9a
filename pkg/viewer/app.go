// Package viewer wires the session, the transfer manager and the local
// collaborators into the application controller the TUI and the headless
// commands drive.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	appevents "github.com/rescp17/intrusionViewer/internal/app_events"
	viewerevents "github.com/rescp17/intrusionViewer/internal/app_events/viewer"
	"github.com/rescp17/intrusionViewer/internal/config"
	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/fault"
	"github.com/rescp17/intrusionViewer/pkg/media"
	"github.com/rescp17/intrusionViewer/pkg/receiver"
	"github.com/rescp17/intrusionViewer/pkg/session"
	"github.com/rescp17/intrusionViewer/pkg/signaling"
	"github.com/rescp17/intrusionViewer/pkg/transfer"
	webrtcPkg "github.com/rescp17/intrusionViewer/pkg/webrtc"
)

const uiBuffer = 64

// App is the main application logic controller for the viewer.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	session  *session.Session
	manager  *transfer.Manager
	recorder *media.Recorder

	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
	stopped    chan struct{}
}

type options struct {
	logger   *slog.Logger
	signaler session.Signaler
	api      *webrtcPkg.WebRTCAPI
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSignaler replaces the websocket signaling client.
func WithSignaler(s session.Signaler) Option {
	return func(o *options) { o.signaler = s }
}

// WithWebRTCAPI replaces the default pion API, e.g. to disable mDNS candidates.
func WithWebRTCAPI(api *webrtcPkg.WebRTCAPI) Option {
	return func(o *options) { o.api = api }
}

// NewApp builds the viewer from a validated configuration.
func NewApp(cfg config.Config, opts ...Option) *App {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.api == nil {
		o.api = webrtcPkg.NewWebRTCAPI()
	}
	if o.signaler == nil {
		o.signaler = signaling.NewClient(cfg.SignalURL, cfg.Identity, signaling.WithLogger(o.logger))
	}

	a := &App{
		cfg:        cfg,
		logger:     o.logger,
		uiMessages: make(chan tea.Msg, uiBuffer),
		appEvents:  make(chan appevents.AppEvent),
		stopped:    make(chan struct{}),
	}

	a.recorder = media.NewRecorder(cfg.Live.RecordPath, o.logger, func(at media.Attachment) {
		a.emit(viewerevents.TrackMsg{TrackID: at.TrackID, Codec: at.Codec, Path: at.Path})
	})

	peerCfg := webrtcPkg.Config{ICEServers: iceServers(cfg.ICEServerList())}
	api := o.api
	a.session = session.New(session.Dependencies{
		Signaler: o.signaler,
		NewPeer: func(h webrtcPkg.Handlers) (session.Peer, error) {
			conn, err := api.NewViewerConnection(peerCfg, h, o.logger)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		Media:    a.recorder,
		Observer: a,
		Logger:   o.logger,
	})

	player := receiver.NewPlayer(cfg.PlayerDir, cfg.PlayerCommand, func(p receiver.Playback) {
		a.emit(viewerevents.PlayingMsg{Filename: p.Filename, PlayerID: p.PlayerID, Path: p.Path})
	})
	saver := receiver.NewDiskSaver(cfg.SaveDir, func(s receiver.SavedClip) {
		a.emit(viewerevents.SavedMsg{Filename: s.Filename, Path: s.Path, Size: s.Node.Size})
	})

	a.manager = transfer.NewManager(cfg.TransferSettings(), transfer.Dependencies{
		Requester: a.session,
		Renderer:  player,
		Persister: saver,
		Notifier:  a,
		Scheduler: a.session,
		Observer:  a,
		Logger:    o.logger,
	})
	router := control.NewRouter(a, a, a.manager, a, o.logger)
	a.session.Bind(router, a.manager)
	return a
}

func iceServers(servers []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		out = append(out, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// SessionID identifies this run in the logs.
func (a *App) SessionID() string {
	return a.session.ID()
}

// Run starts the session and serves UI events until ctx is cancelled or the
// user disconnects.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer close(a.stopped)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return a.session.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-a.appEvents:
				a.handleEvent(event)
			}
		}
	})
	err := g.Wait()
	a.recorder.Wait()
	return err
}

func (a *App) handleEvent(event appevents.AppEvent) {
	switch e := event.(type) {
	case viewerevents.PlayMsg:
		a.session.Do(func() {
			if err := a.manager.RequestPlay(e.Filename, e.PlayerID); err != nil {
				a.sendAndLogError("Failed to play "+e.Filename, err)
			}
		})
	case viewerevents.SaveMsg:
		a.session.Do(func() {
			if err := a.manager.RequestSave(e.Filename); err != nil {
				a.sendAndLogError("Failed to save "+e.Filename, err)
			}
		})
	case viewerevents.RefreshMsg:
		a.session.Do(func() {
			if err := a.manager.RequestLatest(e.Amount); err != nil {
				a.sendAndLogError("Failed to refresh", err)
			}
		})
	case viewerevents.SearchMsg:
		a.session.Do(func() {
			if err := a.manager.Search(e.Objects, e.StartDate, e.EndDate); err != nil {
				a.sendAndLogError("Search failed", err)
			}
		})
	case viewerevents.DisconnectMsg:
		a.session.Disconnect()
	default:
		a.logger.Warn("Received unhandled app event", "event", fmt.Sprintf("%T", event))
	}
}

// emit delivers a message to the UI, dropping it once the app has stopped.
func (a *App) emit(msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	case <-a.stopped:
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	a.logger.Error(baseMessage, "error", err, "kind", fault.KindOf(err).String())
	a.emit(appevents.AppErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

// RenderList implements control.ListRenderer.
func (a *App) RenderList(videos control.VideoList, listID, playerID string) {
	a.emit(viewerevents.VideosMsg{Videos: videos, ListID: listID, PlayerID: playerID})
}

// SetCatalog implements control.CatalogConsumer.
func (a *App) SetCatalog(objects []string) {
	a.emit(viewerevents.CatalogMsg{Objects: objects})
}

// Notify implements the notifier of the router, the manager and the session.
func (a *App) Notify(err error) {
	var devErr *control.DeviceError
	var relayErr *session.DeviceError
	if errors.As(err, &devErr) || errors.As(err, &relayErr) {
		a.logger.Warn("Device reported an error", "error", err)
		a.emit(appevents.AppErrorMsg{Err: err})
		return
	}
	a.logger.Error("Session error", "error", err, "kind", fault.KindOf(err).String())
	a.emit(appevents.AppErrorMsg{Err: err, Fatal: fault.ActionFor(err) == fault.ActionFail})
}

// TransferChanged implements transfer.StatusObserver.
func (a *App) TransferChanged(st transfer.Status, pending []string) {
	a.emit(viewerevents.DownloadMsg{
		Filename:      st.Filename,
		State:         st.State,
		BufferedBytes: st.BufferedBytes,
		Chunks:        st.Chunks,
		Pending:       pending,
	})
}

// PhaseChanged implements session.Observer.
func (a *App) PhaseChanged(p session.Phase) {
	a.emit(viewerevents.PhaseMsg{Phase: p})
}

// Status implements session.Observer.
func (a *App) Status(text string) {
	a.emit(viewerevents.StatusMsg{Text: text})
}
