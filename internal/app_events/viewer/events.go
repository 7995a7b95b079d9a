package viewer

import (
	appevents "github.com/rescp17/intrusionViewer/internal/app_events"
	"github.com/rescp17/intrusionViewer/pkg/control"
	"github.com/rescp17/intrusionViewer/pkg/session"
	"github.com/rescp17/intrusionViewer/pkg/transfer"
)

// --- App Events (from TUI to App) ---

// PlayMsg asks for a clip to be fetched and handed to a player.
type PlayMsg struct {
	appevents.Event
	Filename string
	PlayerID string
}

// SaveMsg asks for a clip to be fetched and written to disk.
type SaveMsg struct {
	appevents.Event
	Filename string
}

// RefreshMsg asks the device for its most recent clips.
// Amount <= 0 uses the configured default.
type RefreshMsg struct {
	appevents.Event
	Amount int
}

// SearchMsg asks the device for clips matching the criteria.
// Dates use control.SearchDateLayout; empty means unset.
type SearchMsg struct {
	appevents.Event
	Objects   []string
	StartDate string
	EndDate   string
}

// DisconnectMsg tears the session down.
type DisconnectMsg struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = PlayMsg{}
	_ appevents.AppEvent = SaveMsg{}
	_ appevents.AppEvent = RefreshMsg{}
	_ appevents.AppEvent = SearchMsg{}
	_ appevents.AppEvent = DisconnectMsg{}
)

// --- UI Messages (from App to TUI) ---

type PhaseMsg struct {
	appevents.UIMessage
	Phase session.Phase
}

// VideosMsg carries a clip list for the list identified by ListID.
type VideosMsg struct {
	appevents.UIMessage
	Videos   control.VideoList
	ListID   string
	PlayerID string
}

type CatalogMsg struct {
	appevents.UIMessage
	Objects []string
}

type PlayingMsg struct {
	appevents.UIMessage
	Filename string
	PlayerID string
	Path     string
}

type SavedMsg struct {
	appevents.UIMessage
	Filename string
	Path     string
	Size     int64
}

// DownloadMsg reports a change of one download. Pending lists the clips
// queued behind the active download.
type DownloadMsg struct {
	appevents.UIMessage
	Filename      string
	State         transfer.State
	BufferedBytes int64
	Chunks        int
	Pending       []string
}

// StatusMsg is a transient line for the status bar.
type StatusMsg struct {
	appevents.UIMessage
	Text string
}

type TrackMsg struct {
	appevents.UIMessage
	TrackID string
	Codec   string
	Path    string
}

var (
	_ appevents.AppUIMessage = PhaseMsg{}
	_ appevents.AppUIMessage = VideosMsg{}
	_ appevents.AppUIMessage = CatalogMsg{}
	_ appevents.AppUIMessage = PlayingMsg{}
	_ appevents.AppUIMessage = SavedMsg{}
	_ appevents.AppUIMessage = DownloadMsg{}
	_ appevents.AppUIMessage = StatusMsg{}
	_ appevents.AppUIMessage = TrackMsg{}
)
