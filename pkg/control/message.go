// Package control defines the JSON messages exchanged with the device over
// the data channel and routes inbound frames to their consumers.
package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rescp17/intrusionViewer/pkg/fault"
)

// Action is the discriminator of a control message.
type Action string

const (
	ActionRequestLatest    Action = "request_latest_intrusion_videos"
	ActionSearch           Action = "search_for_intrusion_videos"
	ActionRequestDownload  Action = "request_download"
	ActionRequestCatalog   Action = "request_yolox_objects"
	ActionSendLatest       Action = "send_latest_intrusion_videos"
	ActionSendSearched     Action = "send_searched_intrusion_videos"
	ActionSendCatalog      Action = "send_yolox_objects"
	ActionDownloadComplete Action = "download_complete"
	ActionDownloadError    Action = "download_error"
	ActionError            Action = "error"
)

// SearchDateLayout is the minute-precision layout the device parses search bounds with.
const SearchDateLayout = "2006-01-02T15:04"

var (
	ErrUnknownAction = errors.New("unknown control action")
	ErrMissingAction = errors.New("control message has no action")
)

// Message is any control message. Action returns its discriminator.
type Message interface {
	Action() Action
}

// --- Requests (viewer to device) ---

type RequestLatestVideos struct {
	Amount int `json:"amount"`
}

type RequestSearch struct {
	Objects   []string `json:"objects"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
}

// RequestDownload asks for one clip. PlayerID is sent as null when empty.
type RequestDownload struct {
	Filename string `json:"filename"`
	PlayerID string `json:"-"`
}

type RequestCatalog struct{}

// --- Responses (device to viewer) ---

// VideosResponse carries either the latest or the searched clip list.
type VideosResponse struct {
	Searched bool      `json:"-"`
	Videos   VideoList `json:"videos_with_metadata"`
}

type CatalogResponse struct {
	Objects []string `json:"yolox_objects"`
}

type DownloadComplete struct {
	Filename string `json:"filename"`
	PlayerID string `json:"-"`
}

type DownloadError struct {
	Message string `json:"message"`
}

type ErrorMessage struct {
	Message string `json:"error_message"`
}

func (RequestLatestVideos) Action() Action { return ActionRequestLatest }
func (RequestSearch) Action() Action       { return ActionSearch }
func (RequestDownload) Action() Action     { return ActionRequestDownload }
func (RequestCatalog) Action() Action      { return ActionRequestCatalog }
func (DownloadComplete) Action() Action    { return ActionDownloadComplete }
func (DownloadError) Action() Action       { return ActionDownloadError }
func (ErrorMessage) Action() Action        { return ActionError }
func (CatalogResponse) Action() Action     { return ActionSendCatalog }

func (v VideosResponse) Action() Action {
	if v.Searched {
		return ActionSendSearched
	}
	return ActionSendLatest
}

// ListTarget returns the list and player element ids a response renders into.
func (v VideosResponse) ListTarget() (listID, playerID string) {
	if v.Searched {
		return SearchListID, SearchPlayerID
	}
	return RecentListID, RecentPlayerID
}

// Element ids the clip lists and their players are known by.
const (
	RecentListID   = "recent_intrusion_list"
	RecentPlayerID = "recent_intrusion_video_player"
	SearchListID   = "search_intrusion_list"
	SearchPlayerID = "searched_intrusion_video_player"
)

// wireDownload is shared by request_download and download_complete, whose
// player id is a nullable string.
type wireDownload struct {
	Action   Action  `json:"action"`
	Filename string  `json:"filename"`
	PlayerID *string `json:"video_player_id"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Encode serializes a message with its action discriminator.
func Encode(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case RequestDownload:
		return json.Marshal(wireDownload{Action: msg.Action(), Filename: msg.Filename, PlayerID: nullable(msg.PlayerID)})
	case DownloadComplete:
		return json.Marshal(wireDownload{Action: msg.Action(), Filename: msg.Filename, PlayerID: nullable(msg.PlayerID)})
	case RequestSearch:
		if msg.Objects == nil {
			msg.Objects = []string{}
		}
		return marshalWithAction(msg.Action(), msg)
	case RequestCatalog:
		return json.Marshal(struct {
			Action Action `json:"action"`
		}{msg.Action()})
	case nil:
		return nil, errors.New("cannot encode nil message")
	default:
		return marshalWithAction(m.Action(), m)
	}
}

func marshalWithAction(action Action, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", action, err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", action, err)
	}
	tag, _ := json.Marshal(action)
	fields["action"] = tag
	return json.Marshal(fields)
}

// Decode parses a text frame. Malformed input and unknown actions are
// reported as protocol decode errors.
func Decode(data []byte) (Message, error) {
	var head struct {
		Action Action `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fault.ProtocolDecode("decode", fmt.Errorf("malformed control message: %w", err))
	}

	var (
		msg Message
		err error
	)
	switch head.Action {
	case "":
		return nil, fault.ProtocolDecode("decode", ErrMissingAction)
	case ActionSendLatest, ActionSendSearched:
		var v VideosResponse
		err = json.Unmarshal(data, &v)
		v.Searched = head.Action == ActionSendSearched
		msg = v
	case ActionSendCatalog:
		var v CatalogResponse
		err = json.Unmarshal(data, &v)
		msg = v
	case ActionDownloadComplete:
		var w wireDownload
		err = json.Unmarshal(data, &w)
		v := DownloadComplete{Filename: w.Filename}
		if w.PlayerID != nil {
			v.PlayerID = *w.PlayerID
		}
		msg = v
	case ActionRequestDownload:
		var w wireDownload
		err = json.Unmarshal(data, &w)
		v := RequestDownload{Filename: w.Filename}
		if w.PlayerID != nil {
			v.PlayerID = *w.PlayerID
		}
		msg = v
	case ActionDownloadError:
		var v DownloadError
		err = json.Unmarshal(data, &v)
		msg = v
	case ActionError:
		var v ErrorMessage
		err = json.Unmarshal(data, &v)
		msg = v
	case ActionRequestLatest:
		var v RequestLatestVideos
		err = json.Unmarshal(data, &v)
		msg = v
	case ActionSearch:
		var v RequestSearch
		err = json.Unmarshal(data, &v)
		msg = v
	case ActionRequestCatalog:
		msg = RequestCatalog{}
	default:
		return nil, fault.ProtocolDecode("decode", fmt.Errorf("%w: %q", ErrUnknownAction, head.Action))
	}
	if err != nil {
		return nil, fault.ProtocolDecode("decode", fmt.Errorf("malformed %s: %w", head.Action, err))
	}
	return msg, nil
}
