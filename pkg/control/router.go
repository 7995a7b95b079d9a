package control

import (
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

// ListRenderer displays a clip list in the named list and player elements.
type ListRenderer interface {
	RenderList(videos VideoList, listID, playerID string)
}

// CatalogConsumer receives the object classes the device can search by.
type CatalogConsumer interface {
	SetCatalog(objects []string)
}

// Notifier surfaces errors to the user.
type Notifier interface {
	Notify(err error)
}

// TransferSink consumes download traffic.
type TransferSink interface {
	Active() bool
	OnChunk(data []byte)
	OnDownloadComplete(filename, playerID string)
	OnDownloadError(message string)
}

// DeviceError is an error message reported by the device, shown verbatim.
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string { return e.Message }

// Router classifies data channel frames and dispatches them.
type Router struct {
	lists     ListRenderer
	catalog   CatalogConsumer
	transfers TransferSink
	notifier  Notifier
	logger    *slog.Logger
}

// NewRouter builds a router. Any collaborator may be nil, in which case
// messages addressed to it are logged and dropped.
func NewRouter(lists ListRenderer, catalog CatalogConsumer, transfers TransferSink, notifier Notifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		lists:     lists,
		catalog:   catalog,
		transfers: transfers,
		notifier:  notifier,
		logger:    logger,
	}
}

// Route handles one frame. A returned error has already been logged; the
// frame it belongs to was dropped.
func (r *Router) Route(f Frame) error {
	if f.Kind == FrameBinary {
		r.routeChunk(f.Data)
		return nil
	}

	msg, err := Decode(f.Data)
	if err != nil {
		r.logger.Warn("Dropping control message", "error", err)
		return err
	}
	r.dispatch(msg)
	return nil
}

func (r *Router) routeChunk(data []byte) {
	if r.transfers == nil || !r.transfers.Active() {
		r.logger.Warn("Binary frame received with no active transfer", "size", len(data))
		return
	}
	r.transfers.OnChunk(data)
}

func (r *Router) dispatch(msg Message) {
	switch m := msg.(type) {
	case VideosResponse:
		listID, playerID := m.ListTarget()
		r.logger.Info("Received clip list", "action", m.Action(), "count", len(m.Videos))
		if r.lists != nil {
			r.lists.RenderList(m.Videos, listID, playerID)
		}
	case CatalogResponse:
		objects := lo.Uniq(lo.Filter(m.Objects, func(o string, _ int) bool {
			return strings.TrimSpace(o) != ""
		}))
		r.logger.Info("Received object catalog", "count", len(objects))
		if r.catalog != nil {
			r.catalog.SetCatalog(objects)
		}
	case DownloadComplete:
		if r.transfers != nil {
			r.transfers.OnDownloadComplete(m.Filename, m.PlayerID)
		}
	case DownloadError:
		if r.transfers != nil {
			r.transfers.OnDownloadError(m.Message)
		}
	case ErrorMessage:
		r.logger.Warn("Device reported an error", "message", m.Message)
		if r.notifier != nil {
			r.notifier.Notify(&DeviceError{Message: m.Message})
		}
	default:
		r.logger.Warn("Ignoring control message not addressed to the viewer", "action", msg.Action())
	}
}
