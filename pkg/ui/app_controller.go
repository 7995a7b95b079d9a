package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/intrusionViewer/internal/app_events"
)

// AppController defines the contract between the UI and the backend application logic.
type AppController interface {
	// Run starts the session and blocks until it ends.
	Run(ctx context.Context) error

	// UIMessages returns a read-only channel for receiving messages from the backend to the UI.
	UIMessages() <-chan tea.Msg

	// AppEvents returns a write-only channel for the UI to send events to the backend.
	AppEvents() chan<- appevents.AppEvent
}
