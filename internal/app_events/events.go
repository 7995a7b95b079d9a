package appevents

// AppEvent is a marker interface for events sent from the TUI to the App.
// Only types embedding Event satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded in other event types to satisfy AppEvent.
type Event struct{}

func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from the App to the TUI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage is embedded in other types to satisfy AppUIMessage.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// AppErrorMsg reports an error the user should see.
// Fatal errors end the session; the TUI shows them and stops taking input.
type AppErrorMsg struct {
	UIMessage
	Err   error
	Fatal bool
}

var _ AppUIMessage = AppErrorMsg{}
