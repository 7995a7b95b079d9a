package viewer

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrSessionEnded is returned by RunUntil when the session stops before the
// handler is done.
var ErrSessionEnded = errors.New("session ended before the request completed")

// RunUntil runs the app without a TUI, feeding every UI message to handle
// until it reports done or fails. The session is torn down before returning.
func (a *App) RunUntil(ctx context.Context, handle func(msg tea.Msg) (done bool, err error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	// finish stops the session and drains the UI until Run has returned.
	finish := func(result error) error {
		cancel()
		for {
			select {
			case err := <-runErr:
				if result == nil && err != nil && !errors.Is(err, context.Canceled) {
					result = err
				}
				return result
			case <-a.uiMessages:
			}
		}
	}

	for {
		select {
		case err := <-runErr:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err == nil {
				err = ErrSessionEnded
			}
			return err
		case <-ctx.Done():
			return finish(ctx.Err())
		case msg := <-a.uiMessages:
			done, err := handle(msg)
			if err != nil || done {
				return finish(err)
			}
		}
	}
}
