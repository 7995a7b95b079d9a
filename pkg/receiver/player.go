package receiver

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rescp17/intrusionViewer/pkg/transfer"
)

// Playback describes a clip handed to a player.
type Playback struct {
	Filename string
	PlayerID string
	Path     string
	MIME     string
	Size     int64
}

// Launcher starts an external viewer for path.
type Launcher func(command []string, path string) error

// Player renders clips by writing them into a per-player directory and
// optionally opening them with an external command.
type Player struct {
	dir      string
	command  []string
	launch   Launcher
	onRender func(Playback)
	logger   *slog.Logger
}

// NewPlayer creates a player rooted at dir. command is split on whitespace;
// an empty command only writes the file.
func NewPlayer(dir, command string, onRender func(Playback)) *Player {
	return &Player{
		dir:      dir,
		command:  strings.Fields(command),
		launch:   startCommand,
		onRender: onRender,
		logger:   slog.Default(),
	}
}

// Render writes the clip for playerID and launches the configured viewer.
func (p *Player) Render(clip *transfer.Clip, playerID string) error {
	slot := sanitizeName(playerID)
	if playerID == "" {
		slot = "default"
	}
	dir := filepath.Join(p.dir, slot)
	if err := ensureDir(dir); err != nil {
		return err
	}
	path := filepath.Join(dir, withExtension(sanitizeName(clip.Filename), clip.MIME))
	if err := os.WriteFile(path, clip.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write clip for playback: %w", err)
	}

	if len(p.command) > 0 {
		if err := p.launch(p.command, path); err != nil {
			return fmt.Errorf("failed to launch player: %w", err)
		}
	}

	p.logger.Info("Playing clip", "filename", clip.Filename, "player", playerID, "path", path)
	if p.onRender != nil {
		p.onRender(Playback{
			Filename: clip.Filename,
			PlayerID: playerID,
			Path:     path,
			MIME:     clip.MIME,
			Size:     clip.Size(),
		})
	}
	return nil
}

func startCommand(command []string, path string) error {
	args := append(append([]string{}, command[1:]...), path)
	cmd := exec.Command(command[0], args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("Player exited with error", "command", command[0], "error", err)
		}
	}()
	return nil
}
