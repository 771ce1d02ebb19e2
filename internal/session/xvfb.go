package session

import (
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// startXvfb launches an Xvfb virtual display for headful runs.
func startXvfb(display string, width, height int, log *zap.Logger) (*exec.Cmd, error) {
	screen := fmt.Sprintf("%dx%dx24", width, height)
	cmd := exec.Command("Xvfb", display, "-screen", "0", screen, "-ac")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start xvfb: %w", err)
	}

	// Give Xvfb a moment to initialise.
	time.Sleep(500 * time.Millisecond)

	log.Info("session: xvfb started", zap.String("display", display), zap.Int("pid", cmd.Process.Pid))
	return cmd, nil
}

func stopXvfb(cmd *exec.Cmd, log *zap.Logger) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	log.Info("session: xvfb stopped")
}
