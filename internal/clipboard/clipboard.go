// Package clipboard copies the final transcript to the system clipboard via
// an external command (wl-copy by default).
package clipboard

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

const copyTimeout = 2 * time.Second

// Copy pipes text into argv's stdin. Empty text is a no-op so a failed or
// silent session never clobbers the user's clipboard.
func Copy(ctx context.Context, argv []string, text string) error {
	if text == "" {
		return nil
	}
	if len(argv) == 0 {
		return fmt.Errorf("clipboard argv cannot be empty")
	}

	copyCtx, cancel := context.WithTimeout(ctx, copyTimeout)
	defer cancel()

	cmd := exec.CommandContext(copyCtx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if _, err := stdin.Write([]byte(text)); err != nil {
		_ = stdin.Close()
		_ = cmd.Wait()
		return fmt.Errorf("write stdin for %s: %w", argv[0], err)
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
