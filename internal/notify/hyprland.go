package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// hyprNotify dispatches a Hyprland on-screen notification.
func hyprNotify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = "rgb(89b4fa)"
	}
	return runHyprctl(
		ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(icon),
		strconv.Itoa(timeoutMS),
		color,
		text,
	)
}

// hyprDismiss clears active Hyprland notifications.
func hyprDismiss(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

func runHyprctl(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return nil
}
