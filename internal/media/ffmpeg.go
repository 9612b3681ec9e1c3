// Package media shells out to ffmpeg/ffprobe for duration probes and
// point-in-time stream copies of in-progress recordings.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes one external command and returns its combined output.
// Injectable for tests; the default shells out.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

var run Runner = defaultRun

// Duration probes a media file's duration in seconds via ffprobe.
func Duration(ctx context.Context, path string) (float64, error) {
	out, err := run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w: %s", path, err, strings.TrimSpace(string(out)))
	}

	text := strings.TrimSpace(string(out))
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", text, err)
	}
	return seconds, nil
}

// StreamCopy copies src to dst without re-encoding. Copying the growing live
// file through ffmpeg yields a consistent container even while capture is
// still appending to the source.
func StreamCopy(ctx context.Context, src string, dst string) error {
	out, err := run(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", src,
		"-c", "copy",
		dst,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg copy %q: %w: %s", src, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ExtractRegion stream-copies [startSec, startSec+durSec) of src into dst.
// A durSec of zero extracts through end of file.
func ExtractRegion(ctx context.Context, src string, dst string, startSec float64, durSec float64) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-ss", formatSeconds(startSec),
		"-i", src,
	}
	if durSec > 0 {
		args = append(args, "-t", formatSeconds(durSec))
	}
	args = append(args, "-c", "copy", dst)

	out, err := run(ctx, "ffmpeg", args...)
	if err != nil {
		return fmt.Errorf("ffmpeg extract %q [%s+%s]: %w: %s", src, formatSeconds(startSec), formatSeconds(durSec), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
