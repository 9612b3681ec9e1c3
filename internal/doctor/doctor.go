// Package doctor runs readiness diagnostics for config, tools, audio, and
// service credentials.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aishanisingh/ai-meeting-notes/internal/config"
	"github.com/aishanisingh/ai-meeting-notes/internal/store"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{configCheck(cfg)}

	checks = append(checks, checkBinary("ffmpeg", "primary capture backend"))
	checks = append(checks, checkBinary("ffprobe", "artifact duration probing"))
	checks = append(checks, checkRuntimeDir())
	checks = append(checks, checkRecordingsDir(cfg.Config.Capture.RecordingsDir))
	checks = append(checks, checkCredential("stt.api_key", cfg.Config.STT.APIKeyEnv))
	checks = append(checks, checkDatabase(cfg.Config.Store.Path))

	return Report{Checks: checks}
}

func configCheck(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("no file at %q; using defaults", cfg.Path)
	}
	if n := len(cfg.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warning(s))", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, role string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH (%s)", role)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, role)}
}

func checkRuntimeDir() Check {
	if strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")) == "" {
		return Check{Name: "XDG_RUNTIME_DIR", Pass: false, Message: "not set; owner socket has no home"}
	}
	return Check{Name: "XDG_RUNTIME_DIR", Pass: true, Message: "runtime dir available"}
}

// checkRecordingsDir verifies the recordings directory can be created and
// written to.
func checkRecordingsDir(dir string) Check {
	if dir == "" {
		return Check{Name: "recordings.dir", Pass: false, Message: "recordings directory is empty"}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "recordings.dir", Pass: false, Message: fmt.Sprintf("cannot create %q: %v", dir, err)}
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return Check{Name: "recordings.dir", Pass: false, Message: fmt.Sprintf("cannot write to %q: %v", dir, err)}
	}
	_ = os.Remove(probe)
	return Check{Name: "recordings.dir", Pass: true, Message: fmt.Sprintf("writable at %q", dir)}
}

func checkCredential(name string, envVar string) Check {
	if envVar == "" {
		return Check{Name: name, Pass: false, Message: "no credential environment variable configured"}
	}
	if strings.TrimSpace(os.Getenv(envVar)) == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is empty; transcription disabled", envVar)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is set", envVar)}
}

func checkDatabase(path string) Check {
	if path == "" {
		return Check{Name: "db", Pass: false, Message: "database path is empty"}
	}
	s, err := store.Open(path)
	if err != nil {
		return Check{Name: "db", Pass: false, Message: fmt.Sprintf("cannot open %q: %v", path, err)}
	}
	_ = s.Close()
	return Check{Name: "db", Pass: true, Message: fmt.Sprintf("openable at %q", path)}
}
