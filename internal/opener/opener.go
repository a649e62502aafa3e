// Package opener hands files and URLs to the desktop's default application.
package opener

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/dgellow/cpa-front/internal/log"
)

// Opener opens a file path or URL outside the process
type Opener interface {
	Open(target string) error
}

// System opens targets with the platform launcher: open on macOS,
// rundll32 on Windows and xdg-open elsewhere.
type System struct {
	goos  string
	start func(name string, args ...string) error
}

// NewSystem returns an opener for the running platform
func NewSystem() *System {
	return &System{goos: runtime.GOOS, start: startDetached}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Command returns the launcher invocation for target
func (s *System) Command(target string) (string, []string) {
	switch s.goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

func (s *System) Open(target string) error {
	if target == "" {
		return fmt.Errorf("nothing to open")
	}
	name, args := s.Command(target)
	log.LogDebugWithFields("opener", "Opening with system handler", map[string]any{
		"command": name,
	})
	if err := s.start(name, args...); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}
