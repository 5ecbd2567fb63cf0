// Package browser opens EcoBingo pages on the host running the server.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Launcher starts a detached process
type Launcher interface {
	Start(name string, args ...string) error
}

// ExecLauncher starts real processes
type ExecLauncher struct{}

func (ExecLauncher) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// openers maps GOOS to the command that hands a URL to the desktop
var openers = map[string][]string{
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"darwin":  {"open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// Open shows rawURL in the default browser
func Open(rawURL string) error {
	return OpenWith(rawURL, ExecLauncher{}, runtime.GOOS)
}

// OpenWith opens rawURL through l as it would on goos. Only http and
// https URLs are accepted.
func OpenWith(rawURL string, l Launcher, goos string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open %q: not an http url", rawURL)
	}

	cmd, ok := openers[goos]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", goos)
	}
	args := append(append([]string{}, cmd[1:]...), u.String())
	return l.Start(cmd[0], args...)
}
