package tray

import (
	"errors"
	"os/exec"
	"strings"
)

var errNoSettingsCommand = errors.New("no network settings command configured")

// startFunc starts a command without waiting for it to finish.
type startFunc func(name string, args ...string) error

func startCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// settingsLauncher opens the desktop's network settings application.
type settingsLauncher struct {
	command []string
	start   startFunc
}

func newSettingsLauncher(command string) *settingsLauncher {
	return &settingsLauncher{command: strings.Fields(command), start: startCommand}
}

// enabled reports whether the menu should offer the settings item.
func (l *settingsLauncher) enabled() bool {
	return len(l.command) > 0
}

func (l *settingsLauncher) launch() error {
	if !l.enabled() {
		return errNoSettingsCommand
	}
	return l.start(l.command[0], l.command[1:]...)
}
