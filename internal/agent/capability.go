package agent

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/go-vgo/robotgo"
	"github.com/pkg/browser"
)

// Capabilities abstracts the host desktop: pointer, keyboard, and program
// launching. The production implementation drives the real desktop; tests
// substitute a fake.
type Capabilities interface {
	MouseClick(x, y int) error
	MouseMove(x, y int) error
	TypeText(text string) error
	PressKey(key string) error
	OpenURL(url string) error
	OpenApp(app string) error
	Scroll(amount int) error
}

// desktop drives the local machine through robotgo and the platform's
// standard launchers.
type desktop struct{}

// NewDesktop returns Capabilities backed by the local desktop.
func NewDesktop() Capabilities {
	return desktop{}
}

func (desktop) MouseClick(x, y int) error {
	robotgo.Move(x, y)
	robotgo.Click("left", false)
	return nil
}

func (desktop) MouseMove(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (desktop) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

func (desktop) PressKey(key string) error {
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("key tap %q: %w", key, err)
	}
	return nil
}

func (desktop) OpenURL(url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	return nil
}

// OpenApp launches an application by name using the platform launcher.
func (desktop) OpenApp(app string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", "-a", app)
	case "windows":
		cmd = exec.Command("cmd", "/C", "start", "", app)
	default:
		cmd = exec.Command("sh", "-c", app)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %q: %w", app, err)
	}
	// The launched process outlives the command; reap it in the background.
	go func() { _ = cmd.Wait() }()
	return nil
}

func (desktop) Scroll(amount int) error {
	robotgo.Scroll(0, amount)
	return nil
}
