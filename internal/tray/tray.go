// Package tray provides a system tray indicator for the mudra pipeline.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/app"
)

// Tray represents the system tray application. It implements
// app.StateSink so the pipeline can drive its labels directly.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	// Last rendered labels, so SetState only touches the menu on change
	pinchLabel   string
	gestureLabel string

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuPinch   *systray.MenuItem
	menuGesture *systray.MenuItem
}

// New creates a new Tray instance with the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled:      enabled,
		pinchLabel:   pinchLabel(app.State{}),
		gestureLabel: gestureLabel(app.State{}),
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit ends Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Running"
	}
	return "○ Stopped"
}

func pinchLabel(s app.State) string {
	switch {
	case s.Error != "":
		return "Pinch: halted"
	case !s.Running:
		return "Pinch: idle"
	case s.Pinching:
		return fmt.Sprintf("Pinch: ACTIVE (%.2f)", s.Metric)
	case s.HasMetric:
		return fmt.Sprintf("Pinch: open (%.2f)", s.Metric)
	default:
		return "Pinch: no hand"
	}
}

func gestureLabel(s app.State) string {
	switch {
	case !s.Running || s.Gesture == "":
		return "Gesture: none"
	case s.Fist:
		return fmt.Sprintf("Gesture: %s ✊ (%.2f)", s.Gesture, s.Score)
	default:
		return fmt.Sprintf("Gesture: %s (%.2f)", s.Gesture, s.Score)
	}
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Start or stop the camera pipeline")
	systray.AddSeparator()

	t.menuPinch = systray.AddMenuItem(t.pinchLabel, "Pinch state")
	t.menuPinch.Disable()
	t.menuGesture = systray.AddMenuItem(t.gestureLabel, "Top gesture")
	t.menuGesture.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetState updates the pinch and gesture lines. It is safe to call before
// Run; the labels are applied once the menu exists.
func (t *Tray) SetState(s app.State) {
	p, g := pinchLabel(s), gestureLabel(s)

	t.mu.Lock()
	defer t.mu.Unlock()

	if p != t.pinchLabel {
		t.pinchLabel = p
		if t.menuPinch != nil {
			t.menuPinch.SetTitle(p)
		}
	}
	if g != t.gestureLabel {
		t.gestureLabel = g
		if t.menuGesture != nil {
			t.menuGesture.SetTitle(g)
		}
	}
}

// SetEnabled reflects a pipeline started or stopped elsewhere.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Labels returns the current pinch and gesture lines.
func (t *Tray) Labels() (pinch, gesture string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pinchLabel, t.gestureLabel
}
