// Package tray provides the system tray control surface for spellkitchen.
package tray

import (
	"fmt"
	"sync"

	"github.com/ayusman/spellkitchen/internal/events"
	"github.com/getlantern/systray"
)

// Tray represents the system tray application. It also implements
// events.Publisher so the status line follows the current ritual.
type Tray struct {
	onBegin  func()
	onDispel func()
	onOpen   func()
	onQuit   func()
	status   string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuDispel *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{status: "Ritual: idle"}
}

// OnBegin sets the callback for the "Begin ritual" item.
func (t *Tray) OnBegin(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onBegin = fn
}

// OnDispel sets the callback for the "Dispel ritual" item.
func (t *Tray) OnDispel(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDispel = fn
}

// OnOpen sets the callback for the "Open in browser" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
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

// Quit stops the tray loop started by Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Spellkitchen")
	systray.SetTooltip("Spellkitchen casting rituals")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Current ritual")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuBegin := systray.AddMenuItem("Begin ritual", "Recast a random ritual with the last ingredients")
	menuDispel := systray.AddMenuItem("Dispel ritual", "Cancel the current ritual")
	t.mu.Lock()
	t.menuDispel = menuDispel
	if t.status == "Ritual: idle" {
		menuDispel.Disable()
	}
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in browser", "Open the kitchen in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Spellkitchen")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuBegin.ClickedCh:
				t.handle(func() func() { return t.onBegin })
			case <-menuDispel.ClickedCh:
				t.handle(func() func() { return t.onDispel })
			case <-menuOpen.ClickedCh:
				t.handle(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.handle(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handle reads a callback under the lock and calls it outside the lock.
func (t *Tray) handle(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// Publish implements events.Publisher.
func (t *Tray) Publish(e events.Event) {
	text, ok := statusText(e)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = text
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
	if t.menuDispel != nil {
		switch e.Type {
		case events.TypeRitualStarted:
			t.menuDispel.Enable()
		case events.TypeComplete, events.TypeCancelled:
			t.menuDispel.Disable()
		}
	}
}

// Status returns the text of the status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// statusText maps an event to the status line. Heartbeats leave it alone.
func statusText(e events.Event) (string, bool) {
	switch e.Type {
	case events.TypeRitualStarted:
		return fmt.Sprintf("Ritual: %s", e.Kind), true
	case events.TypeProgress:
		if e.Progress == nil {
			return "", false
		}
		return fmt.Sprintf("Ritual: %s %.0f", e.Kind, *e.Progress), true
	case events.TypeComplete:
		return "Ritual: complete", true
	case events.TypeCancelled:
		return "Ritual: dispelled", true
	case events.TypeRecipe:
		if e.Recipe != nil {
			return "Recipe: " + e.Recipe.DishName, true
		}
	case events.TypeRecipeFailed:
		return "Recipe: manifestation failed", true
	}
	return "", false
}
