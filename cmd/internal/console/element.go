// Package console renders the session navigation and form feedback of a
// terminal tab. It implements the websession UI slots and the webform view.
package console

import "sync"

// Element is one terminal UI slot. The manager writes it; Nav reads it when
// drawing.
type Element struct {
	mu      sync.Mutex
	text    string
	visible bool
}

func (e *Element) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
}

func (e *Element) SetVisible(visible bool) {
	e.mu.Lock()
	e.visible = visible
	e.mu.Unlock()
}

func (e *Element) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *Element) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}
