package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"unileap/cmd/internal/websession"
)

const brand = "UniLeap"

// Nav holds one element per navigation slot and draws them as a header bar.
// Pass FrameLock to websession.WithFrameLock so View never draws a frame
// that a render is halfway through.
type Nav struct {
	mu    sync.RWMutex
	slots map[websession.Slot]*Element
}

// NewNav allocates elements for every required slot plus the menu.
func NewNav() *Nav {
	n := &Nav{slots: make(map[websession.Slot]*Element, len(websession.RequiredSlots)+1)}
	for _, s := range websession.RequiredSlots {
		n.slots[s] = &Element{}
	}
	n.slots[websession.SlotMenu] = &Element{}
	return n
}

// Bindings exposes the elements for websession.NewNavigation.
func (n *Nav) Bindings() websession.Bindings {
	b := make(websession.Bindings, len(n.slots))
	for s, e := range n.slots {
		b[s] = e
	}
	return b
}

// FrameLock is the writer side of the lock View reads under.
func (n *Nav) FrameLock() sync.Locker { return &n.mu }

// Element returns the element bound to s, or nil.
func (n *Nav) Element(s websession.Slot) *Element { return n.slots[s] }

// View draws the primary bar, followed by the compact menu when it is open.
func (n *Nav) View() string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	bar := n.primary()
	if !n.slots[websession.SlotMenu].Visible() {
		return bar
	}
	return lipgloss.JoinVertical(lipgloss.Left, bar, menuStyle.Render(n.compact()))
}

func (n *Nav) primary() string {
	var right string
	switch {
	case n.slots[websession.SlotAuthenticated].Visible():
		right = lipgloss.JoinHorizontal(lipgloss.Center,
			avatarStyle.Render(n.slots[websession.SlotInitials].Text()),
			" ",
			nameStyle.Render(n.slots[websession.SlotName].Text()),
			" ",
			mutedStyle.Render("<"+n.slots[websession.SlotEmail].Text()+">"),
		)
	case n.slots[websession.SlotAnonymous].Visible():
		right = linkStyle.Render("Login") + "  " + linkStyle.Render("Sign Up")
	}
	return navBarStyle.Render(brandStyle.Render(brand) + "   " + right)
}

func (n *Nav) compact() string {
	if n.slots[websession.SlotMobileAuthenticated].Visible() {
		return strings.Join([]string{
			nameStyle.Render(n.slots[websession.SlotMobileName].Text()) +
				" (" + n.slots[websession.SlotMobileInitials].Text() + ")",
			mutedStyle.Render(n.slots[websession.SlotMobileEmail].Text()),
			linkStyle.Render("Logout"),
		}, "\n")
	}
	if n.slots[websession.SlotMobileAnonymous].Visible() {
		return linkStyle.Render("Login") + "\n" + linkStyle.Render("Sign Up")
	}
	return ""
}

// Printer writes the navigation to w whenever it changes.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	nav  *Nav
	last string
}

func NewPrinter(w io.Writer, nav *Nav) *Printer {
	return &Printer{w: w, nav: nav}
}

// Print writes the current view unless it equals the last one written.
// It reports whether anything was written.
func (p *Printer) Print() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.nav.View()
	if v == p.last {
		return false
	}
	p.last = v
	_, _ = fmt.Fprintln(p.w, v)
	return true
}
