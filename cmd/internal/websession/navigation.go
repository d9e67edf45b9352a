package websession

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Slot is a logical UI slot name bound to a host element.
type Slot string

const (
	SlotAnonymous     Slot = "nav.anonymous"
	SlotAuthenticated Slot = "nav.authenticated"
	SlotName          Slot = "nav.user.name"
	SlotEmail         Slot = "nav.user.email"
	SlotInitials      Slot = "nav.user.initials"

	SlotMobileAnonymous     Slot = "mobile.anonymous"
	SlotMobileAuthenticated Slot = "mobile.authenticated"
	SlotMobileName          Slot = "mobile.user.name"
	SlotMobileEmail         Slot = "mobile.user.email"
	SlotMobileInitials      Slot = "mobile.user.initials"

	// SlotMenu is the dropdown/compact menu container. Optional.
	SlotMenu Slot = "nav.menu"
)

// RequiredSlots lists every slot NewNavigation insists on.
var RequiredSlots = []Slot{
	SlotAnonymous, SlotAuthenticated, SlotName, SlotEmail, SlotInitials,
	SlotMobileAnonymous, SlotMobileAuthenticated, SlotMobileName, SlotMobileEmail, SlotMobileInitials,
}

// Element is a host UI handle.
type Element interface {
	SetText(text string)
	SetVisible(visible bool)
}

// Bindings maps slots to host elements.
type Bindings map[Slot]Element

// ErrMissingSlot is returned when a required slot has no element bound.
var ErrMissingSlot = errors.New("websession: missing ui slot")

// MissingSlotError lists the unbound required slots.
type MissingSlotError struct {
	Slots []Slot
}

func (e *MissingSlotError) Error() string {
	names := make([]string, 0, len(e.Slots))
	for _, s := range e.Slots {
		names = append(names, string(s))
	}
	return fmt.Sprintf("%s: %s", ErrMissingSlot.Error(), strings.Join(names, ", "))
}

func (e *MissingSlotError) Unwrap() error { return ErrMissingSlot }

// Surface is one navigation area (primary or compact).
type Surface struct {
	Anonymous     Element
	Authenticated Element
	Name          Element
	Email         Element
	Initials      Element
}

// Navigation is the validated set of surfaces the manager renders into.
type Navigation struct {
	Primary Surface
	Compact Surface
	// Menu is nil when the host has no menu container.
	Menu Element
}

// NewNavigation validates b once. Every required slot must be bound to a
// non-nil element.
func NewNavigation(b Bindings) (Navigation, error) {
	var missing []Slot
	for _, s := range RequiredSlots {
		if b[s] == nil {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return Navigation{}, &MissingSlotError{Slots: missing}
	}

	return Navigation{
		Primary: Surface{
			Anonymous:     b[SlotAnonymous],
			Authenticated: b[SlotAuthenticated],
			Name:          b[SlotName],
			Email:         b[SlotEmail],
			Initials:      b[SlotInitials],
		},
		Compact: Surface{
			Anonymous:     b[SlotMobileAnonymous],
			Authenticated: b[SlotMobileAuthenticated],
			Name:          b[SlotMobileName],
			Email:         b[SlotMobileEmail],
			Initials:      b[SlotMobileInitials],
		},
		Menu: b[SlotMenu],
	}, nil
}

func (n Navigation) render(s Session, ok bool) {
	n.Primary.render(s, ok)
	n.Compact.render(s, ok)
}

// render writes every element on each call so output depends only on s.
func (sf Surface) render(s Session, ok bool) {
	if !ok {
		sf.Anonymous.SetVisible(true)
		sf.Authenticated.SetVisible(false)
		sf.Name.SetText("")
		sf.Email.SetText("")
		sf.Initials.SetText("")
		return
	}
	sf.Anonymous.SetVisible(false)
	sf.Authenticated.SetVisible(true)
	sf.Name.SetText(s.User.Name)
	sf.Email.SetText(s.User.Email)
	sf.Initials.SetText(ComputeInitials(s.User.Name))
}
