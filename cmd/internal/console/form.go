package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"unileap/cmd/internal/webform"
)

// FormView prints webform feedback as it happens and keeps the current state
// for callers that want to inspect it.
type FormView struct {
	mu       sync.Mutex
	w        io.Writer
	errs     map[string]string
	banners  map[webform.BannerKind]string
	busy     bool
	strength webform.Strength
}

var (
	_ webform.View         = (*FormView)(nil)
	_ webform.StrengthView = (*FormView)(nil)
)

func NewFormView(w io.Writer) *FormView {
	return &FormView{
		w:       w,
		errs:    make(map[string]string),
		banners: make(map[webform.BannerKind]string),
	}
}

func (v *FormView) ShowFieldError(field, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs[field] = msg
	v.println(fieldErrorStyle.Render("✗ " + fieldLabel(field) + ": " + msg))
}

func (v *FormView) HideFieldError(field string) {
	v.mu.Lock()
	delete(v.errs, field)
	v.mu.Unlock()
}

func (v *FormView) ClearFieldErrors() {
	v.mu.Lock()
	clear(v.errs)
	v.mu.Unlock()
}

func (v *FormView) ShowBanner(kind webform.BannerKind, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.banners[kind] = msg
	if kind == webform.BannerSuccess {
		v.println(successBannerStyle.Render("✓ " + msg))
		return
	}
	v.println(errorBannerStyle.Render("! " + msg))
}

func (v *FormView) HideBanner(kind webform.BannerKind) {
	v.mu.Lock()
	delete(v.banners, kind)
	v.mu.Unlock()
}

func (v *FormView) SetSubmitting(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = busy
	if busy {
		v.println(busyStyle.Render("Submitting..."))
	}
}

func (v *FormView) SetStrength(s webform.Strength) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.strength = s
	if s == webform.StrengthNone {
		// zero value, nothing measured
		return
	}
	v.println(StrengthMeter(s))
}

// FieldError returns the message shown for field, if any.
func (v *FormView) FieldError(field string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg, ok := v.errs[field]
	return msg, ok
}

// Banner returns the banner of kind currently shown, if any.
func (v *FormView) Banner(kind webform.BannerKind) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg, ok := v.banners[kind]
	return msg, ok
}

func (v *FormView) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy
}

func (v *FormView) Strength() webform.Strength {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.strength
}

func (v *FormView) println(s string) {
	if v.w != nil {
		_, _ = fmt.Fprintln(v.w, s)
	}
}

// StrengthMeter draws a three-segment bar with the strength label.
func StrengthMeter(s webform.Strength) string {
	level := int(s)
	if level < 1 || level > len(strengthStyles) {
		return ""
	}
	bar := strings.Repeat("■", level) + strings.Repeat("□", len(strengthStyles)-level)
	return strengthStyles[level-1].Render(bar + " " + s.Label())
}

func fieldLabel(field string) string {
	switch field {
	case webform.FieldName:
		return "Name"
	case webform.FieldEmail:
		return "Email"
	case webform.FieldPassword:
		return "Password"
	case webform.FieldConfirmPassword:
		return "Confirm password"
	default:
		return field
	}
}
