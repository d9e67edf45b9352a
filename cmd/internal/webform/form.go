package webform

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"unileap/cmd/internal/accountclient"
	"unileap/cmd/internal/websession"
)

const (
	// RedirectDelay is how long the success banner shows before navigating home.
	RedirectDelay = 1500 * time.Millisecond
	// BannerTTL is how long a banner stays up.
	BannerTTL = 5 * time.Second
)

// BannerKind selects the page-level banner.
type BannerKind int

const (
	BannerError BannerKind = iota
	BannerSuccess
)

func (k BannerKind) String() string {
	if k == BannerSuccess {
		return "success"
	}
	return "error"
}

// View is the host markup a form drives.
type View interface {
	ShowFieldError(field, msg string)
	HideFieldError(field string)
	ClearFieldErrors()
	ShowBanner(kind BannerKind, msg string)
	HideBanner(kind BannerKind)
	// SetSubmitting disables the submit control and shows the busy
	// indicator, or reverses both.
	SetSubmitting(busy bool)
}

// StrengthView is implemented by signup views with a strength meter.
type StrengthView interface {
	SetStrength(s Strength)
}

// AccountService is the remote login/signup API.
type AccountService interface {
	Login(ctx context.Context, email, password string) (accountclient.AuthResponse, error)
	Signup(ctx context.Context, name, email, password string) (accountclient.AuthResponse, error)
}

// SessionSaver persists a session returned by the account service.
type SessionSaver interface {
	SaveSession(ctx context.Context, token string, user websession.User)
}

// Timer is a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules with time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Outcome is the result of one Submit.
type Outcome int

const (
	// OutcomeInvalid means local validation failed; nothing was sent.
	OutcomeInvalid Outcome = iota
	// OutcomeBusy means another submission was still in flight.
	OutcomeBusy
	// OutcomeSucceeded means the session was saved and the redirect scheduled.
	OutcomeSucceeded
	// OutcomeRejected means the account service answered with a failure.
	OutcomeRejected
	// OutcomeTransportError means the account service could not be reached.
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeBusy:
		return "busy"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Deps are the collaborators shared by both forms.
type Deps struct {
	View      View
	Accounts  AccountService
	Sessions  SessionSaver
	Navigator websession.Navigator
	Scheduler Scheduler
	Log       *slog.Logger
	// Home is the redirect target after success. Default "/".
	Home string
}

func (d Deps) validate() error {
	switch {
	case d.View == nil:
		return errors.New("webform: nil view")
	case d.Accounts == nil:
		return errors.New("webform: nil account service")
	case d.Sessions == nil:
		return errors.New("webform: nil session saver")
	case d.Navigator == nil:
		return errors.New("webform: nil navigator")
	}
	return nil
}

// flow is the submit/banner machinery shared by LoginForm and SignupForm.
type flow struct {
	Deps

	mu       sync.Mutex
	inFlight bool
	banners  map[BannerKind]Timer
	redirect Timer
}

func newFlow(d Deps) (*flow, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.Scheduler == nil {
		d.Scheduler = RealScheduler{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Home == "" {
		d.Home = "/"
	}
	return &flow{Deps: d, banners: make(map[BannerKind]Timer)}, nil
}

func (f *flow) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return false
	}
	f.inFlight = true
	return true
}

// rejectBusy tells the user an earlier submission is still running.
func (f *flow) rejectBusy() Outcome {
	f.showBanner(BannerError, MsgSubmitInProgress)
	return OutcomeBusy
}

func (f *flow) end() {
	f.mu.Lock()
	f.inFlight = false
	f.mu.Unlock()
}

// InFlight reports whether a submission is running.
func (f *flow) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// showBanner replaces any pending dismissal of the same banner so a newer
// message always gets its full BannerTTL.
func (f *flow) showBanner(kind BannerKind, msg string) {
	f.View.ShowBanner(kind, msg)

	f.mu.Lock()
	defer f.mu.Unlock()
	if t := f.banners[kind]; t != nil {
		t.Stop()
	}
	f.banners[kind] = f.Scheduler.AfterFunc(BannerTTL, func() {
		f.View.HideBanner(kind)
	})
}

func (f *flow) showFieldErrors(errs FieldErrors) {
	for _, field := range errs.Fields() {
		msg, _ := errs.Get(field)
		f.View.ShowFieldError(field, msg)
	}
}

// call runs one account-service request with the submit control disabled.
func (f *flow) call(ctx context.Context, op, successMsg, fallbackMsg string, do func() (accountclient.AuthResponse, error)) Outcome {
	f.View.SetSubmitting(true)
	defer f.View.SetSubmitting(false)

	resp, err := do()
	if err != nil {
		f.Log.Warn("webform."+op+".transport_fail", "err", err)
		f.showBanner(BannerError, MsgTransportFailure)
		return OutcomeTransportError
	}
	if !resp.Success || resp.Token == "" || resp.User == nil {
		msg := resp.Message
		if msg == "" {
			msg = fallbackMsg
		}
		f.Log.Info("webform."+op+".rejected", "code", resp.Code)
		f.showBanner(BannerError, msg)
		return OutcomeRejected
	}

	f.Sessions.SaveSession(ctx, resp.Token, *resp.User)
	f.showBanner(BannerSuccess, successMsg)
	f.scheduleRedirect()
	f.Log.Info("webform."+op+".ok")
	return OutcomeSucceeded
}

func (f *flow) scheduleRedirect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redirect != nil {
		f.redirect.Stop()
	}
	home := f.Home
	f.redirect = f.Scheduler.AfterFunc(RedirectDelay, func() {
		f.Navigator.Navigate(home)
	})
}

// Close cancels pending banner dismissals and redirects.
func (f *flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, t := range f.banners {
		t.Stop()
		delete(f.banners, k)
	}
	if f.redirect != nil {
		f.redirect.Stop()
		f.redirect = nil
	}
}

// emailBlur re-checks the email shape. A blank field hides the error.
func (f *flow) emailBlur(email string) {
	email = strings.TrimSpace(email)
	if email != "" && !ValidEmail(email) {
		f.View.ShowFieldError(FieldEmail, MsgEmailInvalid)
		return
	}
	f.View.HideFieldError(FieldEmail)
}
