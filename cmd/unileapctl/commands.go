package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"unileap/cmd/internal/accountclient"
	"unileap/cmd/internal/catalog"
	"unileap/cmd/internal/console"
	"unileap/cmd/internal/webform"
)

const (
	httpTimeout   = 15 * time.Second
	watchInterval = 200 * time.Millisecond
)

func (c *cli) accounts() (*accountclient.Client, error) {
	return accountclient.New(c.opts.server+"/api/auth",
		accountclient.WithHTTPClient(&http.Client{Timeout: httpTimeout}),
	)
}

func (c *cli) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// secret returns value, else $UNILEAP_PASSWORD, else a line read from stdin.
func (c *cli) secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	if v := os.Getenv("UNILEAP_PASSWORD"); v != "" {
		return v, nil
	}
	fmt.Fprintf(c.stderr, "%s: ", prompt)
	line, err := c.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(ctx context.Context, c *cli, args []string) error {
	fs := c.flagSet("login")
	email := fs.String("email", "", "account email")
	pw := fs.String("password", "", "account password (default: $UNILEAP_PASSWORD or prompt)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	password, err := c.secret(*pw, "Password")
	if err != nil {
		return err
	}

	t, err := c.openTab(ctx, false)
	if err != nil {
		return err
	}
	defer t.Close()

	accounts, err := c.accounts()
	if err != nil {
		return err
	}
	view := console.NewFormView(c.stdout)
	form, err := webform.NewLoginForm(webform.Deps{
		View:      view,
		Accounts:  accounts,
		Sessions:  t.mgr,
		Navigator: t.router,
		Log:       c.log,
	})
	if err != nil {
		return err
	}
	defer form.Close()

	out := form.Submit(ctx, webform.LoginInput{Email: *email, Password: password})
	return c.finishForm(ctx, t, "login", out)
}

func runSignup(ctx context.Context, c *cli, args []string) error {
	fs := c.flagSet("signup")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	pw := fs.String("password", "", "password (default: $UNILEAP_PASSWORD or prompt)")
	confirm := fs.String("confirm", "", "password confirmation (default: same as --password)")
	terms := fs.Bool("accept-terms", false, "accept the Terms of Service and Privacy Policy")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	password, err := c.secret(*pw, "Password")
	if err != nil {
		return err
	}
	if !fs.Changed("confirm") {
		*confirm = password
	}

	t, err := c.openTab(ctx, false)
	if err != nil {
		return err
	}
	defer t.Close()

	accounts, err := c.accounts()
	if err != nil {
		return err
	}
	view := console.NewFormView(c.stdout)
	form, err := webform.NewSignupForm(webform.Deps{
		View:      view,
		Accounts:  accounts,
		Sessions:  t.mgr,
		Navigator: t.router,
		Log:       c.log,
	})
	if err != nil {
		return err
	}
	defer form.Close()

	form.PasswordInput(password)
	form.ConfirmBlur(password, *confirm)
	out := form.Submit(ctx, webform.SignupInput{
		Name:            *name,
		Email:           *email,
		Password:        password,
		ConfirmPassword: *confirm,
		AcceptTerms:     *terms,
	})
	return c.finishForm(ctx, t, "signup", out)
}

// finishForm waits for the post-success redirect, then draws the navigation.
func (c *cli) finishForm(ctx context.Context, t *tab, op string, out webform.Outcome) error {
	switch out {
	case webform.OutcomeSucceeded:
	case webform.OutcomeInvalid:
		return &exitError{code: 2, msg: op + ": invalid input"}
	default:
		return &exitError{code: 1, msg: op + ": " + out.String()}
	}

	if _, ok := t.waitNavigation(ctx, webform.RedirectDelay+2*time.Second); !ok {
		c.log.Warn("unileapctl.redirect.timeout", "op", op)
	}
	t.mgr.RenderNavigation(ctx)
	fmt.Fprintln(c.stdout, t.nav.View())
	return nil
}

func runLogout(ctx context.Context, c *cli, args []string) error {
	fs := c.flagSet("logout")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	t, err := c.openTab(ctx, false)
	if err != nil {
		return err
	}
	defer t.Close()

	if s, ok := t.mgr.GetSession(ctx); ok {
		accounts, err := c.accounts()
		if err != nil {
			return err
		}
		if err := accounts.Logout(ctx, s.Token); err != nil {
			c.log.Warn("unileapctl.logout.revoke_fail", "err", err)
		}
	}
	t.mgr.Logout(ctx)
	fmt.Fprintln(c.stdout, t.nav.View())
	return nil
}

func runWhoami(ctx context.Context, c *cli, args []string) error {
	fs := c.flagSet("whoami")
	menu := fs.Bool("menu", false, "also draw the compact menu")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	t, err := c.openTab(ctx, false)
	if err != nil {
		return err
	}
	defer t.Close()

	t.mgr.RenderNavigation(ctx)
	if *menu {
		t.mgr.ToggleMenu()
	}
	fmt.Fprintln(c.stdout, t.nav.View())
	if !t.mgr.IsAuthenticated(ctx) {
		return &exitError{code: 1}
	}
	return nil
}

func runWatch(ctx context.Context, c *cli, args []string) error {
	fs := c.flagSet("watch")
	menu := fs.Bool("menu", false, "also draw the compact menu")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	t, err := c.openTab(ctx, true)
	if err != nil {
		return err
	}
	defer t.Close()

	t.mgr.RenderNavigation(ctx)
	if *menu {
		t.mgr.ToggleMenu()
	}
	stop, err := t.mgr.Watch(ctx, t.feed)
	if err != nil {
		return err
	}
	defer stop()

	printer := console.NewPrinter(c.stdout, t.nav)
	printer.Print()

	tick := time.NewTicker(watchInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.done:
			return fmt.Errorf("relay connection closed")
		case <-tick.C:
			printer.Print()
		}
	}
}

type courseList struct {
	Success    bool             `json:"success"`
	Category   string           `json:"category"`
	Count      int              `json:"count"`
	Courses    []catalog.Course `json:"courses"`
	Categories []string         `json:"categories"`
	Message    string           `json:"message"`
}

func runCourses(ctx context.Context, c *cli, args []string) error {
	fs := c.flagSet("courses")
	category := fs.String("category", catalog.FilterAll, "category filter")
	query := fs.StringP("query", "q", "", "search title and tags")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	q := url.Values{}
	q.Set("category", *category)
	if *query != "" {
		q.Set("q", *query)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.server+"/api/courses?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := (&http.Client{Timeout: httpTimeout}).Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	var list courseList
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&list); err != nil {
		return fmt.Errorf("decode courses: %w", err)
	}
	if res.StatusCode != http.StatusOK || !list.Success {
		return fmt.Errorf("courses: %s (status %d)", list.Message, res.StatusCode)
	}

	fmt.Fprintf(c.stdout, "%s (%d) of %s\n\n", list.Category, list.Count, strings.Join(list.Categories, ", "))
	fmt.Fprintln(c.stdout, console.Courses(list.Courses))
	return nil
}
