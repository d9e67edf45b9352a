package site

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"unileap/cmd/internal/catalog"
)

func newTestSite(t *testing.T) *Site {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	s, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPages_RenderNavigationSlots(t *testing.T) {
	s := newTestSite(t)

	for _, name := range []string{PageHome, PageLogin, PageSignup, PageCourses} {
		rr := httptest.NewRecorder()
		s.Page(name).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", name, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("%s: content-type=%q", name, ct)
		}
		body := rr.Body.String()
		for _, id := range []string{`id="auth-buttons"`, `id="user-profile"`, `id="mobile-user-initials"`} {
			if !strings.Contains(body, id) {
				t.Fatalf("%s: missing %s", name, id)
			}
		}
	}
}

func TestLoginAndSignupForms(t *testing.T) {
	s := newTestSite(t)

	tests := []struct {
		page string
		want []string
	}{
		{page: PageLogin, want: []string{`id="loginForm"`, `id="emailError"`, `id="passwordError"`}},
		{page: PageSignup, want: []string{`id="signupForm"`, `id="confirmPassword"`, `id="terms"`, `id="passwordStrengthBar"`}},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		s.Page(tc.page).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/"+tc.page, nil))
		for _, w := range tc.want {
			if !strings.Contains(rr.Body.String(), w) {
				t.Fatalf("%s: missing %s", tc.page, w)
			}
		}
	}
}

func TestCoursesPage_Filters(t *testing.T) {
	s := newTestSite(t)

	rr := httptest.NewRecorder()
	s.Page(PageCourses).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/courses?category=python", nil))
	body := rr.Body.String()

	if got := strings.Count(body, `class="course-card"`); got != 1 {
		t.Fatalf("expected 1 course card, got %d", got)
	}
	if !strings.Contains(body, "Django Full-Stack Web Dev") {
		t.Fatalf("expected Django course in body")
	}
	if !strings.Contains(body, `class="filter-btn active" href="/courses?category=python"`) {
		t.Fatalf("expected python filter to be active")
	}

	rr = httptest.NewRecorder()
	s.Page(PageCourses).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/courses?category=nope", nil))
	if !strings.Contains(rr.Body.String(), "No courses in this category yet.") {
		t.Fatalf("expected empty state")
	}
}

func TestCoursesPage_EscapesTitles(t *testing.T) {
	c, err := catalog.Parse([]byte("courses:\n  - title: \"<script>x</script>\"\n    category: web\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := New(nil, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rr := httptest.NewRecorder()
	s.Page(PageCourses).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/courses", nil))
	if strings.Contains(rr.Body.String(), "<script>x</script>") {
		t.Fatalf("title was not escaped")
	}
}
