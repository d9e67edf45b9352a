package authapi

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// checkLoginIPThrottle applies the per-IP sliding window over login failures.
func (h *Handler) checkLoginIPThrottle(ctx context.Context, ipKey string, now time.Time) (bool, time.Duration, error) {
	if ipKey == "" || h.audit == nil || h.cfg.LoginIPMax <= 0 {
		return false, 0, nil
	}
	failures, err := h.audit.LoginFailures(ctx, FailureQuery{IPKey: ipKey, Since: now.Add(-h.cfg.LoginIPWindow)})
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateWindowThrottle(now, failures, h.cfg.LoginIPMax, h.cfg.LoginIPWindow)
	return blocked, retry, nil
}

// checkLoginSubjectThrottle applies progressive lockout per email fingerprint.
func (h *Handler) checkLoginSubjectThrottle(ctx context.Context, subject string, now time.Time) (bool, time.Duration, error) {
	tiers := h.cfg.lockoutTiers()
	if subject == "" || h.audit == nil || len(tiers) == 0 {
		return false, 0, nil
	}
	failures, err := h.audit.LoginFailures(ctx, FailureQuery{SubjectKey: subject, Since: now.Add(-h.cfg.LoginUserWindow)})
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateProgressiveLockout(now, failures, tiers)
	return blocked, retry, nil
}

// evaluateWindowThrottle blocks once max failures fall inside window. retry is
// the wait until enough of them age out to drop below max.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	recent := make([]time.Time, 0, len(failures))
	for _, f := range failures {
		if f.After(cut) && !f.After(now) {
			recent = append(recent, f)
		}
	}
	if len(recent) < max {
		return false, 0
	}
	slices.SortFunc(recent, func(a, b time.Time) int { return b.Compare(a) })
	return true, recent[max-1].Add(window).Sub(now)
}

// evaluateProgressiveLockout picks the first tier (highest threshold first)
// whose threshold is met. The lockout runs from the most recent failure.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	latest := failures[0]
	for _, f := range failures[1:] {
		if f.After(latest) {
			latest = f
		}
	}
	for _, tier := range tiers {
		if tier.Threshold <= 0 || len(failures) < tier.Threshold {
			continue
		}
		until := latest.Add(tier.Duration)
		if until.After(now) {
			return true, until.Sub(now)
		}
		return false, 0
	}
	return false, 0
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many login attempts. Please try again later.")
}
