package limits

import (
	"log/slog"
	"sync"
	"time"
)

// Result of a rate limit check.
type Result struct {
	Allowed           bool   `json:"allowed"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	RequestsRemaining int    `json:"requests_remaining"`
	LimitType         string `json:"limit_type,omitempty"`
}

// Status reports one user's current usage for the status endpoint.
type Status struct {
	MinuteCount     int `json:"minute_count"`
	MinuteLimit     int `json:"minute_limit"`
	MinuteRemaining int `json:"minute_remaining"`
	DayCount        int `json:"day_count"`
	DayLimit        int `json:"day_limit"`
	DayRemaining    int `json:"day_remaining"`
}

type userState struct {
	minute   []time.Time
	dayCount int
	dayReset time.Time
}

// Limiter enforces per-user request budgets over a sliding minute window
// and a UTC calendar day.
type Limiter struct {
	rpm    int
	rpd    int
	logger *slog.Logger

	mu    sync.Mutex
	users map[string]*userState
	now   func() time.Time
}

func New(requestsPerMinute, requestsPerDay int, logger *slog.Logger) *Limiter {
	return &Limiter{
		rpm:    requestsPerMinute,
		rpd:    requestsPerDay,
		logger: logger,
		users:  make(map[string]*userState),
		now:    time.Now,
	}
}

// Limits reports the configured per-minute and per-day budgets.
func (l *Limiter) Limits() (perMinute, perDay int) {
	return l.rpm, l.rpd
}

// Check admits or rejects one request for the user, recording it when
// admitted. Minute rejections report how long until the oldest in-window
// request ages out; day rejections report the time to midnight UTC.
func (l *Limiter) Check(userID string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	u := l.user(userID, now)

	if len(u.minute) >= l.rpm {
		retryAfter := 60 - int(now.Sub(u.minute[0]).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		l.logger.Warn("rate limit exceeded",
			"limit_type", "minute",
			"user_id", userID,
			"count", len(u.minute),
			"limit", l.rpm,
		)
		return Result{Allowed: false, RetryAfterSeconds: retryAfter, LimitType: "minute"}
	}

	if u.dayCount >= l.rpd {
		l.logger.Warn("rate limit exceeded",
			"limit_type", "day",
			"user_id", userID,
			"count", u.dayCount,
			"limit", l.rpd,
		)
		return Result{Allowed: false, RetryAfterSeconds: secondsUntilMidnight(now), LimitType: "day"}
	}

	u.minute = append(u.minute, now)
	u.dayCount++

	remaining := l.rpm - len(u.minute)
	if day := l.rpd - u.dayCount; day < remaining {
		remaining = day
	}
	return Result{Allowed: true, RequestsRemaining: remaining}
}

// Check is the consuming call; Status only observes.
func (l *Limiter) Status(userID string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	u := l.user(userID, now)

	return Status{
		MinuteCount:     len(u.minute),
		MinuteLimit:     l.rpm,
		MinuteRemaining: l.rpm - len(u.minute),
		DayCount:        u.dayCount,
		DayLimit:        l.rpd,
		DayRemaining:    l.rpd - u.dayCount,
	}
}

// user returns the state for userID with the minute window pruned and the
// day counter reset on date rollover. Caller holds the lock.
func (l *Limiter) user(userID string, now time.Time) *userState {
	u, ok := l.users[userID]
	if !ok {
		u = &userState{dayReset: now}
		l.users[userID] = u
	}

	cutoff := now.Add(-time.Minute)
	keep := u.minute[:0]
	for _, t := range u.minute {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	u.minute = keep

	if !sameDay(now, u.dayReset) {
		u.dayCount = 0
		u.dayReset = now
	}
	return u
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func secondsUntilMidnight(now time.Time) int {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	return int(midnight.Sub(now).Seconds())
}
