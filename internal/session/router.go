package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/epic1st/shadowfix/internal/alerting"
	"github.com/epic1st/shadowfix/internal/logging"
)

// notTradeDayMarker is the Logout text fragment spec.md §4.1/§9
// defines as meaning "the market is closed today, not a real error".
const notTradeDayMarker = "not trade day"

// TradingWindow computes the next scheduled resume time after a
// paused-for-the-day logout, using a fixed daily start time on the
// configured trading weekdays.
type TradingWindow struct {
	StartHour, StartMinute int
	Days                   map[time.Weekday]struct{}
}

// DefaultTradingWindow is Mon-Fri at 09:30, the standard US equities
// open, used when no explicit schedule is configured.
func DefaultTradingWindow() TradingWindow {
	return TradingWindow{
		StartHour: 9, StartMinute: 30,
		Days: map[time.Weekday]struct{}{
			time.Monday: {}, time.Tuesday: {}, time.Wednesday: {},
			time.Thursday: {}, time.Friday: {},
		},
	}
}

// Next returns the first trading-day start time strictly after after.
func (w TradingWindow) Next(after time.Time) time.Time {
	candidate := time.Date(after.Year(), after.Month(), after.Day(), w.StartHour, w.StartMinute, 0, 0, after.Location())
	if !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	for {
		if _, ok := w.Days[candidate.Weekday()]; ok {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
}

// Router classifies admin FIX traffic by session role and owns the
// paused/resume lifecycle spec.md §4.1 requires around a "not trade
// day" logout from the order-entry peer.
type Router struct {
	registry *FixSessionRegistry
	window   TradingWindow
	alerts   alerting.Sink
	logger   *logging.Logger

	mu       sync.Mutex
	paused   bool
	resumeAt time.Time
}

// Deps bundles Router's collaborators for construction.
type Deps struct {
	Registry *FixSessionRegistry
	Window   TradingWindow
	Alerts   alerting.Sink
	Logger   *logging.Logger
}

// New builds a Router. Deps.Window defaults to DefaultTradingWindow
// when its Days map is nil.
func New(d Deps) *Router {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}
	window := d.Window
	if window.Days == nil {
		window = DefaultTradingWindow()
	}
	alerts := d.Alerts
	if alerts == nil {
		alerts = alerting.New("", "", logger)
	}
	return &Router{
		registry: d.Registry,
		window:   window,
		alerts:   alerts,
		logger:   logger.With(logging.Component("session")),
	}
}

// HandleLogon records a session coming up. Per spec.md §4.1, the
// drop-copy acceptor must never reject a logon on sequence mismatch —
// that reconciliation is the transport's job, not this router's; the
// registry update here is the entire handling.
func (r *Router) HandleLogon(sessionID string) {
	r.registry.SetLoggedOn(sessionID, true)
	r.logger.Info("session logged on", logging.SessionID(sessionID))
}

// HandleLogout records a session going down and, when the logout
// originates from the order-entry peer with a "not trade day" reason,
// enters the paused state and schedules the next resume.
func (r *Router) HandleLogout(ctx context.Context, sessionID, text string, role Role) {
	r.registry.SetLoggedOn(sessionID, false)
	log := r.logger.With(logging.SessionID(sessionID))
	log.Info("session logged out", logging.String("text", text))

	if role != RoleOrderEntry || !strings.Contains(strings.ToLower(text), notTradeDayMarker) {
		return
	}

	resumeAt := r.window.Next(time.Now())
	r.mu.Lock()
	r.paused = true
	r.resumeAt = resumeAt
	r.mu.Unlock()

	log.Info("entering paused state for non-trade day, not treated as an error",
		logging.String("resumeAt", resumeAt.Format(time.RFC3339)))
	r.alerts.Notify(ctx, "gateway paused: order-entry session logged out for a non-trade day, resuming at "+resumeAt.Format(time.RFC3339))
}

// Paused reports whether the gateway is currently in the scheduled
// pause, and the resume time if so.
func (r *Router) Paused() (bool, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused, r.resumeAt
}

// Resume clears the paused state, intended to be called once the
// configured resume time has elapsed and a fresh logon attempt should
// be made.
func (r *Router) Resume() {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	r.logger.Info("resuming from non-trade-day pause")
}

// ShouldAttemptLogon reports whether logon attempts are currently
// permitted: false while paused and before the scheduled resume time.
func (r *Router) ShouldAttemptLogon(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return true
	}
	return !now.Before(r.resumeAt)
}
