// Package tracker turns browser tab events into accrued (site, interval)
// time. A Tracker owns the single active session and handles events one at
// a time; everything it learns is written through its collaborators.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/sitetime/internal/logger"
	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/sites"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultAlarmName is the periodic flush alarm the tracker responds to
	DefaultAlarmName = "update-tracking"
	// DefaultMinInterval is the shortest interval that gets recorded
	DefaultMinInterval = time.Second
	// DefaultBlockPageURL is where blocked tabs are sent
	DefaultBlockPageURL = "blocked.html"
	// DefaultWriteTimeout bounds a single ledger or blocklist call
	DefaultWriteTimeout = 5 * time.Second

	// RedirectReasonBlocked is attached to redirects issued for blocked sites
	RedirectReasonBlocked = "blocked"

	// StatusComplete is the tab status at which a URL update is acted on
	StatusComplete = "complete"
)

// ErrUnknownEvent is returned for event types the tracker does not handle
var ErrUnknownEvent = errors.New("unknown tab event type")

// Ledger receives committed intervals
type Ledger interface {
	Accrue(ctx context.Context, site, day string, ms int64) error
}

// Blocklist answers whether a site is blocked
type Blocklist interface {
	IsBlocked(ctx context.Context, site string) (bool, error)
}

// Navigator points a tab at another URL
type Navigator interface {
	Redirect(ctx context.Context, tabID int, url, reason string) error
}

// Clock abstracts time to keep the tracker deterministic in tests
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock
type SystemClock struct{}

// Now returns the current local time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// State is the tracker's session state
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
)

// Session is the interval currently being timed
type Session struct {
	Site  string    `json:"site"`
	TabID int       `json:"tabId"`
	URL   string    `json:"url"`
	Start time.Time `json:"start"`
}

// Status is a point-in-time view of the tracker
type Status struct {
	State   State    `json:"state"`
	Session *Session `json:"session,omitempty"`
}

// Config holds tracker tunables
type Config struct {
	MinInterval  time.Duration
	BlockPageURL string
	AlarmName    string
	WriteTimeout time.Duration
}

// withDefaults fills zero values
func (c Config) withDefaults() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.BlockPageURL == "" {
		c.BlockPageURL = DefaultBlockPageURL
	}
	if c.AlarmName == "" {
		c.AlarmName = DefaultAlarmName
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces the system clock
func WithClock(clock Clock) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// Tracker is the activity session state machine
type Tracker struct {
	mu        sync.Mutex
	session   *Session
	ledger    Ledger
	blocklist Blocklist
	navigator Navigator
	clock     Clock
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New creates an idle tracker
func New(ledger Ledger, blocklist Blocklist, navigator Navigator, cfg Config, log *zap.Logger, opts ...Option) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		ledger:    ledger,
		blocklist: blocklist,
		navigator: navigator,
		clock:     SystemClock{},
		cfg:       cfg.withDefaults(),
		logger:    log,
		tracer:    otel.Tracer("github.com/benvon/sitetime/internal/tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AlarmName returns the alarm name the tracker flushes on
func (t *Tracker) AlarmName() string {
	return t.cfg.AlarmName
}

// Handle dispatches a tab event. Malformed events are skipped and logged;
// only an unknown event type is reported as an error.
func (t *Tracker) Handle(ctx context.Context, event *models.TabEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrUnknownEvent)
	}

	switch event.Type {
	case models.TabEventActivated:
		t.HandleTabActivated(ctx, event.Tab)
	case models.TabEventUpdated:
		t.HandleTabUpdated(ctx, event.Tab)
	case models.TabEventAlarm:
		t.HandleAlarm(ctx, event.AlarmName)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
	}
	return nil
}

// HandleTabActivated closes the current session and starts one for tab
func (t *Tracker) HandleTabActivated(ctx context.Context, tab *models.Tab) {
	ctx, span := t.tracer.Start(ctx, "tracker.tab_activated")
	defer span.End()

	if tab == nil {
		t.logger.Warn("tracker_event_missing_tab", zap.String("event", string(models.TabEventActivated)))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.switchTo(ctx, tab)
}

// HandleTabUpdated acts only on completed navigations of the active tab
func (t *Tracker) HandleTabUpdated(ctx context.Context, tab *models.Tab) {
	if tab == nil {
		t.logger.Warn("tracker_event_missing_tab", zap.String("event", string(models.TabEventUpdated)))
		return
	}
	if tab.Status != StatusComplete || !tab.Active {
		return
	}

	ctx, span := t.tracer.Start(ctx, "tracker.tab_updated")
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.switchTo(ctx, tab)
}

// HandleAlarm commits the running interval and keeps tracking the same site
func (t *Tracker) HandleAlarm(ctx context.Context, name string) {
	if name != t.cfg.AlarmName {
		t.logger.Debug("tracker_alarm_ignored", zap.String("alarm", logger.SanitizeString(name, 100)))
		return
	}

	ctx, span := t.tracer.Start(ctx, "tracker.alarm")
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return
	}
	now := t.clock.Now()
	t.commit(ctx, t.session, now)
	t.session.Start = now
}

// Flush commits the running interval and goes idle. Used on shutdown so a
// clean stop does not lose the in-flight interval.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return
	}
	t.commit(ctx, t.session, t.clock.Now())
	t.session = nil
}

// Snapshot returns the current state
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return Status{State: StateIdle}
	}
	session := *t.session
	return Status{State: StateTracking, Session: &session}
}

// switchTo must be called with t.mu held
func (t *Tracker) switchTo(ctx context.Context, tab *models.Tab) {
	now := t.clock.Now()

	if t.session != nil {
		t.commit(ctx, t.session, now)
		t.session = nil
	}

	if !sites.IsTrackable(tab.URL) {
		t.logger.Debug("tracker_untrackable_url",
			zap.Int("tab_id", tab.ID),
			zap.String("url", logger.SanitizeURL(tab.URL)),
		)
		return
	}

	site, err := sites.HostnameFromURL(tab.URL)
	if err != nil {
		t.logger.Warn("tracker_hostname_parse_failed",
			zap.Int("tab_id", tab.ID),
			zap.String("url", logger.SanitizeURL(tab.URL)),
			zap.Error(err),
		)
		return
	}

	if t.isBlocked(ctx, site) {
		t.redirect(ctx, tab, site)
		return
	}

	t.session = &Session{
		Site:  site,
		TabID: tab.ID,
		URL:   tab.URL,
		Start: now,
	}
	t.logger.Debug("tracker_session_started",
		zap.String("site", logger.SanitizeHostname(site)),
		zap.Int("tab_id", tab.ID),
	)
}

// isBlocked treats a failed lookup as not blocked
func (t *Tracker) isBlocked(ctx context.Context, site string) bool {
	ctx, cancel := t.storageContext(ctx)
	defer cancel()

	blocked, err := t.blocklist.IsBlocked(ctx, site)
	if err != nil {
		t.logger.Error("tracker_blocklist_lookup_failed",
			zap.String("site", logger.SanitizeHostname(site)),
			zap.Error(err),
		)
		return false
	}
	return blocked
}

func (t *Tracker) redirect(ctx context.Context, tab *models.Tab, site string) {
	ctx, cancel := t.storageContext(ctx)
	defer cancel()

	if err := t.navigator.Redirect(ctx, tab.ID, t.cfg.BlockPageURL, RedirectReasonBlocked); err != nil {
		t.logger.Error("tracker_redirect_failed",
			zap.String("site", logger.SanitizeHostname(site)),
			zap.Int("tab_id", tab.ID),
			zap.Error(err),
		)
		return
	}
	t.logger.Info("tracker_blocked_site_redirected",
		zap.String("site", logger.SanitizeHostname(site)),
		zap.Int("tab_id", tab.ID),
	)
}

// commit writes [session.Start, end) to the ledger under the day key of end
func (t *Tracker) commit(ctx context.Context, session *Session, end time.Time) {
	elapsed := end.Sub(session.Start)
	if elapsed < t.cfg.MinInterval {
		return
	}

	ms := elapsed.Milliseconds()
	day := models.DayKey(end)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("site", session.Site),
		attribute.String("day", day),
		attribute.Int64("ms", ms),
	)

	ctx, cancel := t.storageContext(ctx)
	defer cancel()

	if err := t.ledger.Accrue(ctx, session.Site, day, ms); err != nil {
		t.logger.Error("ledger_accrue_failed",
			zap.String("site", logger.SanitizeHostname(session.Site)),
			zap.String("day", day),
			zap.Int64("ms", ms),
			zap.Error(err),
		)
		return
	}
	t.logger.Debug("tracker_interval_committed",
		zap.String("site", logger.SanitizeHostname(session.Site)),
		zap.String("day", day),
		zap.Int64("ms", ms),
	)
}

// storageContext detaches from the caller's cancellation so an in-progress
// flush is never abandoned, and bounds it by the write timeout
func (t *Tracker) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), t.cfg.WriteTimeout)
}
