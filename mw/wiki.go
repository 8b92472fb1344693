package mw

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/field-eng-powertools/notify"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/transport"
	"gitlab.com/orlodrimbot/mwbot/wikidate"
	"gitlab.com/orlodrimbot/mwbot/wikiutil"
)

// TokenKind identifies a cached token kind. Login tokens are never cached;
// the constant exists only to name the kind in error messages.
type TokenKind int

const (
	TokenCSRF TokenKind = iota
	TokenWatch
	TokenLogin
)

func (k TokenKind) apiName() string {
	switch k {
	case TokenWatch:
		return "watch"
	case TokenLogin:
		return "login"
	default:
		return "csrf"
	}
}

// APILimits holds the batch/page-size limits derived from the login
// group.
type APILimits struct {
	// TitlesLimit bounds how many titles/revids one request batches
	// (apiTitlesLimit: 50 without bot/sysop, 500 with).
	TitlesLimit int
	// ListLimit bounds how many rows a single list/generator request may
	// request (also 50/500).
	ListLimit int
}

var (
	defaultAPILimits  = APILimits{TitlesLimit: 50, ListLimit: 50}
	privilegedAPILimits = APILimits{TitlesLimit: 500, ListLimit: 500}
)

// Wiki is a logged-in (or anonymous) session against one MediaWiki site:
// it holds the wiki URL, cookie jar, internal/external user name, site
// info, token cache, lastEdit timestamp, API limits, and delay settings.
type Wiki struct {
	client  *transport.Client
	wikiURL string

	clock wikidate.Clock

	mu             sync.Mutex
	internalUser   string
	externalUser   string
	loggedIn       bool
	siteInfo       *wikiutil.SiteInfo
	titles         *wikiutil.Titles
	limits         APILimits
	maxlag         int
	delayBetweenEdits time.Duration

	tokens *lru.Cache[string, string]

	loginParams *LoginParams

	// lastEdit holds the time of the last successful edit. It is set after
	// each edit and nothing reads it; edit pacing goes through editLimiter.
	lastEdit *notify.Var[wikidate.Date]

	// emergencyStop is checked before every write; a write request
	// consults it and aborts with an errs.EmergencyStop error if true.
	emergencyStop *notify.Var[bool]

	editLimiter *rate.Limiter
}

// Option configures a new Wiki.
type Option func(*Wiki)

// WithClock overrides the clock used for edit pacing (tests only).
func WithClock(clock wikidate.Clock) Option {
	return func(w *Wiki) { w.clock = clock }
}

// WithMaxlag overrides the maxlag= parameter (default 5).
func WithMaxlag(seconds int) Option {
	return func(w *Wiki) { w.maxlag = seconds }
}

// WithDelayBetweenEdits overrides the default 12s pacing.
func WithDelayBetweenEdits(d time.Duration) Option {
	return func(w *Wiki) {
		w.delayBetweenEdits = d
		w.editLimiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewWiki builds an anonymous Wiki session against wikiURL (the api.php
// endpoint).
func NewWiki(client *transport.Client, wikiURL string, opts ...Option) (*Wiki, error) {
	tokens, err := lru.New[string, string](8)
	if err != nil {
		return nil, err
	}
	w := &Wiki{
		client:            client,
		wikiURL:           wikiURL,
		clock:             wikidate.RealClock{},
		siteInfo:          wikiutil.StubSiteInfo(),
		limits:            defaultAPILimits,
		maxlag:            5,
		delayBetweenEdits: 12 * time.Second,
		tokens:            tokens,
		lastEdit:          notify.VarOf(wikidate.NullDate),
		emergencyStop:     notify.VarOf(false),
	}
	w.titles = wikiutil.NewTitles(w.siteInfo)
	w.editLimiter = rate.NewLimiter(rate.Every(w.delayBetweenEdits), 1)
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SiteInfo returns the session's current site info.
func (w *Wiki) SiteInfo() *wikiutil.SiteInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.siteInfo
}

// SetSiteInfo installs freshly loaded site info and rebuilds the Titles
// helper bound to it.
func (w *Wiki) SetSiteInfo(info *wikiutil.SiteInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.siteInfo = info
	w.titles = wikiutil.NewTitles(info)
}

// Titles returns the title-parsing helper bound to the session's current
// site info.
func (w *Wiki) Titles() *wikiutil.Titles {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.titles
}

// Clock returns the session's clock, letting callers share the same
// (possibly frozen, in tests) notion of "now" that the session itself
// paces edits with.
func (w *Wiki) Clock() wikidate.Clock {
	return w.clock
}

// InternalUserName returns "name@botpassword" or "name".
func (w *Wiki) InternalUserName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.internalUser
}

// ExternalUserName returns the plain "name".
func (w *Wiki) ExternalUserName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	name, _, _ := strings.Cut(w.externalUser, "@")
	return name
}

// LoggedIn reports whether the session has completed a login.
func (w *Wiki) LoggedIn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loggedIn
}

// SetEmergencyStop flips the emergency-stop predicate; every subsequent
// write through writeRequest observes it.
func (w *Wiki) SetEmergencyStop(stop bool) {
	w.emergencyStop.Set(stop)
}

// EmergencyStopped reports the current value of the predicate.
func (w *Wiki) EmergencyStopped() bool {
	v, _ := w.emergencyStop.Get()
	return v
}

// cachedToken returns a previously fetched token of the given kind.
func (w *Wiki) cachedToken(kind TokenKind) (string, bool) {
	if kind == TokenLogin {
		return "", false
	}
	return w.tokens.Get(kind.apiName())
}

func (w *Wiki) cacheToken(kind TokenKind, value string) {
	if kind == TokenLogin {
		return
	}
	w.tokens.Add(kind.apiName(), value)
}

// invalidateTokens clears every cached token.
func (w *Wiki) invalidateTokens() {
	w.tokens.Purge()
}

// waitBeforeEdit blocks until at least delayBetweenEdits has elapsed since
// the last edit from this process, clock-skew tolerant via rate.Limiter's
// own monotonic clock.
func (w *Wiki) waitBeforeEdit(ctx context.Context) errors.E {
	if err := w.editLimiter.Wait(ctx); err != nil {
		return errs.Annotate(errors.WrapWith(errors.Wrap(err, "rate limiter wait failed"), errs.InvalidState), "waiting to pace edits")
	}
	return nil
}
