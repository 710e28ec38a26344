// Package usage fetches and tracks the signed-in user's daily usage.
package usage

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/platform"
)

// API is the usage endpoint of the platform client.
type API interface {
	LimitInfo(ctx context.Context, bearer string) (*platform.LimitInfo, error)
}

// TokenSource mints identity tokens. An empty token means no user.
type TokenSource interface {
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// Fetcher performs single usage requests.
type Fetcher struct {
	api API
}

// NewFetcher creates a fetcher over api.
func NewFetcher(api API) *Fetcher {
	return &Fetcher{api: api}
}

// FetchLimitInfo issues one GET for the daily usage. Non-2xx responses
// return a FetchFailed error carrying the status.
func (f *Fetcher) FetchLimitInfo(ctx context.Context, bearer string) (*platform.LimitInfo, error) {
	info, err := f.api.LimitInfo(ctx, bearer)
	if err != nil {
		var statusErr *platform.StatusError
		if stderrors.As(err, &statusErr) {
			return nil, errors.NewFetchFailedError(statusErr.StatusCode)
		}
		return nil, errors.Wrap(errors.ErrCodeFetchFailed, "failed to fetch usage info", err)
	}
	return info, nil
}

// Snapshot is the tracker state shown by the dashboard.
type Snapshot struct {
	// UID is the account the snapshot belongs to, set by Reset.
	UID string

	// Info is the last successfully fetched usage, nil before the first.
	Info *platform.LimitInfo

	// Loading is true while at least one fetch is in flight.
	Loading bool

	// UpdatedAt is when Info was last replaced.
	UpdatedAt time.Time

	// LastErr is the most recent failure, cleared by the next success.
	LastErr error
}

// Tracker keeps the latest usage. Concurrent refreshes are not
// deduplicated: the last response to arrive wins, and each write replaces
// the whole snapshot under the lock. Reset starts a new generation; fetches
// begun in an earlier generation are dropped when they return.
type Tracker struct {
	fetcher *Fetcher
	tokens  TokenSource
	logger  *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	snap     Snapshot
	inFlight int
	gen      uint64
}

// NewTracker creates a tracker. A nil logger uses the default logger.
func NewTracker(fetcher *Fetcher, tokens TokenSource, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Component("usage")
	}
	return &Tracker{fetcher: fetcher, tokens: tokens, logger: logger, now: time.Now}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Begin marks a fetch as started and returns the resulting snapshot.
func (t *Tracker) Begin() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight++
	t.snap.Loading = true
	return t.snap
}

// Reset binds the tracker to the account uid. When uid differs from the
// current account, the previous account's usage is dropped along with any
// fetch still in flight for it. An empty uid means no account.
func (t *Tracker) Reset(uid string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.UID != uid {
		t.gen++
		t.inFlight = 0
		t.snap = Snapshot{UID: uid}
	}
	return t.snap
}

// Refresh fetches usage for the current user. Failures are logged and
// leave the previous Info in place. Without a user nothing is fetched.
func (t *Tracker) Refresh(ctx context.Context) Snapshot {
	t.Begin()
	return t.run(ctx)
}

// Complete runs a fetch that was announced with Begin.
func (t *Tracker) Complete(ctx context.Context) Snapshot {
	return t.run(ctx)
}

func (t *Tracker) run(ctx context.Context) Snapshot {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()

	info, err := t.fetch(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		t.logger.DebugContext(ctx, "dropping usage fetched for a previous account")
		return t.snap
	}
	if t.inFlight > 0 {
		t.inFlight--
	}
	t.snap.Loading = t.inFlight > 0
	switch {
	case err != nil:
		t.snap.LastErr = err
		t.logger.WithError(err).WarnContext(ctx, "usage fetch failed; keeping previous values")
	case info != nil:
		t.snap.Info = info
		t.snap.UpdatedAt = t.now()
		t.snap.LastErr = nil
	}
	return t.snap
}

func (t *Tracker) fetch(ctx context.Context) (*platform.LimitInfo, error) {
	token, err := t.tokens.IDToken(ctx, false)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	return t.fetcher.FetchLimitInfo(ctx, token)
}
