package usage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/errors"
	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/platform"
)

type staticTokens string

func (s staticTokens) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	return string(s), nil
}

// usageServer answers with the queued responses in order, then repeats the
// last one.
type usageServer struct {
	mu        sync.Mutex
	responses []func(w http.ResponseWriter)
	calls     atomic.Int32
}

func (u *usageServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(u.calls.Add(1)) - 1
	u.mu.Lock()
	idx := n
	if idx >= len(u.responses) {
		idx = len(u.responses) - 1
	}
	respond := u.responses[idx]
	u.mu.Unlock()
	respond(w)
}

func okResponse(limit, used int, delay time.Duration) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		time.Sleep(delay)
		_, _ = fmt.Fprintf(w, `{"daily_limit":%d,"used_today":%d}`, limit, used)
	}
}

func statusResponse(status int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
	}
}

func newTracker(t *testing.T, srv *usageServer, tokens TokenSource, logger *log.Logger) *Tracker {
	t.Helper()
	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)
	client := platform.NewClient(server.URL)
	return NewTracker(NewFetcher(client), tokens, logger)
}

func TestFetchLimitInfoNon2xx(t *testing.T) {
	srv := &usageServer{responses: []func(http.ResponseWriter){statusResponse(http.StatusUnauthorized)}}
	server := httptest.NewServer(srv)
	defer server.Close()

	_, err := NewFetcher(platform.NewClient(server.URL)).FetchLimitInfo(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFetchFailed))
	assert.Contains(t, err.Error(), "status 401")
}

func TestRefreshKeepsPriorValuesOn401(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: log.LevelWarn, Output: &buf})
	srv := &usageServer{responses: []func(http.ResponseWriter){
		okResponse(10, 5, 0),
		statusResponse(http.StatusUnauthorized),
	}}
	tracker := newTracker(t, srv, staticTokens("tok"), logger)

	first := tracker.Refresh(context.Background())
	require.NotNil(t, first.Info)
	assert.Equal(t, 5, first.Info.UsedToday)

	second := tracker.Refresh(context.Background())
	require.NotNil(t, second.Info)
	assert.Equal(t, platform.LimitInfo{DailyLimit: 10, UsedToday: 5}, *second.Info)
	assert.False(t, second.Loading)
	assert.True(t, errors.HasCode(second.LastErr, errors.ErrCodeFetchFailed))
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Contains(t, buf.String(), "status=401")
}

func TestRefreshFailureBeforeFirstSuccess(t *testing.T) {
	srv := &usageServer{responses: []func(http.ResponseWriter){statusResponse(http.StatusInternalServerError)}}
	tracker := newTracker(t, srv, staticTokens("tok"), nil)

	snap := tracker.Refresh(context.Background())
	assert.Nil(t, snap.Info)
	assert.Error(t, snap.LastErr)
}

func TestRefreshWithoutUserSkipsRequest(t *testing.T) {
	srv := &usageServer{responses: []func(http.ResponseWriter){okResponse(10, 1, 0)}}
	tracker := newTracker(t, srv, staticTokens(""), nil)

	snap := tracker.Refresh(context.Background())
	assert.Nil(t, snap.Info)
	assert.NoError(t, snap.LastErr)
	assert.Zero(t, srv.calls.Load())
}

func TestConcurrentRefreshesEndConsistent(t *testing.T) {
	srv := &usageServer{responses: []func(http.ResponseWriter){
		okResponse(10, 3, 30*time.Millisecond),
		okResponse(20, 7, 0),
	}}
	tracker := newTracker(t, srv, staticTokens("tok"), nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Refresh(context.Background())
		}()
	}
	wg.Wait()

	snap := tracker.Snapshot()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Info)
	// one of the two responses, never a mix of both
	assert.Contains(t, []platform.LimitInfo{
		{DailyLimit: 10, UsedToday: 3},
		{DailyLimit: 20, UsedToday: 7},
	}, *snap.Info)
}

func TestBeginComplete(t *testing.T) {
	srv := &usageServer{responses: []func(http.ResponseWriter){okResponse(4, 1, 0)}}
	tracker := newTracker(t, srv, staticTokens("tok"), nil)

	assert.True(t, tracker.Begin().Loading)
	assert.True(t, tracker.Snapshot().Loading)

	snap := tracker.Complete(context.Background())
	assert.False(t, snap.Loading)
	assert.InDelta(t, 25.0, snap.Info.Percentage(), 0.001)
}

func TestResetDropsPreviousAccount(t *testing.T) {
	srv := &usageServer{responses: []func(http.ResponseWriter){okResponse(10, 7, 0)}}
	tracker := newTracker(t, srv, staticTokens("tok"), nil)

	tracker.Reset("uid-alice")
	snap := tracker.Refresh(context.Background())
	require.NotNil(t, snap.Info)
	assert.Equal(t, "uid-alice", snap.UID)

	same := tracker.Reset("uid-alice")
	require.NotNil(t, same.Info, "same account keeps its usage")

	bob := tracker.Reset("uid-bob")
	assert.Nil(t, bob.Info)
	assert.Equal(t, "uid-bob", bob.UID)
	assert.True(t, bob.UpdatedAt.IsZero())

	assert.Nil(t, tracker.Reset("").Info)
}

func TestResetDropsInFlightFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	srv := &usageServer{responses: []func(http.ResponseWriter){
		func(w http.ResponseWriter) {
			close(started)
			<-release
			_, _ = fmt.Fprint(w, `{"daily_limit":10,"used_today":7}`)
		},
	}}
	tracker := newTracker(t, srv, staticTokens("tok"), nil)
	tracker.Reset("uid-alice")

	done := make(chan Snapshot)
	go func() { done <- tracker.Refresh(context.Background()) }()
	<-started

	tracker.Reset("uid-bob")
	close(release)
	<-done

	snap := tracker.Snapshot()
	assert.Equal(t, "uid-bob", snap.UID)
	assert.Nil(t, snap.Info)
	assert.False(t, snap.Loading)
}
