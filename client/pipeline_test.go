package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/stretchr/testify/require"
)

// resourceServer accepts exactly one bearer token at a time.
type resourceServer struct {
	*httptest.Server
	valid  atomic.Value
	hits   atomic.Int32
	status atomic.Int32

	mu     sync.Mutex
	bodies []string
}

func newResourceServer(t *testing.T, valid string) *resourceServer {
	t.Helper()
	rs := &resourceServer{}
	rs.valid.Store(valid)
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.bodies = append(rs.bodies, string(body))
		rs.mu.Unlock()

		if code := rs.status.Load(); code != 0 {
			w.WriteHeader(int(code))
			_, _ = io.WriteString(w, "status "+http.StatusText(int(code)))
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+rs.valid.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *resourceServer) seenBodies() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.bodies...)
}

// fakeRefresher hands out the next pair and makes the resource server
// accept it.
type fakeRefresher struct {
	server *resourceServer
	delay  time.Duration
	err    error
	block  bool

	calls atomic.Int32
	next  string
	seen  goToken.RefreshRequest
}

func (f *fakeRefresher) Refresh(ctx context.Context, req goToken.RefreshRequest) (*goToken.AuthResponse, error) {
	f.calls.Add(1)
	f.seen = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.server != nil {
		f.server.valid.Store(f.next)
	}
	return &goToken.AuthResponse{
		IsSuccess:    true,
		Message:      goToken.MessageRefreshSucceeded,
		AccessToken:  f.next,
		RefreshToken: "refresh-2",
		UserID:       req.UserID,
	}, nil
}

type pipelineFixture struct {
	session   *Session
	server    *resourceServer
	refresher *fakeRefresher
	pipeline  *Pipeline
	old       string
	fresh     string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	old := mintToken(t, "u1", time.Now().Add(time.Hour))
	fresh := mintToken(t, "u1", time.Now().Add(2*time.Hour))

	session := NewSession(SessionConfig{})
	require.NoError(t, session.State().BeginSession(context.Background(), "u1", old, "refresh-1"))

	server := newResourceServer(t, fresh)
	refresher := &fakeRefresher{server: server, next: fresh}
	return &pipelineFixture{
		session:   session,
		server:    server,
		refresher: refresher,
		pipeline:  NewPipeline(server.Client(), session, refresher, nil),
		old:       old,
		fresh:     fresh,
	}
}

func (f *pipelineFixture) get(t *testing.T, ctx context.Context) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/data", nil)
	require.NoError(t, err)
	return req
}

func TestPipelineAttachesBearer(t *testing.T) {
	f := newPipelineFixture(t)
	f.server.valid.Store(f.old)

	resp, err := f.pipeline.Do(f.get(t, context.Background()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Zero(t, f.refresher.calls.Load())
}

func TestPipelineRefreshesOnceAndRetries(t *testing.T) {
	f := newPipelineFixture(t)

	resp, err := f.pipeline.Do(f.get(t, context.Background()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, f.refresher.calls.Load())
	require.EqualValues(t, 2, f.server.hits.Load())
	require.Equal(t, goToken.RefreshRequest{UserID: "u1", RefreshToken: "refresh-1"}, f.refresher.seen)

	access, err := f.session.Cache().AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, f.fresh, access)
	rt, _ := f.session.Cache().RefreshToken(context.Background())
	require.Equal(t, "refresh-2", rt)
}

func TestPipelineConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	f := newPipelineFixture(t)
	f.refresher.delay = 50 * time.Millisecond

	const workers = 8
	var wg sync.WaitGroup
	codes := make(chan int, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, f.server.URL+"/data", nil)
			if err != nil {
				errs <- err
				return
			}
			resp, err := f.pipeline.Do(req)
			if err != nil {
				errs <- err
				return
			}
			codes <- resp.StatusCode
			_ = resp.Body.Close()
		}()
	}
	wg.Wait()
	close(codes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	n := 0
	for code := range codes {
		require.Equal(t, http.StatusOK, code)
		n++
	}
	require.Equal(t, workers, n)
	require.EqualValues(t, 1, f.refresher.calls.Load())
	require.EqualValues(t, 1, f.pipeline.Refreshes())
}

func TestPipelineDoesNotRetryTwice(t *testing.T) {
	f := newPipelineFixture(t)
	f.server.valid.Store("nobody")
	f.refresher.server = nil

	resp, err := f.pipeline.Do(f.get(t, context.Background()))
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrUnauthorized)
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, http.StatusUnauthorized, e.StatusCode)
	require.EqualValues(t, 1, f.refresher.calls.Load())
	require.EqualValues(t, 2, f.server.hits.Load())
}

func TestPipelineFailedRefreshEndsSession(t *testing.T) {
	f := newPipelineFixture(t)
	f.refresher.err = newError(KindRejected, http.StatusUnauthorized, goToken.MessageTokenMismatch, nil)

	var ended atomic.Bool
	f.session.State().Subscribe(func(p Principal) {
		if p.IsAnonymous() {
			ended.Store(true)
		}
	})

	resp, err := f.pipeline.Do(f.get(t, context.Background()))
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, KindSessionExpired, KindOf(err))

	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, MessageSessionExpired, e.Message)
	require.True(t, ended.Load())

	p, err := f.session.State().CurrentPrincipal(context.Background())
	require.NoError(t, err)
	require.True(t, p.IsAnonymous())
	require.EqualValues(t, 1, f.server.hits.Load())
}

func TestPipelineWaiterSeesEndedSession(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.session.State().EndSession(context.Background()))

	_, err := f.pipeline.refresh(context.Background(), f.old)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Zero(t, f.refresher.calls.Load())
}

func TestPipelineWithoutRefreshTokenExpires(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.cache.storage.Delete(ctx, f.session.cache.key(slotRefresh)))

	_, err := f.pipeline.Do(f.get(t, ctx))
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Zero(t, f.refresher.calls.Load())
}

func TestPipelineStatusKindsNeverRefresh(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "forbidden", status: http.StatusForbidden, want: ErrForbidden},
		{name: "internal", status: http.StatusInternalServerError, want: ErrServer},
		{name: "unavailable", status: http.StatusServiceUnavailable, want: ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			f.server.status.Store(int32(tt.status))

			resp, err := f.pipeline.Do(f.get(t, context.Background()))
			require.ErrorIs(t, err, tt.want)
			require.Nil(t, resp, "status failures close the response")
			var e *Error
			require.ErrorAs(t, err, &e)
			require.Equal(t, tt.status, e.StatusCode)
			require.Equal(t, "status "+http.StatusText(tt.status), string(e.Body))
			require.Zero(t, f.refresher.calls.Load())

			access, _ := f.session.Cache().AccessToken(context.Background())
			require.Equal(t, f.old, access, "session untouched")
		})
	}
}

func TestPipelineNetworkError(t *testing.T) {
	f := newPipelineFixture(t)
	url := f.server.URL
	f.server.Close()

	req, err := http.NewRequest(http.MethodGet, url+"/data", nil)
	require.NoError(t, err)
	_, err = f.pipeline.Do(req)
	require.ErrorIs(t, err, ErrNetwork)
	require.Zero(t, f.refresher.calls.Load())
}

func TestPipelineTimeout(t *testing.T) {
	f := newPipelineFixture(t)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, slow.URL, nil)
	require.NoError(t, err)

	_, err = f.pipeline.Do(req)
	require.ErrorIs(t, err, ErrTimeout)
	require.Zero(t, f.refresher.calls.Load())
}

func TestPipelineCancelledBeforeSend(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Do(f.get(t, ctx))
	require.ErrorIs(t, err, ErrCancelled)
	require.Zero(t, f.server.hits.Load())
	require.Zero(t, f.refresher.calls.Load())
}

func TestPipelineCancelledDuringRefreshKeepsSession(t *testing.T) {
	f := newPipelineFixture(t)
	f.refresher.block = true

	ctx, cancel := context.WithCancel(context.Background())
	req := f.get(t, ctx)
	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Do(req)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.refresher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	require.ErrorIs(t, err, ErrCancelled)
	access, _ := f.session.Cache().AccessToken(context.Background())
	require.Equal(t, f.old, access)
}

func TestPipelineResendsBodyOnRetry(t *testing.T) {
	f := newPipelineFixture(t)
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/data", io.NopCloser(strings.NewReader("payload")))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := f.pipeline.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, []string{"payload", "payload"}, f.server.seenBodies())
}

func TestPipelineSessionsRefreshIndependently(t *testing.T) {
	a := newPipelineFixture(t)
	b := newPipelineFixture(t)

	require.NoError(t, a.session.lock(context.Background()))
	defer a.session.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := b.pipeline.Do(b.get(t, ctx))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.EqualValues(t, 1, b.refresher.calls.Load())
}

func TestPipelineLockWaitHonorsContext(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.session.lock(context.Background()))
	defer f.session.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.pipeline.refresh(ctx, f.old)
	require.ErrorIs(t, err, ErrTimeout)
	require.Zero(t, f.refresher.calls.Load())
}
