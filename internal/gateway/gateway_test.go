package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/recipes/internal/session"
	"github.com/wolfeidau/recipes/internal/tokenstore"
)

func newTestSession(t *testing.T, token string, opts ...session.Option) *session.State {
	t.Helper()
	ctx := context.Background()

	s := session.New(ctx, tokenstore.NewMemoryStore(), opts...)
	if token != "" {
		require.NoError(t, s.Login(ctx, token, &session.User{ID: "u1", Name: "Ann", Role: "member"}))
	}
	return s
}

func newTestGateway(t *testing.T, srv *httptest.Server, s Session) *Gateway {
	t.Helper()

	gw, err := New(srv.URL, s, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return gw
}

func TestNew_InvalidBaseURL(t *testing.T) {
	s := newTestSession(t, "")

	_, err := New("not a url", s)
	require.Error(t, err)

	_, err = New("/relative/only", s)
	require.Error(t, err)
}

func TestGateway_HeaderInjection(t *testing.T) {
	var captured http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		token    string
		expected string
		present  bool
	}{
		{name: "authenticated", token: "tok-123", expected: "Bearer tok-123", present: true},
		{name: "anonymous", token: "", present: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, srv, newTestSession(t, tt.token))

			resp, err := gw.Do(context.Background(), &Request{Path: "/api/recipes"})
			require.NoError(t, err)
			resp.Body.Close()

			_, present := captured["Authorization"]
			assert.Equal(t, tt.present, present)
			assert.Equal(t, tt.expected, captured.Get("Authorization"))
		})
	}
}

func TestGateway_DefaultHeaders(t *testing.T) {
	var captured *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv, newTestSession(t, "tok"))

	t.Run("json body", func(t *testing.T) {
		resp, err := gw.Do(context.Background(), &Request{
			Method: http.MethodPost,
			Path:   "/api/recipes",
			Body:   map[string]string{"title": "Soup"},
		})
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, "/api/recipes", captured.URL.Path)
		assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", captured.Header.Get("Accept"))
		assert.NotEmpty(t, captured.Header.Get(RequestIDHeader))
		assert.JSONEq(t, `{"title":"Soup"}`, body)
	})

	t.Run("caller headers win", func(t *testing.T) {
		header := http.Header{}
		header.Set("Accept", "text/csv")
		header.Set(RequestIDHeader, "req-1")

		resp, err := gw.Do(context.Background(), &Request{Path: "/api/recipes/export", Header: header})
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "text/csv", captured.Header.Get("Accept"))
		assert.Equal(t, "req-1", captured.Header.Get(RequestIDHeader))
	})

	t.Run("binary body has no default content type", func(t *testing.T) {
		resp, err := gw.Do(context.Background(), &Request{
			Method: http.MethodPut,
			Path:   "/api/recipes/1/photo",
			Body:   []byte{0x89, 0x50, 0x4e, 0x47},
		})
		require.NoError(t, err)
		resp.Body.Close()

		assert.Empty(t, captured.Header.Get("Content-Type"))
		assert.Equal(t, "\x89PNG", body)
	})

	t.Run("multipart body uses the writer boundary", func(t *testing.T) {
		header := http.Header{}
		header.Set("Content-Type", "application/json")

		resp, err := gw.Do(context.Background(), &Request{
			Method: http.MethodPost,
			Path:   "/api/recipes/import",
			Header: header,
			Body: &Multipart{
				Fields: map[string]string{"source": "cli"},
				Files:  []FilePart{{Field: "file", FileName: "soup.json", Content: strings.NewReader(`{"title":"Soup"}`)}},
			},
		})
		require.NoError(t, err)
		resp.Body.Close()

		assert.True(t, strings.HasPrefix(captured.Header.Get("Content-Type"), "multipart/form-data; boundary="))
		assert.Contains(t, body, `name="source"`)
		assert.Contains(t, body, `filename="soup.json"`)
	})
}

func TestGateway_PassesThroughStatuses(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"x"}`))
			}))
			defer srv.Close()

			s := newTestSession(t, "tok")
			gw := newTestGateway(t, srv, s)

			resp, err := gw.Do(context.Background(), &Request{Path: "/api/recipes"})
			require.NoError(t, err)
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, `{"error":"x"}`, string(data))
			assert.True(t, s.IsAuthenticated())
			assert.False(t, s.IsExpired())
		})
	}
}

func TestGateway_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := newTestSession(t, "stale")
	gw := newTestGateway(t, srv, s)

	resp, err := gw.Do(context.Background(), &Request{Path: "/api/favorites"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, resp)

	msg, ok := s.ExpiredMessage()
	assert.True(t, ok)
	assert.Equal(t, ExpiredMessage, msg)
	assert.False(t, s.IsAuthenticated())
}

func TestGateway_PublicRequestIgnoresUnauthorized(t *testing.T) {
	var captured http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := newTestSession(t, "tok")
	gw := newTestGateway(t, srv, s)

	resp, err := gw.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/api/auth/login", Public: true})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, captured.Get("Authorization"))
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.IsExpired())
}

func TestGateway_ConcurrentUnauthorizedSignalsOnce(t *testing.T) {
	const n = 25

	// Hold every response until all requests are in flight.
	var arrived sync.WaitGroup
	arrived.Add(n)
	release := make(chan struct{})
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= n {
			arrived.Done()
		}
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var notifications atomic.Int64
	s := newTestSession(t, "stale", session.WithExpiryHandler(func(string) {
		notifications.Add(1)
	}))
	gw := newTestGateway(t, srv, s)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.Do(context.Background(), &Request{Path: "/api/recipes"})
			errs <- err
		}()
	}

	arrived.Wait()
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, ErrUnauthorized)
	}

	assert.Equal(t, int64(1), notifications.Load())
	msg, ok := s.ExpiredMessage()
	assert.True(t, ok)
	assert.Equal(t, ExpiredMessage, msg)
	assert.False(t, s.IsAuthenticated())

	// Later failures do not re-trigger.
	_, err := gw.Do(context.Background(), &Request{Path: "/api/recipes"})
	require.Error(t, err)
	assert.Equal(t, int64(1), notifications.Load())
}

func TestGateway_TransportFailure(t *testing.T) {
	// Reserve a port and close it so the dial is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	s := newTestSession(t, "tok")
	gw, err := New("http://"+addr, s)
	require.NoError(t, err)

	resp, err := gw.Do(context.Background(), &Request{Path: "/api/recipes"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.False(t, errors.Is(err, ErrUnauthorized))

	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.IsExpired())
}

func TestGateway_LoginResetsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	status := atomic.Int64{}
	status.Store(http.StatusUnauthorized)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	var notifications atomic.Int64
	s := newTestSession(t, "tok-1", session.WithExpiryHandler(func(string) { notifications.Add(1) }))
	gw := newTestGateway(t, srv, s)

	_, err := gw.Do(ctx, &Request{Path: "/api/recipes"})
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, s.Login(ctx, "tok-2", &session.User{ID: "u1"}))

	_, err = gw.Do(ctx, &Request{Path: "/api/recipes"})
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, int64(2), notifications.Load())
}
