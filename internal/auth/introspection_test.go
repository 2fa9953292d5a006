package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elibrary/apigateway/internal/retry"
)

// recordingSleep records backoff delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *recordingSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestClient(t *testing.T, endpoint string, sleep *recordingSleep) *IntrospectionClient {
	t.Helper()

	client, err := NewIntrospectionClient(&ClientConfig{
		Endpoint: endpoint,
		Timeout:  100 * time.Millisecond,
		Retry: retry.Config{
			MaxRetries:  2,
			BaseBackoff: 300 * time.Millisecond,
		},
		Sleep: sleep.Sleep,
	})
	require.NoError(t, err)
	return client
}

func TestNewIntrospectionClient_RequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewIntrospectionClient(nil)
	assert.ErrorIs(t, err, ErrMissingEndpoint)

	_, err = NewIntrospectionClient(&ClientConfig{})
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}

func TestIntrospect_Active(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/introspect", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-1", body["token"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":true,"user_id":"u-7","roles":["reader","admin"],"exp":1700000000}`))
	}))
	defer server.Close()

	sleep := &recordingSleep{}
	client := newTestClient(t, server.URL+"/auth/introspect", sleep)

	result, err := client.Introspect(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, UserID("u-7"), result.UserID)
	assert.Equal(t, []string{"reader", "admin"}, result.Roles)
	require.NotNil(t, result.Exp)
	assert.Equal(t, int64(1700000000), *result.Exp)
	assert.Empty(t, sleep.Delays())
}

func TestIntrospect_NumericUserIDAndMissingRoles(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"active":true,"user_id":42,"exp":null}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &recordingSleep{})

	result, err := client.Introspect(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, UserID("42"), result.UserID)
	assert.Nil(t, result.Exp)

	identity := result.Identity()
	assert.Equal(t, "42", identity.UserID)
	assert.NotNil(t, identity.Roles)
	assert.Empty(t, identity.Roles)
}

func TestIntrospect_StatusErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sleep := &recordingSleep{}
	client := newTestClient(t, server.URL, sleep)

	_, err := client.Introspect(context.Background(), "tok")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, sleep.Delays())
}

func TestIntrospect_MalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"active":true,"user_id":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &recordingSleep{})

	_, err := client.Introspect(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestIntrospect_TimeoutThenSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"active":true,"user_id":"u-1","roles":["reader"]}`))
	}))
	defer server.Close()

	sleep := &recordingSleep{}
	client := newTestClient(t, server.URL, sleep)

	result, err := client.Introspect(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, sleep.Delays(), 1)
}

func TestIntrospect_ConnectionRefusedExhaustsRetries(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	sleep := &recordingSleep{}
	client := newTestClient(t, "http://"+addr+"/auth/introspect", sleep)

	_, err = client.Introspect(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, retry.IsNetworkError(err))

	delays := sleep.Delays()
	require.Len(t, delays, 2)
	assert.GreaterOrEqual(t, delays[0], 300*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 600*time.Millisecond)
}

func TestIntrospect_CanceledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"active":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &recordingSleep{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Introspect(ctx, "tok")
	assert.True(t, errors.Is(err, context.Canceled))
}
