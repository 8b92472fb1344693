package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"gitlab.com/orlodrimbot/mwbot/errs"
	"gitlab.com/orlodrimbot/mwbot/transport"
)

func TestCachingClientServesSecondRequestFromDisk(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("cached response"))
	}))
	defer srv.Close()

	client, err := transport.NewClient()
	require.NoError(t, err)
	cc := transport.NewCachingClient(client, t.TempDir(), transport.CacheEnabled)

	body1, errE := cc.Get(context.Background(), srv.URL)
	require.NoError(t, errE)
	body2, errE := cc.Get(context.Background(), srv.URL)
	require.NoError(t, errE)

	assert.Equal(t, "cached response", string(body1))
	assert.Equal(t, body1, body2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestCachingClientOfflineModeMissReturnsPageNotInCache(t *testing.T) {
	client, err := transport.NewClient()
	require.NoError(t, err)
	cc := transport.NewCachingClient(client, t.TempDir(), transport.CacheReadEnabled|transport.CacheOfflineMode)

	_, errE := cc.Get(context.Background(), "https://example.invalid/not-cached")
	require.Error(t, errE)
	assert.True(t, errors.Is(errE, errs.PageNotInCache))
}

func TestCachingClientDoNotCacheLastResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ephemeral"))
	}))
	defer srv.Close()

	client, err := transport.NewClient()
	require.NoError(t, err)
	cc := transport.NewCachingClient(client, t.TempDir(), transport.CacheEnabled)

	_, errE := cc.Get(context.Background(), srv.URL)
	require.NoError(t, errE)
	require.NoError(t, cc.DoNotCacheLastResponse())

	cc.SetCacheMode(transport.CacheReadEnabled | transport.CacheOfflineMode)
	_, errE = cc.Get(context.Background(), srv.URL)
	require.Error(t, errE)
	assert.True(t, errors.Is(errE, errs.PageNotInCache))
}
