package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/greetd-stub/journal"
	"github.com/jmcleod/greetd-stub/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *journal.MemoryStore) {
	t.Helper()
	store := journal.NewMemoryStore()
	opts := session.NewOptions("alice", "top-secret", session.WithSecondFactor(true))
	srv := httptest.NewServer(New(opts, store).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConfig_HidesPassword(t *testing.T) {
	srv, _ := newTestServer(t)

	var raw map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/config", &raw))
	assert.Equal(t, map[string]any{
		"username":      "alice",
		"second_factor": true,
		"biometric":     false,
	}, raw)
}

func TestConnectionsAndEvents(t *testing.T) {
	srv, store := newTestServer(t)

	var ids []string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/connections", &ids))
	assert.Empty(t, ids)

	require.NoError(t, store.Append(journal.Event{ID: "e1", ConnID: "c1", Kind: journal.KindConnectionOpened}))
	require.NoError(t, store.Append(journal.Event{ID: "e2", ConnID: "c1", Kind: journal.KindAuthSucceeded}))

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/connections", &ids))
	assert.Equal(t, []string{"c1"}, ids)

	var events []journal.Event
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/connections/c1/events", &events))
	require.Len(t, events, 2)
	assert.Equal(t, journal.KindAuthSucceeded, events[1].Kind)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/connections/nope/events", &errResp))
	assert.NotEmpty(t, errResp.Error)
}
