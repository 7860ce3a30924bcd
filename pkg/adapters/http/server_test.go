package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/railyard"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRails = `
define user express greeting
  "hello"

define user ask order
  "where is my order"

define bot express greeting
  "Hello there!"

define bot ask order number
  "What is your order number?"

define bot inform tracking
  "It ships tomorrow."

define flow greeting
  user express greeting
  bot express greeting

define flow order
  user ask order
  bot ask order number
  user ...
  bot inform tracking
`

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *railyard.Engine) {
	t.Helper()
	eng, err := railyard.New("",
		railyard.WithSource("test.co", []byte(testRails)),
		railyard.WithConfigYAML([]byte("models:\n  provider: offline\n")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	h, err := NewHandler(eng, opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, eng
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body sessionCreated
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func send(t *testing.T, srv *httptest.Server, id, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions/"+id+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSessionRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	id := startSession(t, srv)

	resp := send(t, srv, id, `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply domain.Reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, id, reply.SessionID)
	require.NotNil(t, reply.Response)
	assert.Equal(t, []string{"Hello there!"}, reply.Response.Messages)

	getResp, err := http.Get(srv.URL + "/sessions/" + id)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var sess domain.Session
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&sess))
	assert.Len(t, sess.History, 2)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	resp = send(t, srv, id, `{"text":"hello"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitUserMessage_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := startSession(t, srv)

	tests := []struct {
		name string
		body string
	}{
		{"missing text", `{}`},
		{"empty text", `{"text":""}`},
		{"unknown field", `{"text":"hi","mood":"happy"}`},
		{"not json", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, srv, id, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHealthAndInfo(t *testing.T) {
	srv, _ := newTestServer(t, WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("railyard_turns_total 0\n"))
	})))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, railyard.Version, info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/nowhere")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubscribeSession(t *testing.T) {
	srv, _ := newTestServer(t)
	id := startSession(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+id+"/events?watch=flow", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "data: ") {
				lines <- strings.TrimPrefix(sc.Text(), "data: ")
			}
		}
	}()
	require.Equal(t, "connected", <-lines)

	send(t, srv, id, `{"text":"where is my order"}`)

	select {
	case data := <-lines:
		var diff domain.SessionDiff
		require.NoError(t, json.Unmarshal([]byte(data), &diff))
		require.NotNil(t, diff.ActiveFlow)
		assert.Equal(t, "order", *diff.ActiveFlow)
		assert.Len(t, diff.History, 2)
	case <-ctx.Done():
		t.Fatal("no diff received")
	}
}

func TestSubscribeSession_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/sessions/nope/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type fakeReloader struct {
	results []error
}

func (f fakeReloader) Watch(context.Context) (<-chan error, error) {
	ch := make(chan error, len(f.results))
	for _, err := range f.results {
		ch <- err
	}
	close(ch)
	return ch, nil
}

func TestSubscribeReloads(t *testing.T) {
	srv, _ := newTestServer(t, WithReloader(fakeReloader{results: []error{nil, assert.AnError}}))

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	var events []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "data: {") {
			events = append(events, strings.TrimPrefix(sc.Text(), "data: "))
		}
	}
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"ok":true}`, events[0])
	assert.Contains(t, events[1], `"ok":false`)
}

func TestSubscribeReloads_Disabled(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager()
	assert.False(t, sm.HasSubscribers("s1"))

	ch, cancel := sm.Subscribe("s1")
	assert.True(t, sm.HasSubscribers("s1"))
	sm.Broadcast("s1", "one")
	sm.Broadcast("s2", "ignored")
	assert.Equal(t, "one", <-ch)

	sm.Close("s1")
	_, ok := <-ch
	assert.False(t, ok)
	cancel()
	assert.False(t, sm.HasSubscribers("s1"))
}
