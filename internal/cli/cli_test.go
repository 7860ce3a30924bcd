package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainRails = `
define user express greeting
  "hello"

define user ask balance
  "what is my balance"

define bot express greeting
  "Hello from the yard."

define bot inform balance
  "Your balance is $balance."

define flow greeting
  user express greeting
  bot express greeting

define flow balance
  user ask balance
  $balance = execute lookup_balance
  bot inform balance
`

const actionsFile = `
actions:
  - name: lookup_balance
    command: sh
    args: ["-c", "echo 42 EUR"]
`

func writeRails(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	base := map[string]string{
		"config.yml":   "models:\n  provider: offline\n",
		"main.co":      mainRails,
		"actions.yaml": actionsFile,
	}
	for name, data := range files {
		base[name] = data
	}
	for name, data := range base {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	return dir
}

func TestRunValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		dir := writeRails(t, nil)
		var out bytes.Buffer
		require.NoError(t, RunValidate(Options{Dir: dir}, &out))
		assert.Contains(t, out.String(), "Rails are valid: 2 intents")
	})

	t.Run("unregistered action", func(t *testing.T) {
		dir := writeRails(t, map[string]string{"actions.yaml": "actions: []\n"})
		var out bytes.Buffer
		err := RunValidate(Options{Dir: dir}, &out)
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, out.String(), `unregistered action "lookup_balance"`)
	})

	t.Run("broken actions file", func(t *testing.T) {
		dir := writeRails(t, map[string]string{"actions.yaml": "actions: [oops"})
		err := RunValidate(Options{Dir: dir}, &bytes.Buffer{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalid)
	})
}

func TestRunGraph(t *testing.T) {
	dir := writeRails(t, nil)
	var out bytes.Buffer
	require.NoError(t, RunGraph(context.Background(), GraphOptions{Options: Options{Dir: dir}}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "graph TD"))
	assert.Contains(t, out.String(), `subgraph f1["balance"]`)
	assert.Contains(t, out.String(), "execute lookup_balance")
}

func TestRunGraph_UnknownSession(t *testing.T) {
	dir := writeRails(t, nil)
	err := RunGraph(context.Background(), GraphOptions{Options: Options{Dir: dir}, SessionID: "nope"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRunChat_JSON(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("actions use sh")
	}
	dir := writeRails(t, nil)
	var out, logs bytes.Buffer
	err := RunChat(context.Background(), ChatOptions{
		Options: Options{Dir: dir},
		JSON:    true,
		Stdin:   strings.NewReader("hello\n{\"text\":\"what is my balance\"}\nquit\n"),
		Stdout:  &out,
		Stderr:  &logs,
	})
	require.NoError(t, err)

	var replies []domain.Reply
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r domain.Reply
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		replies = append(replies, r)
	}
	require.Len(t, replies, 2)
	require.NotNil(t, replies[0].Response)
	assert.Equal(t, []string{"Hello from the yard."}, replies[0].Response.Messages)
	require.NotNil(t, replies[1].Response)
	assert.Equal(t, []string{"Your balance is 42 EUR."}, replies[1].Response.Messages)
	assert.NotContains(t, logs.String(), "level=INFO")
}

func TestRunChat_Text(t *testing.T) {
	dir := writeRails(t, nil)
	var out bytes.Buffer
	err := RunChat(context.Background(), ChatOptions{
		Options: Options{Dir: dir},
		Stdin:   strings.NewReader("hello\n"),
		Stdout:  &out,
		Stderr:  &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "rails: "+filepath.Base(dir))
	assert.Contains(t, out.String(), "Hello from the yard.")
}

func TestRunChat_InvalidRails(t *testing.T) {
	dir := writeRails(t, map[string]string{"main.co": "define flow broken\n  bot express greeting\n"})
	err := RunChat(context.Background(), ChatOptions{
		Options: Options{Dir: dir},
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	})
	require.Error(t, err)
}

func TestRunServe(t *testing.T) {
	dir := writeRails(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunServe(ctx, ServeOptions{
			Options: Options{Dir: dir},
			Addr:    "127.0.0.1:0",
			Stderr:  &bytes.Buffer{},
			Ready:   func(addr string) { ready <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestCreateLogger(t *testing.T) {
	dir := writeRails(t, map[string]string{"config.yml": "models:\n  provider: offline\nlogging:\n  level: error\n  format: json\n"})

	var buf bytes.Buffer
	logger, err := createLogger(Options{Dir: dir}, &buf)
	require.NoError(t, err)
	logger.Warn("hidden")
	logger.Error("shown", "error", errors.New("boom"))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"err":"boom"`)

	buf.Reset()
	logger, err = createLogger(Options{Dir: dir, LogLevel: "debug", LogFormat: "text"}, &buf)
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")

	_, err = createLogger(Options{Dir: dir, LogFormat: "xml"}, &buf)
	assert.Error(t, err)
}

func TestReloadHub(t *testing.T) {
	hub := newReloadHub()
	ctx, cancel := context.WithCancel(context.Background())

	a, err := hub.Watch(ctx)
	require.NoError(t, err)
	b, err := hub.Watch(context.Background())
	require.NoError(t, err)

	hub.publish(nil)
	hub.publish(assert.AnError)
	assert.NoError(t, <-a)
	assert.ErrorIs(t, <-a, assert.AnError)
	assert.NoError(t, <-b)

	cancel()
	_, ok := <-a
	assert.False(t, ok)
}

func TestBankingExample(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("actions use sh")
	}
	opts := Options{Dir: filepath.Join("..", "..", "examples", "banking")}

	var report bytes.Buffer
	require.NoError(t, RunValidate(opts, &report))
	assert.NotContains(t, report.String(), "warning")

	var out bytes.Buffer
	err := RunChat(context.Background(), ChatOptions{
		Options: opts,
		JSON:    true,
		Stdin:   strings.NewReader("hello\nwhat is my balance\nmy card is 4111 1111 1111 1111\nwhere is my card\n"),
		Stdout:  &out,
		Stderr:  &bytes.Buffer{},
	})
	require.NoError(t, err)

	var replies []domain.Reply
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r domain.Reply
		require.NoError(t, dec.Decode(&r))
		replies = append(replies, r)
	}
	require.Len(t, replies, 4)
	assert.Equal(t, "Your balance is 1,250.00 EUR.", replies[1].Text())
	require.True(t, replies[2].Rejected())
	assert.Equal(t, domain.CheckpointInput, replies[2].Rejection.Checkpoint)
	assert.Equal(t, "Please never share card numbers in this chat.", replies[2].Text())
	assert.Equal(t, "Your card has shipped.", replies[3].Text())
}
