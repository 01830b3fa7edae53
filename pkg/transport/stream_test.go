package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

const validFrame = `{"id":42,"sensor_name":"Sector 2 Exit","speed":275.3,"lane":1,"created_at":"2025-12-05T10:00:00Z"}`

// sseServer 写出给定帧，hold 为真时保持连接直到客户端断开
func sseServer(t *testing.T, frames []string, hold bool) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		if r.Header.Get("Accept") != "text/event-stream" {
			http.Error(w, "expected event stream", http.StatusNotAcceptable)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = io.WriteString(w, ": ping\n\n")
		for _, f := range frames {
			_, _ = io.WriteString(w, f)
		}
		flusher.Flush()

		if hold {
			<-r.Context().Done()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

// nextEvent 在超时内读取事件，通道关闭时 ok 为 false
func nextEvent(t *testing.T, s core.Stream) (core.StreamEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream event")
	}
	return core.StreamEvent{}, false
}

func TestStream_MalformedFramesSkipped(t *testing.T) {
	frames := []string{
		"data: not json\n\n",
		"data: {\"id\":-1,\"speed\":1,\"lane\":0,\"created_at\":\"2025-12-05T10:00:00Z\"}\n\n",
		"data: {\"id\":1,\"speed\":900,\"lane\":0,\"created_at\":\"2025-12-05T10:00:00Z\"}\n\n",
		"data: {\"id\":1,\"speed\":10,\"lane\":2,\"created_at\":\"2025-12-05T10:00:00Z\"}\n\n",
		"data: {\"id\":1,\"speed\":10,\"lane\":0,\"created_at\":\"noon\"}\n\n",
		"data: " + validFrame + "\n\n",
	}
	srv, _ := sseServer(t, frames, true)
	client, metrics, logs := newLoggedClient(t, srv)

	stream := client.OpenStream(context.Background())
	defer stream.Close()

	ev, ok := nextEvent(t, stream)
	require.True(t, ok)
	require.Equal(t, core.EventOpen, ev.Kind)

	ev, ok = nextEvent(t, stream)
	require.True(t, ok)
	require.Equal(t, core.EventReading, ev.Kind)
	assert.Equal(t, int64(42), ev.Reading.ID)
	assert.Equal(t, core.LaneRight, ev.Reading.Lane)

	assert.Equal(t, 5, strings.Count(logs.String(), "WARN"))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.framesRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.framesDecoded))

	// 连接仍然打开，没有更多事件
	select {
	case ev := <-stream.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStream_OversizedLineSkipped(t *testing.T) {
	huge := "data: {\"id\":7,\"sensor_name\":\"" + strings.Repeat("x", 2<<20) + "\"}\n\n"
	srv, _ := sseServer(t, []string{huge, "data: " + validFrame + "\n\n"}, true)
	client, metrics, logs := newLoggedClient(t, srv)

	stream := client.OpenStream(context.Background())
	defer stream.Close()

	ev, ok := nextEvent(t, stream)
	require.True(t, ok)
	require.Equal(t, core.EventOpen, ev.Kind)

	ev, ok = nextEvent(t, stream)
	require.True(t, ok)
	require.Equal(t, core.EventReading, ev.Kind, "oversized line must not end the connection: %v", ev.Err)
	assert.Equal(t, int64(42), ev.Reading.ID)

	assert.Equal(t, 1, strings.Count(logs.String(), "WARN"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.framesRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.framesDecoded))
}

func TestReadLine(t *testing.T) {
	input := strings.Repeat("y", maxFrameBytes+100) + "\nshort\r\n\ntail"
	r := bufio.NewReaderSize(strings.NewReader(input), 16)

	line, tooLong, err := readLine(r, nil)
	require.NoError(t, err)
	assert.True(t, tooLong)
	assert.Empty(t, line)

	line, tooLong, err = readLine(r, nil)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "short", string(line))

	line, _, err = readLine(r, nil)
	require.NoError(t, err)
	assert.Empty(t, line)

	_, _, err = readLine(r, nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_HeadersAndAuth(t *testing.T) {
	srv, rec := sseServer(t, nil, true)
	client, _, _ := newLoggedClient(t, srv, WithToken("tok"))

	stream := client.OpenStream(context.Background())
	defer stream.Close()

	ev, ok := nextEvent(t, stream)
	require.True(t, ok)
	require.Equal(t, core.EventOpen, ev.Kind)

	got := rec.last()
	assert.Equal(t, "/api/speeds/stream", got.Path)
	assert.Equal(t, "Bearer tok", got.Auth)
}

func TestStream_MultilineAndNamedEvents(t *testing.T) {
	payload := strings.Replace(validFrame, ",", ",\ndata: ", 1)
	frames := []string{
		"event: heartbeat\ndata: {}\n\n",
		"data: " + payload + "\r\n\r\n",
	}
	srv, _ := sseServer(t, frames, true)
	client, _, logs := newLoggedClient(t, srv)

	stream := client.OpenStream(context.Background())
	defer stream.Close()

	_, _ = nextEvent(t, stream)
	ev, ok := nextEvent(t, stream)
	require.True(t, ok)
	require.Equal(t, core.EventReading, ev.Kind)
	assert.Equal(t, int64(42), ev.Reading.ID)
	assert.Empty(t, logs.String())
}

func TestStream_NonSuccessStatus(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusUnauthorized, `{"error":"unauthorized"}`)
	client, _, _ := newLoggedClient(t, srv)

	stream := client.OpenStream(context.Background())
	defer stream.Close()

	ev, ok := nextEvent(t, stream)
	require.True(t, ok)
	require.Equal(t, core.EventError, ev.Kind)

	var streamErr *core.StreamError
	require.True(t, errors.As(ev.Err, &streamErr))
	assert.Equal(t, http.StatusUnauthorized, streamErr.Status)
	assert.Equal(t, core.FailureStream, core.ClassifyFailure(ev.Err))

	_, ok = nextEvent(t, stream)
	assert.False(t, ok, "channel should close after the error event")
}

func TestStream_RelayErrorFrame(t *testing.T) {
	frames := []string{
		"event: error\ndata: {\"error\":\"SSE connection failed\",\"details\":\"Backend SSE connection failed: 502\"}\n\n",
	}
	srv, _ := sseServer(t, frames, true)
	client, _, _ := newLoggedClient(t, srv, WithProxy(true))

	stream := client.OpenStream(context.Background())
	defer stream.Close()

	ev, _ := nextEvent(t, stream)
	require.Equal(t, core.EventOpen, ev.Kind)

	ev, _ = nextEvent(t, stream)
	require.Equal(t, core.EventError, ev.Kind)
	assert.Contains(t, ev.Err.Error(), "SSE connection failed")

	_, ok := nextEvent(t, stream)
	assert.False(t, ok)
}

func TestStream_ServerClosed(t *testing.T) {
	srv, _ := sseServer(t, []string{"data: " + validFrame + "\n\n"}, false)
	client, _, _ := newLoggedClient(t, srv)

	stream := client.OpenStream(context.Background())
	defer stream.Close()

	var kinds []core.EventKind
	for {
		ev, ok := nextEvent(t, stream)
		if !ok {
			break
		}
		kinds = append(kinds, ev.Kind)
	}

	assert.Equal(t, []core.EventKind{core.EventOpen, core.EventReading, core.EventError}, kinds)
}

func TestStream_CloseIsSilentAndIdempotent(t *testing.T) {
	srv, _ := sseServer(t, nil, true)
	client, _, logs := newLoggedClient(t, srv)

	stream := client.OpenStream(context.Background())
	ev, _ := nextEvent(t, stream)
	require.Equal(t, core.EventOpen, ev.Kind)

	stream.Close()
	stream.Close()

	for ev := range stream.Events() {
		assert.NotEqual(t, core.EventError, ev.Kind, "cancellation must not surface as an error")
	}
	assert.Empty(t, logs.String())
}

func TestStream_ContextCancel(t *testing.T) {
	srv, _ := sseServer(t, nil, true)
	client, _, _ := newLoggedClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	stream := client.OpenStream(ctx)
	defer stream.Close()

	_, _ = nextEvent(t, stream)
	cancel()

	for {
		ev, ok := nextEvent(t, stream)
		if !ok {
			break
		}
		assert.NotEqual(t, core.EventError, ev.Kind)
	}
}

func TestSplitField(t *testing.T) {
	cases := map[string][2]string{
		"data: x":     {"data", "x"},
		"data:x":      {"data", "x"},
		"data:  x":    {"data", " x"},
		"event":       {"event", ""},
		"id: 7":       {"id", "7"},
		"data: a: b":  {"data", "a: b"},
		"retry: 3000": {"retry", "3000"},
	}
	for line, want := range cases {
		field, value := splitField(line)
		assert.Equal(t, want, [2]string{field, value}, fmt.Sprintf("line %q", line))
	}
}
