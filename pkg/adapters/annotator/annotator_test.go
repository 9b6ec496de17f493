package annotator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vnykmshr/frameflow/pkg/adapters/wire"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

func TestNewFactoryKinds(t *testing.T) {
	f, err := NewFactory(Config{}, nil)
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = NewFactory(Config{Kind: "tensorflow"}, nil)
	assert.Error(t, err)

	_, err = NewFactory(Config{Kind: KindHTTP}, nil)
	assert.Error(t, err, "http requires a url")

	_, err = NewFactory(Config{Kind: KindExec}, nil)
	assert.Error(t, err, "exec requires a command")

	_, err = NewFactory(Config{Kind: KindExec, Exec: ExecConfig{Command: "/definitely/not/here"}}, nil)
	assert.Error(t, err)
}

func TestDelayAnnotator(t *testing.T) {
	factory := NewDelayFactory(DelayConfig{Delay: 5 * time.Millisecond, Jitter: time.Millisecond})
	a, err := factory(3)
	require.NoError(t, err)
	defer a.Close()

	in := &frame.Frame{Data: []byte("img")}
	start := time.Now()
	out, err := a.Annotate(context.Background(), in)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	assert.Equal(t, "3", out.Labels["worker"])
	assert.Nil(t, in.Labels, "input frame must not be modified")
}

func TestDelayAnnotatorCancelled(t *testing.T) {
	a, err := NewDelayFactory(DelayConfig{Delay: time.Minute})(1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = a.Annotate(ctx, &frame.Frame{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func newHTTPAnnotator(t *testing.T, cfg HTTPConfig) frame.Annotator {
	t.Helper()
	factory, err := NewHTTPFactory(cfg, zap.NewNop())
	require.NoError(t, err)
	a, err := factory(2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestHTTPAnnotator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "2", r.Header.Get("X-Frameflow-Worker"))
		assert.Equal(t, "cam0/1.jpg", r.Header.Get("X-Frame-Source"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"labels": map[string]string{"bytes": strconv.Itoa(len(body)), "person": "1"},
		})
	}))
	defer server.Close()

	a := newHTTPAnnotator(t, HTTPConfig{URL: server.URL, Headers: map[string]string{"X-Api-Key": "secret"}})
	out, err := a.Annotate(context.Background(), &frame.Frame{Data: []byte("12345"), Source: "cam0/1.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "5", out.Labels["bytes"])
	assert.Equal(t, "1", out.Labels["person"])
	assert.Equal(t, "12345", string(out.Data))
}

func TestHTTPAnnotatorReplacesData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(httpResult{Data: []byte("boxed"), Width: 4, Height: 2})
	}))
	defer server.Close()

	a := newHTTPAnnotator(t, HTTPConfig{URL: server.URL})
	out, err := a.Annotate(context.Background(), &frame.Frame{Data: []byte("raw")})
	require.NoError(t, err)
	assert.Equal(t, "boxed", string(out.Data))
	assert.Equal(t, 4, out.Width)
}

func TestHTTPAnnotatorEmptyFrame(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Empty(t, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"labels":{"empty":"true"}}`))
	}))
	defer server.Close()

	a := newHTTPAnnotator(t, HTTPConfig{URL: server.URL})
	for _, f := range []*frame.Frame{{}, {Data: []byte{}}} {
		out, err := a.Annotate(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, "true", out.Labels["empty"])
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPAnnotatorRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "frame", string(body), "body must be resent on retry")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"labels":{"ok":"yes"}}`))
	}))
	defer server.Close()

	a := newHTTPAnnotator(t, HTTPConfig{
		URL:          server.URL,
		MaxRetries:   3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	out, err := a.Annotate(context.Background(), &frame.Frame{Data: []byte("frame")})
	require.NoError(t, err)
	assert.Equal(t, "yes", out.Labels["ok"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPAnnotatorGivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	a := newHTTPAnnotator(t, HTTPConfig{
		URL:          server.URL,
		MaxRetries:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	_, err := a.Annotate(context.Background(), &frame.Frame{Data: []byte("x")})
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPAnnotatorClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unsupported image", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	a := newHTTPAnnotator(t, HTTPConfig{URL: server.URL, RetryWaitMin: time.Millisecond})
	_, err := a.Annotate(context.Background(), &frame.Frame{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPAnnotatorCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	a := newHTTPAnnotator(t, HTTPConfig{URL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Annotate(ctx, &frame.Frame{})
	assert.Error(t, err)
}

// TestHelperProcess is not a real test. It is the detector process started
// by the exec annotator tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("FRAMEFLOW_HELPER_DETECTOR") != "1" {
		return
	}
	worker := os.Getenv("FRAMEFLOW_WORKER_ID")
	for {
		var req wire.Record
		if err := wire.ReadMessage(os.Stdin, &req); err != nil {
			if errors.Is(err, io.EOF) {
				os.Exit(0)
			}
			os.Exit(2)
		}
		resp := execResponse{Seq: req.Seq}
		switch string(req.Data) {
		case "fail":
			resp.Error = "no detections possible"
		case "hang":
			time.Sleep(time.Minute)
		case "exit":
			os.Exit(3)
		case "stderr":
			_, _ = os.Stderr.WriteString("model warming up\n")
			resp.Labels = map[string]string{"worker": worker}
		default:
			resp.Labels = map[string]string{"worker": worker, "bytes": strconv.Itoa(len(req.Data))}
		}
		if err := wire.WriteMessage(os.Stdout, resp); err != nil {
			os.Exit(2)
		}
	}
}

func newExecAnnotator(t *testing.T) *Exec {
	t.Helper()
	factory, err := NewExecFactory(ExecConfig{
		Command:     os.Args[0],
		Args:        []string{"-test.run=^TestHelperProcess$"},
		Env:         []string{"FRAMEFLOW_HELPER_DETECTOR=1"},
		StopTimeout: time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	a, err := factory(4)
	require.NoError(t, err)
	return a.(*Exec)
}

func TestExecAnnotator(t *testing.T) {
	a := newExecAnnotator(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := a.Annotate(ctx, &frame.Frame{Data: []byte("abc")})
		require.NoError(t, err)
		assert.Equal(t, "4", out.Labels["worker"])
		assert.Equal(t, "3", out.Labels["bytes"])
	}

	_, err := a.Annotate(ctx, &frame.Frame{Data: []byte("stderr")})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestExecAnnotatorDetectorError(t *testing.T) {
	a := newExecAnnotator(t)
	defer a.Close()

	_, err := a.Annotate(context.Background(), &frame.Frame{Data: []byte("fail")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no detections possible")

	// The process is still usable after a per-frame error.
	_, err = a.Annotate(context.Background(), &frame.Frame{Data: []byte("ok")})
	assert.NoError(t, err)
}

func TestExecAnnotatorProcessDies(t *testing.T) {
	a := newExecAnnotator(t)
	defer a.Close()

	_, err := a.Annotate(context.Background(), &frame.Frame{Data: []byte("exit")})
	require.Error(t, err)

	_, err = a.Annotate(context.Background(), &frame.Frame{Data: []byte("ok")})
	assert.Error(t, err, "a dead process stays broken")
}

func TestExecAnnotatorCancelKills(t *testing.T) {
	a := newExecAnnotator(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := a.Annotate(ctx, &frame.Frame{Data: []byte("hang")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	_, err = a.Annotate(context.Background(), &frame.Frame{Data: []byte("ok")})
	assert.Error(t, err)
	assert.NoError(t, a.Close())
}
