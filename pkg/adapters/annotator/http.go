package annotator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

// HTTPConfig configures the HTTP annotator.
type HTTPConfig struct {
	// URL receives a POST per frame with the raw frame bytes as body.
	URL string

	// Timeout bounds each attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries is the number of retries after a connection error, a 429 or
	// a 5xx response. Default 2.
	MaxRetries int

	// RetryWaitMin and RetryWaitMax bound the exponential backoff.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Headers are added to every request.
	Headers map[string]string
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = 100 * time.Millisecond
	}
	if c.RetryWaitMax < c.RetryWaitMin {
		c.RetryWaitMax = 2 * time.Second
	}
	return c
}

// httpResult is the JSON body an inference service answers with. Data, when
// present, replaces the frame bytes (for example an image with boxes drawn).
type httpResult struct {
	Labels map[string]string `json:"labels"`
	Data   []byte            `json:"data,omitempty"`
	Width  int               `json:"width,omitempty"`
	Height int               `json:"height,omitempty"`
}

// HTTP annotates frames through a remote inference service. Each worker owns
// one instance and therefore one connection pool.
type HTTP struct {
	url      string
	workerID int
	client   *resty.Client
	retry    *retryablehttp.Client
}

// NewHTTPFactory returns a factory of HTTP annotators.
func NewHTTPFactory(cfg HTTPConfig, logger *zap.Logger) (frame.AnnotatorFactory, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http annotator: url is required")
	}
	cfg = cfg.withDefaults()
	return func(workerID int) (frame.Annotator, error) {
		return newHTTP(cfg, workerID, logger), nil
	}, nil
}

func newHTTP(cfg HTTPConfig, workerID int, logger *zap.Logger) *HTTP {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = retryLogger{logger.Sugar().With("worker", workerID)}

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader("Accept", "application/json").
		SetHeader("X-Frameflow-Worker", strconv.Itoa(workerID)).
		SetHeaders(cfg.Headers)

	return &HTTP{url: cfg.URL, workerID: workerID, client: client, retry: retryClient}
}

// Annotate implements frame.Annotator.
func (a *HTTP) Annotate(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	// resty rejects a nil []byte body outright.
	body := f.Data
	if body == nil {
		body = []byte{}
	}
	var result httpResult
	req := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result)
	if f.Source != "" {
		req.SetHeader("X-Frame-Source", f.Source)
	}
	if f.Width > 0 {
		req.SetHeader("X-Frame-Width", strconv.Itoa(f.Width))
		req.SetHeader("X-Frame-Height", strconv.Itoa(f.Height))
	}

	start := time.Now()
	resp, err := req.Post(a.url)
	if err != nil {
		return nil, fmt.Errorf("annotate request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("annotate request: %s: %s", resp.Status(), truncate(resp.String(), 200))
	}

	out := f.Clone()
	if len(result.Data) > 0 {
		out.Data = result.Data
		out.Width, out.Height = result.Width, result.Height
	}
	for k, v := range result.Labels {
		label(out, k, v)
	}
	label(out, "annotate_time", durationLabel(time.Since(start)))
	return out, nil
}

// Close releases idle connections.
func (a *HTTP) Close() error {
	a.retry.HTTPClient.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	l *zap.SugaredLogger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Errorw(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debugw(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debugw(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warnw(msg, kv...) }
