package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vnykmshr/frameflow/pkg/adapters/wire"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

// StreamAdder is the part of a Redis client the stream sink uses.
// *redis.Client and *redis.ClusterClient satisfy it.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisConfig configures a RedisStream sink.
type RedisConfig struct {
	// Addr is the Redis server address, host:port.
	Addr string

	// Stream is the stream key. Default "frameflow:frames".
	Stream string

	// MaxLen trims the stream approximately to this many entries. 0 keeps
	// every entry.
	MaxLen int64

	// WriteTimeout bounds each XADD. Default 2s.
	WriteTimeout time.Duration
}

// DefaultStream is the stream key used when RedisConfig.Stream is empty.
const DefaultStream = "frameflow:frames"

// RedisStream appends one entry per frame to a Redis stream. Each entry has a
// "seq" field and a "frame" field holding the msgpack-encoded wire.Record.
type RedisStream struct {
	client  StreamAdder
	owned   *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
}

// NewRedisStream connects to cfg.Addr and checks the connection with PING.
func NewRedisStream(ctx context.Context, cfg RedisConfig) (*RedisStream, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	s := NewRedisStreamWithClient(client, cfg)
	s.owned = client
	return s, nil
}

// NewRedisStreamWithClient uses an existing client. The caller keeps
// ownership of it.
func NewRedisStreamWithClient(client StreamAdder, cfg RedisConfig) *RedisStream {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	return &RedisStream{
		client:  client,
		stream:  cfg.Stream,
		maxLen:  cfg.MaxLen,
		timeout: cfg.WriteTimeout,
	}
}

// Write implements frame.Sink.
func (s *RedisStream) Write(ctx context.Context, seq uint64, f *frame.Frame) error {
	payload, err := msgpack.Marshal(wire.FromFrame(seq, f))
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", seq, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"seq": seq, "frame": payload},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s seq=%d: %w", s.stream, seq, err)
	}
	return nil
}

// Close implements frame.Sink. It closes the client only if the sink opened it.
func (s *RedisStream) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}
