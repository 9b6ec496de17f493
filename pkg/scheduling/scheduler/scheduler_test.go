package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/frameflow/internal/testutil"
)

func TestValidateExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"@every 5s", false},
		{"*/10 * * * * *", false},
		{"0 */5 * * * *", false},
		{"@every 1m30s", false},
		{"0 * * * *", false},
		{"@hourly", false},
		{"", true},
		{"every five seconds", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduleRejectsBadInput(t *testing.T) {
	s := New(Config{})
	job := func(context.Context) {}

	assert.Error(t, s.Schedule("", "@every 1s", job))
	assert.Error(t, s.Schedule("a", "@every 1s", nil))
	assert.Error(t, s.Schedule("a", "not cron", job))

	require.NoError(t, s.Schedule("a", "@every 1s", job))
	assert.Error(t, s.Schedule("a", "@every 2s", job))
}

func TestJobRuns(t *testing.T) {
	s := New(Config{})
	var runs int64
	require.NoError(t, s.Schedule("tick", "@every 1s", func(ctx context.Context) {
		atomic.AddInt64(&runs, 1)
	}))
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	testutil.WaitForInt64(t, &runs, 1, 3*time.Second)
	<-s.Stop()

	assert.Error(t, s.Start(), "stopped scheduler cannot restart")
}

func TestCancelAndList(t *testing.T) {
	s := New(Config{Location: time.UTC})
	job := func(context.Context) {}

	require.NoError(t, s.Schedule("b", "@every 1m", job))
	require.NoError(t, s.Schedule("a", "@hourly", job))
	require.NoError(t, s.Start())
	defer func() { <-s.Stop() }()

	entries := s.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "@hourly", entries[0].Expression)
	assert.False(t, entries[1].Next.IsZero())

	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Cancel("a"))
	assert.Len(t, s.List(), 1)
}

func TestPanicIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := New(Config{Logger: zap.New(core)})

	var runs int64
	require.NoError(t, s.Schedule("boom", "@every 1s", func(context.Context) {
		atomic.AddInt64(&runs, 1)
		panic("reporter bug")
	}))
	require.NoError(t, s.Start())

	testutil.WaitForInt64(t, &runs, 1, 3*time.Second)
	testutil.Eventually(t, func() bool { return logs.Len() > 0 }, time.Second, 5*time.Millisecond)
	<-s.Stop()

	assert.Equal(t, "panic", logs.All()[0].Message)
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(Config{})
	started := make(chan struct{})
	finished := make(chan error, 1)

	require.NoError(t, s.Schedule("slow", "@every 1s", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		select {
		case finished <- ctx.Err():
		default:
		}
	}))
	require.NoError(t, s.Start())

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}

	done := s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not wait for the job")
	}
	assert.ErrorIs(t, <-finished, context.Canceled)
}
