package annotator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"

	"github.com/vnykmshr/frameflow/pkg/adapters/wire"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

// ExecConfig configures the subprocess annotator.
type ExecConfig struct {
	// Command is the detector executable. Args are passed to it unchanged.
	Command string
	Args    []string

	// Env is appended to the current environment. FRAMEFLOW_WORKER_ID is
	// always set.
	Env []string

	// StopTimeout is how long Close waits for the process to exit after its
	// stdin is closed before killing it. Default 2s.
	StopTimeout time.Duration
}

// execResponse is what the detector writes back for each request.
type execResponse struct {
	Seq    uint64            `msgpack:"seq"`
	Labels map[string]string `msgpack:"labels,omitempty"`
	Data   []byte            `msgpack:"data,omitempty"`
	Error  string            `msgpack:"error,omitempty"`
}

// Exec drives one long-lived detector process. Requests are wire.Record
// messages on the process's stdin, numbered per process; each must be
// answered by one execResponse on stdout carrying the same number.
type Exec struct {
	cfg      ExecConfig
	workerID int
	logger   *zap.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *zapio.Writer

	next      uint64
	broken    error
	killed    bool
	closeOnce sync.Once
}

// NewExecFactory checks that cfg.Command can be found and returns a factory
// that starts one process per worker.
func NewExecFactory(cfg ExecConfig, logger *zap.Logger) (frame.AnnotatorFactory, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("exec annotator: command is required")
	}
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, fmt.Errorf("exec annotator: %w", err)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	return func(workerID int) (frame.Annotator, error) {
		return startExec(cfg, workerID, logger)
	}, nil
}

func startExec(cfg ExecConfig, workerID int, logger *zap.Logger) (*Exec, error) {
	logger = logger.With(zap.Int("worker", workerID), zap.String("command", cfg.Command))

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Env = append(cmd.Env, "FRAMEFLOW_WORKER_ID="+strconv.Itoa(workerID))

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("exec annotator: stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("exec annotator: stdout: %w", err)
	}
	stderr := &zapio.Writer{Log: logger.Named("stderr"), Level: zap.WarnLevel}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec annotator: start %s: %w", cfg.Command, err)
	}
	logger.Debug("detector process started", zap.Int("pid", cmd.Process.Pid))

	return &Exec{
		cfg:      cfg,
		workerID: workerID,
		logger:   logger,
		cmd:      cmd,
		stdin:    stdin,
		stdout:   bufio.NewReader(stdout),
		stderr:   stderr,
	}, nil
}

// Annotate sends f to the process and waits for its answer. If ctx ends
// first the process is killed, because the stream can no longer be trusted
// to stay in step; every later call fails.
func (a *Exec) Annotate(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	if a.broken != nil {
		return nil, a.broken
	}
	a.next++
	seq := a.next

	type result struct {
		resp execResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		if r.err = wire.WriteMessage(a.stdin, wire.FromFrame(seq, f)); r.err == nil {
			r.err = wire.ReadMessage(a.stdout, &r.resp)
		}
		done <- r
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		a.kill()
		<-done
		a.broken = fmt.Errorf("exec annotator: process killed: %w", ctx.Err())
		return nil, ctx.Err()
	}

	if r.err != nil {
		if errors.Is(r.err, io.EOF) {
			r.err = io.ErrUnexpectedEOF
		}
		a.broken = fmt.Errorf("exec annotator: protocol: %w", r.err)
		a.kill()
		return nil, a.broken
	}
	if r.resp.Seq != seq {
		a.broken = fmt.Errorf("exec annotator: answer for request %d, want %d", r.resp.Seq, seq)
		a.kill()
		return nil, a.broken
	}
	if r.resp.Error != "" {
		return nil, fmt.Errorf("detector: %s", r.resp.Error)
	}

	out := f.Clone()
	if len(r.resp.Data) > 0 {
		out.Data = r.resp.Data
	}
	for k, v := range r.resp.Labels {
		label(out, k, v)
	}
	return out, nil
}

func (a *Exec) kill() {
	if a.killed {
		return
	}
	a.killed = true
	if err := a.cmd.Process.Kill(); err != nil {
		a.logger.Warn("failed to kill detector process", zap.Error(err))
	}
}

// Close closes the process's stdin and waits for it to exit, killing it
// after StopTimeout.
func (a *Exec) Close() error {
	var err error
	a.closeOnce.Do(func() {
		_ = a.stdin.Close()

		waited := make(chan error, 1)
		go func() { waited <- a.cmd.Wait() }()

		timer := time.NewTimer(a.cfg.StopTimeout)
		defer timer.Stop()
		select {
		case err = <-waited:
		case <-timer.C:
			a.logger.Warn("detector did not exit, killing it", zap.Duration("timeout", a.cfg.StopTimeout))
			a.kill()
			err = <-waited
		}
		_ = a.stderr.Close()

		if a.killed {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("exec annotator: %w", err)
		}
	})
	return err
}
