package procexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"lingocast/internal/cancellation"
)

const (
	defaultTailLines = 20
	maxLineBytes     = 16 * 1024 * 1024
	// pipeGrace is how long output may keep flowing after a kill before the
	// pipes are closed from our side.
	pipeGrace = 2 * time.Second
)

// Request describes one external process invocation.
type Request struct {
	Binary string
	Args   []string
	Dir    string
	Env    []string
	// Timeout bounds the call; it is checked after each output line.
	Timeout time.Duration
	// Stdout receives raw stdout when set; OnStdout is then not called.
	Stdout   io.Writer
	OnStdout func(string)
	OnStderr func(string)
}

// Runner executes external processes.
type Runner interface {
	Run(ctx context.Context, tok *cancellation.Token, req Request) error
}

// ExitError reports a non-zero exit together with the last stderr lines.
type ExitError struct {
	Binary string
	Code   int
	Tail   []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Binary, e.Code)
	if len(e.Tail) > 0 {
		msg += ": " + strings.Join(e.Tail, " | ")
	}
	return msg
}

// TimeoutError reports that a call exceeded its deadline.
type TimeoutError struct {
	Binary  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Binary, e.Timeout)
}

// CommandRunner is the os/exec backed Runner.
type CommandRunner struct {
	now       func() time.Time
	tailLines int
	maxLine   int
}

// Option configures a CommandRunner.
type Option func(*CommandRunner)

// WithClock overrides the clock used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(r *CommandRunner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner constructs a CommandRunner.
func NewRunner(opts ...Option) *CommandRunner {
	r := &CommandRunner{now: time.Now, tailLines: defaultTailLines, maxLine: maxLineBytes}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the process, streams its output, and waits for it to exit.
func (r *CommandRunner) Run(ctx context.Context, tok *cancellation.Token, req Request) error {
	if strings.TrimSpace(req.Binary) == "" {
		return errors.New("procexec: binary required")
	}
	if err := tok.Err(); err != nil {
		return fmt.Errorf("%s: %w", req.Binary, err)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", req.Binary, err)
		}
	}

	cmd := exec.Command(req.Binary, req.Args...) //nolint:gosec
	cmd.Dir = req.Dir
	// Own process group so a kill also reaches grandchildren holding the pipes.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(req.Env) > 0 {
		cmd.Env = req.Env
	}
	var stdout io.ReadCloser
	var err error
	if req.Stdout != nil {
		cmd.Stdout = req.Stdout
	} else {
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("stdout pipe: %w", err)
		}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", req.Binary, err)
	}

	detach, attachErr := tok.Attach(cmd.Process)
	defer detach()

	started := r.now()
	var (
		mu       sync.Mutex
		tail     []string
		stopErr  error
		stopOnce sync.Once
	)
	stop := func(reason error) {
		stopOnce.Do(func() {
			mu.Lock()
			stopErr = reason
			mu.Unlock()
			_ = cancellation.KillTree(cmd.Process)
			// A descendant that left the group can still hold the pipes open.
			time.AfterFunc(pipeGrace, func() {
				if stdout != nil {
					_ = stdout.Close()
				}
				_ = stderr.Close()
			})
		})
	}
	if attachErr != nil {
		stop(attachErr)
	}

	check := func() {
		switch {
		case tok.Cancelled():
			stop(cancellation.ErrCancelled)
		case ctx != nil && ctx.Err() != nil:
			stop(ctx.Err())
		case req.Timeout > 0 && r.now().Sub(started) > req.Timeout:
			stop(&TimeoutError{Binary: req.Binary, Timeout: req.Timeout})
		}
	}

	exited := make(chan struct{})
	defer close(exited)
	var ctxDone <-chan struct{}
	if ctx != nil {
		ctxDone = ctx.Done()
	}
	go func() {
		select {
		case <-tok.Done():
			stop(cancellation.ErrCancelled)
		case <-ctxDone:
			stop(ctx.Err())
		case <-exited:
		}
	}()

	var wg sync.WaitGroup
	var scanErr error
	var scanOnce sync.Once
	scan := func(src io.Reader, forward func(string), keepTail bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, min(64*1024, r.maxLine)), r.maxLine)
		scanner.Split(scanLinesOrCarriage)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			if keepTail && strings.TrimSpace(line) != "" {
				tail = append(tail, strings.TrimSpace(line))
				if len(tail) > r.tailLines {
					tail = tail[len(tail)-r.tailLines:]
				}
			}
			if forward != nil {
				forward(line)
			}
			mu.Unlock()
			check()
		}
		if err := scanner.Err(); err != nil {
			scanOnce.Do(func() { scanErr = err })
			// Keep the pipe moving so the process never blocks on a full buffer.
			_, _ = io.Copy(io.Discard, src)
		}
	}

	if stdout != nil {
		wg.Add(1)
		go scan(stdout, req.OnStdout, false)
	}
	wg.Add(1)
	go scan(stderr, req.OnStderr, true)
	wg.Wait()

	waitErr := cmd.Wait()
	mu.Lock()
	defer mu.Unlock()
	if stopErr != nil {
		return fmt.Errorf("%s: %w", req.Binary, stopErr)
	}
	if scanErr != nil {
		return fmt.Errorf("scan %s output: %w", req.Binary, scanErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			if tok.Cancelled() {
				return fmt.Errorf("%s: %w", req.Binary, cancellation.ErrCancelled)
			}
			return &ExitError{Binary: req.Binary, Code: exitErr.ExitCode(), Tail: tail}
		}
		return fmt.Errorf("wait %s: %w", req.Binary, waitErr)
	}
	return nil
}

// scanLinesOrCarriage splits on \n and \r so in-place progress updates arrive
// as separate lines.
func scanLinesOrCarriage(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
