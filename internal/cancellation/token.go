// Package cancellation provides the cooperative cancellation token threaded
// through every stage of a pipeline run.
//
// A Token is cancelled at most once. While a collaborator runs an external
// process it attaches that process to the token; cancelling the token kills
// the attached process and its process group immediately. Callers that
// stream process output also poll Cancelled between lines.
package cancellation

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ErrCancelled is returned by operations interrupted through a Token.
var ErrCancelled = errors.New("operation cancelled")

// Token is a one-shot cancellation signal with an optional bound process.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
	proc      *os.Process
	attachID  uint64
	killer    func(*os.Process) error
}

// New returns an uncancelled token.
func New() *Token {
	return &Token{done: make(chan struct{}), killer: killProcess}
}

// FromContext returns a token that is cancelled when ctx is done. The
// returned stop function releases the context watch.
func FromContext(ctx context.Context) (*Token, func() bool) {
	t := New()
	if ctx == nil {
		return t, func() bool { return false }
	}
	stop := context.AfterFunc(ctx, t.Cancel)
	return t, stop
}

// Cancel marks the token cancelled and kills any attached process. Calling
// it more than once has no further effect.
func (t *Token) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	close(t.done)
	proc := t.proc
	kill := t.killer
	t.mu.Unlock()

	if proc != nil && kill != nil {
		_ = kill(proc)
	}
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done is closed once the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// Err returns ErrCancelled after cancellation and nil before.
func (t *Token) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Attach binds proc to the token so a later Cancel kills it. Attaching to a
// cancelled token kills proc right away and returns ErrCancelled. The
// returned detach function only clears this attachment.
func (t *Token) Attach(proc *os.Process) (func(), error) {
	if t == nil || proc == nil {
		return func() {}, nil
	}
	t.mu.Lock()
	if t.cancelled {
		kill := t.killer
		t.mu.Unlock()
		if kill != nil {
			_ = kill(proc)
		}
		return func() {}, ErrCancelled
	}
	t.attachID++
	id := t.attachID
	t.proc = proc
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.attachID == id {
			t.proc = nil
		}
	}, nil
}

// Attached reports whether a process is currently bound.
func (t *Token) Attached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proc != nil
}

// Sleep waits for d or until the token is cancelled.
func (t *Token) Sleep(d time.Duration) error {
	if err := t.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-t.Done():
		return ErrCancelled
	}
}

// Context derives a context that is cancelled together with the token.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	if t == nil {
		return ctx, func() { cancel(context.Canceled) }
	}
	go func() {
		select {
		case <-t.done:
			cancel(ErrCancelled)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

func killProcess(p *os.Process) error {
	return KillTree(p)
}

// KillTree sends SIGKILL to the process group led by p, which reaches the
// children a tool spawned (WhisperX under uvx, ffmpeg under yt-dlp). When p
// does not lead a group only p itself is killed.
func KillTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := unix.Kill(-p.Pid, unix.SIGKILL); err == nil {
		return nil
	}
	return p.Kill()
}
