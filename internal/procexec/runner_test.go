package procexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"lingocast/internal/cancellation"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunStreamsLines(t *testing.T) {
	requireShell(t)
	var lines []string
	err := NewRunner().Run(context.Background(), cancellation.New(), Request{
		Binary:   "sh",
		Args:     []string{"-c", `printf 'one\ntwo\rthree\n'`},
		OnStdout: func(line string) { lines = append(lines, line) },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Join(lines, ",") != "one,two,three" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestRunReportsExitWithStderrTail(t *testing.T) {
	requireShell(t)
	err := NewRunner().Run(context.Background(), cancellation.New(), Request{
		Binary: "sh",
		Args:   []string{"-c", `echo "ERROR: Private video" >&2; exit 3`},
	})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 3 || !strings.Contains(exitErr.Error(), "Private video") {
		t.Fatalf("unexpected exit error: %v", exitErr)
	}
}

func TestRunCapturesRawStdout(t *testing.T) {
	requireShell(t)
	var buf bytes.Buffer
	err := NewRunner().Run(context.Background(), cancellation.New(), Request{
		Binary: "sh",
		Args:   []string{"-c", `printf '{"id":"abc"}'`},
		Stdout: &buf,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if buf.String() != `{"id":"abc"}` {
		t.Fatalf("stdout = %q", buf.String())
	}
}

func TestRunCancelledMidStream(t *testing.T) {
	requireShell(t)
	tok := cancellation.New()
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		done <- NewRunner().Run(context.Background(), tok, Request{
			Binary: "sh",
			Args:   []string{"-c", `while true; do echo tick; sleep 0.05; done`},
			OnStdout: func(string) {
				once.Do(tok.Cancel)
			},
		})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, cancellation.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("process not interrupted")
	}
}

func TestRunCancelKillsSilentProcess(t *testing.T) {
	requireShell(t)
	tok := cancellation.New()
	done := make(chan error, 1)
	go func() {
		done <- NewRunner().Run(context.Background(), tok, Request{
			Binary: "sh",
			Args:   []string{"-c", `exec sleep 30`},
		})
	}()
	deadline := time.Now().Add(5 * time.Second)
	for !tok.Attached() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	tok.Cancel()
	select {
	case err := <-done:
		if !errors.Is(err, cancellation.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("silent process not killed")
	}
}

func TestRunTimeoutCheckedPerLine(t *testing.T) {
	requireShell(t)
	base := time.Now()
	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}
	err := NewRunner(WithClock(clock)).Run(context.Background(), cancellation.New(), Request{
		Binary:  "sh",
		Args:    []string{"-c", `while true; do echo tick; sleep 0.05; done`},
		Timeout: 90 * time.Second,
	})
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestRunRefusesCancelledToken(t *testing.T) {
	tok := cancellation.New()
	tok.Cancel()
	err := NewRunner().Run(context.Background(), tok, Request{Binary: "sh", Args: []string{"-c", "true"}})
	if !errors.Is(err, cancellation.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestRunCancelReachesGrandchildren(t *testing.T) {
	requireShell(t)
	tok := cancellation.New()
	var once sync.Once
	done := make(chan error, 1)
	started := time.Now()
	go func() {
		// sleep is a child of sh and inherits both pipes.
		done <- NewRunner().Run(context.Background(), tok, Request{
			Binary: "sh",
			Args:   []string{"-c", `echo started; sleep 30; echo after`},
			OnStdout: func(string) {
				once.Do(func() { go tok.Cancel() })
			},
		})
	}()
	select {
	case err := <-done:
		if !errors.Is(err, cancellation.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
		if elapsed := time.Since(started); elapsed > 5*time.Second {
			t.Fatalf("Run returned %s after start; the child kept the pipes open", elapsed)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run still blocked after Cancel")
	}
}

func TestRunDrainsAfterOversizedLine(t *testing.T) {
	requireShell(t)
	r := NewRunner()
	r.maxLine = 1024
	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), cancellation.New(), Request{
			Binary:   "sh",
			Args:     []string{"-c", `i=0; while [ $i -lt 4000 ]; do printf 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa'; i=$((i+1)); done; echo; echo done >&2`},
			OnStdout: func(string) {},
		})
	}()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "scan sh output") {
			t.Fatalf("expected scan error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run blocked on an undrained pipe")
	}
}
