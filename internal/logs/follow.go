package logs

import (
	"context"
	"errors"
	"time"
)

// StreamOptions controls Stream.
type StreamOptions struct {
	Lines  int
	Follow bool
	// Poll is how long each follow read waits for new lines.
	Poll   time.Duration
	Filter Filter
}

const defaultPoll = time.Second

// Stream emits the matching entries among the last Lines of path (the whole
// file when Lines <= 0) and, when Follow is set, keeps emitting appended entries until ctx ends. It reports whether
// anything was emitted. Cancellation ends a follow without error.
func Stream(ctx context.Context, path string, opts StreamOptions, emit func(Entry)) (bool, error) {
	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	query := TailOptions{Offset: -1, Limit: opts.Lines}
	if opts.Lines <= 0 {
		query = TailOptions{Offset: 0}
	}
	printed := false
	for {
		res, err := Tail(ctx, path, query)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return printed, nil
			}
			return printed, err
		}
		for _, line := range res.Lines {
			entry, _ := ParseEntry(line)
			if !opts.Filter.Match(entry) {
				continue
			}
			emit(entry)
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
		query = TailOptions{Offset: res.Offset, Follow: true, Wait: poll}
	}
}
