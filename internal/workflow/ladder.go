package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lingocast/internal/cancellation"
	"lingocast/internal/failure"
	"lingocast/internal/history"
	"lingocast/internal/logging"
	"lingocast/internal/services/whisperx"
	"lingocast/internal/stage"
)

// ladder is the ordered option list a stage falls back through.
type ladder struct {
	kind    failure.FallbackKind
	options []string
}

func singleEntry(option string) ladder {
	return ladder{options: []string{option}}
}

func (o *Orchestrator) downloadLadder() ladder {
	formats := o.cfg.Download.Formats
	if len(formats) == 0 {
		formats = []string{"best"}
	}
	return ladder{kind: failure.FallbackFormat, options: formats}
}

func transcriptionLadder(model string) ladder {
	return ladder{kind: failure.FallbackModel, options: whisperx.Ladder(model)}
}

func (o *Orchestrator) translationLadder() ladder {
	return ladder{kind: failure.FallbackModel, options: o.cfg.TranslationModels()}
}

func (o *Orchestrator) renderLadder() ladder {
	return ladder{kind: failure.FallbackEncoder, options: o.cfg.RenderEncoders()}
}

// attemptFunc invokes a collaborator with one ladder option.
type attemptFunc[T any] func(ctx context.Context, option string, progress stage.ProgressFunc) (T, error)

// runLadder tries each option in order. A failure moves to the next option
// only when its recovery strategy is Retry or RetryWithFallback; a Retry
// strategy also caps the number of attempts.
func runLadder[T any](ctx context.Context, o *Orchestrator, st *runState, s stage.Stage, l ladder, call attemptFunc[T]) stage.Result[T] {
	options := l.options
	if len(options) == 0 {
		options = []string{""}
	}
	maxAttempts := len(options)

	var (
		last     *failure.PipelineError
		strategy = failure.Abort
		attempt  int
	)
	for i := 0; i < maxAttempts; i++ {
		attempt = i + 1
		option := options[i]
		if err := st.run.tok.Err(); err != nil {
			return stage.Failure[T]{Stage: s, Err: o.mapper.Map(err, s), Strategy: failure.Abort, Attempt: attempt}
		}

		started := o.now()
		data, err := invoke(ctx, o, st, s, option, call)
		if err == nil {
			o.historyAttempt(ctx, st, s, attempt, option, history.OutcomeSuccess, nil, "", started)
			return stage.Success[T]{Data: data, Stage: s, Duration: o.now().Sub(started)}
		}

		pe := o.mapper.Map(err, s)
		if st.run.tok.Cancelled() && pe.Code != failure.CodeCancelled {
			// A killed process surfaces as an exit error; the token is the truth.
			pe = o.mapper.Map(cancellation.ErrCancelled, s)
		}
		o.historyAttempt(ctx, st, s, attempt, option, history.OutcomeFailure, pe, "", started)
		last = pe
		strategy = o.mapper.RecoveryStrategy(pe)
		st.logger.Debug("stage attempt failed",
			logging.String(logging.FieldStage, s.String()),
			logging.Int(logging.FieldAttempt, attempt),
			logging.String("option", option),
			logging.String(logging.FieldErrorCode, string(pe.Code)),
			logging.String("strategy", strategy.String()),
			logging.Error(err),
		)

		if !failure.CanContinue(strategy) || attempt >= maxAttempts {
			break
		}
		var delay time.Duration
		switch v := strategy.(type) {
		case failure.Retry:
			if v.MaxAttempts > 0 && attempt >= v.MaxAttempts {
				return stage.Failure[T]{Stage: s, Err: last, Strategy: strategy, Attempt: attempt}
			}
			delay = v.DelayFor(attempt)
		case failure.RetryWithFallback:
			strategy = v.WithOptions(options, i)
		}

		next := options[i+1]
		st.run.journal.Add(ctx, LogEvent{
			Level:       LevelWarning,
			Kind:        LogRecoveryAttempt,
			Stage:       s,
			Message:     recoveryMessage(s, l.kind, option, next, pe),
			Attempt:     attempt + 1,
			MaxAttempts: maxAttempts,
			Details: map[string]string{
				"strategy":        strategy.String(),
				"error_code":      string(pe.Code),
				"failed_option":   option,
				"next_option":     next,
				"backoff":         delay.String(),
				"technical_error": pe.TechnicalDetails,
			},
		})
		if err := st.run.tok.Sleep(delay); err != nil {
			return stage.Failure[T]{Stage: s, Err: o.mapper.Map(err, s), Strategy: failure.Abort, Attempt: attempt}
		}
	}
	return stage.Failure[T]{Stage: s, Err: last, Strategy: strategy, Attempt: attempt}
}

// invoke calls the collaborator, turning a panic into a classified error.
func invoke[T any](ctx context.Context, o *Orchestrator, st *runState, s stage.Stage, option string, call attemptFunc[T]) (data T, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = o.mapper.Recover(v, s)
		}
	}()
	return call(ctx, option, st.progressFor(s, option))
}

func recoveryMessage(s stage.Stage, kind failure.FallbackKind, failed, next string, pe *failure.PipelineError) string {
	what := "option"
	if kind != "" {
		what = string(kind)
	}
	if failed == next {
		return fmt.Sprintf("%s failed (%s); retrying", s.Label(), pe.Code)
	}
	return fmt.Sprintf("%s failed with %s %s (%s); trying %s %s",
		s.Label(), what, quoteOption(failed), pe.Code, what, quoteOption(next))
}

func quoteOption(option string) string {
	if strings.TrimSpace(option) == "" {
		return "default"
	}
	return fmt.Sprintf("%q", option)
}
