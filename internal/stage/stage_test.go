package stage

import (
	"errors"
	"testing"
	"time"
)

func TestNextFollowsOrder(t *testing.T) {
	cases := []struct {
		in   Stage
		want Stage
		ok   bool
	}{
		{Download, CaptionCheck, true},
		{CaptionCheck, Transcription, true},
		{Transcription, Translation, true},
		{Translation, Rendering, true},
		{Rendering, 0, false},
		{Stage(0), 0, false},
		{Stage(9), 0, false},
	}
	for _, tc := range cases {
		got, ok := Next(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Next(%v) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNextIsStrictlyIncreasing(t *testing.T) {
	stages := All()
	for i, s := range stages {
		next, ok := Next(s)
		if i == len(stages)-1 {
			if ok {
				t.Fatalf("expected no stage after %v", s)
			}
			continue
		}
		if !ok || next.Order() <= s.Order() {
			t.Fatalf("Next(%v) = %v, expected higher order", s, next)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range All() {
		parsed, err := Parse(s.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", s.String(), err)
		}
		if parsed != s {
			t.Fatalf("Parse(%q) = %v", s.String(), parsed)
		}
	}
	if _, err := Parse("caption-check"); err != nil {
		t.Fatalf("expected hyphenated identifier to parse: %v", err)
	}
	if _, err := Parse("encoding"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestMapTransformsSuccessAndPartial(t *testing.T) {
	success := Result[int](Success[int]{Data: 21, Stage: Translation, Duration: time.Second})
	mapped := Map(success, func(v int) string { return string(rune('A' + v%26)) })
	got, ok := mapped.(Success[string])
	if !ok {
		t.Fatalf("expected Success, got %T", mapped)
	}
	if got.Data != "V" || got.Stage != Translation || got.Duration != time.Second {
		t.Fatalf("unexpected mapped success: %+v", got)
	}

	cause := errors.New("batch 3 failed")
	partial := Result[int](Partial[int]{Data: 2, Stage: Translation, CompletedPortion: 0.5, Err: cause, Recoverable: true})
	mappedPartial, ok := Map(partial, func(v int) int { return v * 10 }).(Partial[int])
	if !ok {
		t.Fatal("expected Partial")
	}
	if mappedPartial.Data != 20 || mappedPartial.CompletedPortion != 0.5 || !errors.Is(mappedPartial.Err, cause) || !mappedPartial.Recoverable {
		t.Fatalf("unexpected mapped partial: %+v", mappedPartial)
	}
}

func TestMapPassesThroughFailureAndSkipped(t *testing.T) {
	called := false
	fn := func(int) string { called = true; return "x" }

	cause := errors.New("boom")
	failure := Result[int](Failure[int]{Stage: Rendering, Err: cause, Strategy: "abort", Attempt: 2})
	mapped, ok := Map(failure, fn).(Failure[string])
	if !ok {
		t.Fatal("expected Failure")
	}
	if mapped.Stage != Rendering || !errors.Is(mapped.Err, cause) || mapped.Strategy != "abort" || mapped.Attempt != 2 {
		t.Fatalf("failure fields changed: %+v", mapped)
	}

	skipped := Result[int](Skipped[int]{Stage: Transcription, Reason: "captions available"})
	mappedSkip, ok := Map(skipped, fn).(Skipped[string])
	if !ok {
		t.Fatal("expected Skipped")
	}
	if mappedSkip.Reason != "captions available" || mappedSkip.Stage != Transcription {
		t.Fatalf("skipped fields changed: %+v", mappedSkip)
	}
	if called {
		t.Fatal("mapping function must not run for Failure or Skipped")
	}
}

func TestProgressFuncReport(t *testing.T) {
	var got []Progress
	fn := ProgressFunc(func(p Progress) { got = append(got, p) })
	fn.Report(42.5, "halfway")
	fn.Report(130, "overshoot")
	if len(got) != 2 || got[0].Percent != 42.5 || got[1].Percent != 100 {
		t.Fatalf("unexpected progress: %+v", got)
	}

	var nilFn ProgressFunc
	nilFn.Report(10, "ignored")
}
