package services_test

import (
	"context"
	"testing"

	"lingocast/internal/services"
)

func TestContextTagsRoundTrip(t *testing.T) {
	ctx := services.WithRequestID(
		services.WithStage(
			services.WithJobID(context.Background(), "job-42"),
			"rendering"),
		"req-123")

	checks := []struct {
		name string
		get  func(context.Context) (string, bool)
		want string
	}{
		{"job", services.JobIDFromContext, "job-42"},
		{"stage", services.StageFromContext, "rendering"},
		{"request", services.RequestIDFromContext, "req-123"},
	}
	for _, c := range checks {
		if got, ok := c.get(ctx); !ok || got != c.want {
			t.Errorf("%s = %q, %v; want %q", c.name, got, ok, c.want)
		}
	}
}

func TestEmptyTagsAreIgnored(t *testing.T) {
	base := context.Background()
	if ctx := services.WithJobID(base, ""); ctx != base {
		t.Fatal("empty job id should return the same context")
	}
	ctx := services.WithStage(services.WithJobID(base, "job-1"), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if id, _ := services.JobIDFromContext(ctx); id != "job-1" {
		t.Fatalf("job id lost: %q", id)
	}
}
