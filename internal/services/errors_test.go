package services_test

import (
	"errors"
	"strings"
	"testing"

	"lingocast/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("ERROR: Private video")
	err := services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "fetch failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"download", "yt-dlp", "fetch failed", "Private video"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaults(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapExposesStructuredFields(t *testing.T) {
	cause := errors.New("exit status 1")
	err := services.Wrap(services.ErrTimeout, " rendering ", "ffmpeg", "", cause)

	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *services.Error, got %T", err)
	}
	if svcErr.Stage != "rendering" || svcErr.Operation != "ffmpeg" {
		t.Fatalf("unexpected fields: %+v", svcErr)
	}
	if got, want := err.Error(), "timeout: rendering: ffmpeg: exit status 1"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if errors.Is(err, services.ErrValidation) {
		t.Fatal("timeout error should not match validation marker")
	}
}
