package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lingocast/internal/cancellation"
	"lingocast/internal/failure"
	"lingocast/internal/stage"
	"lingocast/internal/subtitles"
)

func sampleSubtitles(n int) *subtitles.Subtitles {
	subs := &subtitles.Subtitles{Language: "en", Origin: subtitles.OriginCaptions}
	for i := 0; i < n; i++ {
		subs.Cues = append(subs.Cues, subtitles.Cue{
			Index: i + 1,
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i)*time.Second + 900*time.Millisecond,
			Text:  fmt.Sprintf("line %d", i+1),
		})
	}
	return subs
}

// translationServer answers every batch by upper-casing the cue texts. drop
// removes the last cue from each answer.
func translationServer(t *testing.T, drop bool, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		var batch batchRequest
		if err := json.Unmarshal([]byte(req.Messages[1].Content), &batch); err != nil {
			t.Errorf("decode batch: %v", err)
			return
		}
		if batch.TargetLanguage != "Spanish" {
			t.Errorf("target language = %q", batch.TargetLanguage)
		}
		var resp batchResponse
		for _, cue := range batch.Cues {
			resp.Translations = append(resp.Translations, batchCue{Index: cue.Index, Text: strings.ToUpper(cue.Text)})
		}
		if drop {
			resp.Translations = resp.Translations[:len(resp.Translations)-1]
		}
		encoded, _ := json.Marshal(resp)
		writeChoice(t, w, contentChoice(string(encoded)))
	}))
}

func TestTranslatePreservesTimingsAcrossBatches(t *testing.T) {
	var calls atomic.Int32
	server := translationServer(t, false, &calls)
	defer server.Close()

	translator := NewTranslator(NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}), 2, nil)
	source := sampleSubtitles(5)
	var last stage.Progress
	out, err := translator.Translate(context.Background(), cancellation.New(), source, "", "es", "", func(p stage.Progress) { last = p })
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 batches, got %d", calls.Load())
	}
	if out.Len() != source.Len() || out.Language != "es" || out.Origin != subtitles.OriginTranslation {
		t.Fatalf("unexpected result %+v", out)
	}
	for i, cue := range out.Cues {
		if cue.Start != source.Cues[i].Start || cue.End != source.Cues[i].End {
			t.Fatalf("cue %d timing changed: %+v vs %+v", i, cue, source.Cues[i])
		}
		if cue.Text != strings.ToUpper(source.Cues[i].Text) {
			t.Fatalf("cue %d text = %q", i, cue.Text)
		}
	}
	if last.Percent != 100 {
		t.Fatalf("final progress = %v", last.Percent)
	}
	if source.Cues[0].Text != "line 1" {
		t.Fatal("source subtitles were modified")
	}
}

func TestTranslateCueCountMismatch(t *testing.T) {
	var calls atomic.Int32
	server := translationServer(t, true, &calls)
	defer server.Close()

	translator := NewTranslator(NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}), 10, nil)
	_, err := translator.Translate(context.Background(), cancellation.New(), sampleSubtitles(3), "en", "es", "", nil)
	if err == nil || !strings.Contains(err.Error(), "cue count mismatch") {
		t.Fatalf("expected mismatch, got %v", err)
	}
	pe := failure.NewMapper().Map(err, stage.Translation)
	if pe.Code != failure.CodeProcessingFailed || !pe.Retryable {
		t.Fatalf("unexpected classification %+v", pe)
	}
}

func TestTranslateStopsWhenCancelled(t *testing.T) {
	var calls atomic.Int32
	server := translationServer(t, false, &calls)
	defer server.Close()

	tok := cancellation.New()
	translator := NewTranslator(NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"}), 1, nil)
	_, err := translator.Translate(context.Background(), tok, sampleSubtitles(4), "en", "es", "", func(p stage.Progress) {
		if p.Percent >= 25 {
			tok.Cancel()
		}
	})
	if !errors.Is(err, cancellation.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one batch before cancellation, got %d", calls.Load())
	}
}

func TestTranslateValidatesInput(t *testing.T) {
	translator := NewTranslator(NewClient(Config{APIKey: "k"}), 0, nil)
	if _, err := translator.Translate(context.Background(), cancellation.New(), nil, "en", "es", "", nil); err == nil {
		t.Fatal("expected error for empty subtitles")
	}
	if _, err := translator.Translate(context.Background(), cancellation.New(), sampleSubtitles(1), "en", " ", "", nil); err == nil {
		t.Fatal("expected error for missing target")
	}
}
