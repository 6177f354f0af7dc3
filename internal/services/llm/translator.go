package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"lingocast/internal/cancellation"
	"lingocast/internal/language"
	"lingocast/internal/logging"
	"lingocast/internal/services"
	"lingocast/internal/stage"
	"lingocast/internal/subtitles"
)

const defaultBatchSize = 40

// Translator translates subtitle sets in batches through a Client.
type Translator struct {
	client    *Client
	batchSize int
	logger    *slog.Logger
}

// NewTranslator wraps client. Non-positive batch sizes use the default of 40 cues.
func NewTranslator(client *Client, batchSize int, logger *slog.Logger) *Translator {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Translator{
		client:    client,
		batchSize: batchSize,
		logger:    logging.NewComponentLogger(logger, "translator"),
	}
}

type batchCue struct {
	Index int    `json:"i"`
	Text  string `json:"t"`
}

type batchRequest struct {
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	Cues           []batchCue `json:"cues"`
}

type batchResponse struct {
	Translations []batchCue `json:"translations"`
}

// Translate returns subs translated into target. The cue count and timings
// are preserved. The token is checked between batches and also cancels the
// in-flight HTTP request.
func (t *Translator) Translate(ctx context.Context, tok *cancellation.Token, subs *subtitles.Subtitles, source, target, model string, progress stage.ProgressFunc) (*subtitles.Subtitles, error) {
	if subs.Len() == 0 {
		return nil, services.Wrap(services.ErrValidation, "translation", "translate", "no cues to translate", nil)
	}
	target = language.Normalize(target)
	if target == "" {
		return nil, services.Wrap(services.ErrValidation, "translation", "translate", "target language required", nil)
	}
	if source == "" {
		source = subs.Language
	}
	if strings.TrimSpace(model) == "" {
		model = t.client.Model()
	}

	ctx, cancel := tok.Context(ctx)
	defer cancel()

	texts := subs.Texts()
	translated := make([]string, len(texts))
	total := len(texts)
	batches := (total + t.batchSize - 1) / t.batchSize
	progress.Report(0, fmt.Sprintf("translating %d cues with %s", total, model))

	for b := 0; b < batches; b++ {
		if err := tok.Err(); err != nil {
			return nil, fmt.Errorf("translate: %w", err)
		}
		start := b * t.batchSize
		end := min(start+t.batchSize, total)
		out, err := t.translateBatch(ctx, model, source, target, texts[start:end], start)
		if err != nil {
			if tok.Cancelled() {
				return nil, fmt.Errorf("translate: %w", cancellation.ErrCancelled)
			}
			return nil, services.Wrap(services.ErrExternalTool, "translation", fmt.Sprintf("batch %d/%d", b+1, batches), "model "+model, err)
		}
		copy(translated[start:end], out)
		progress.Report(float64(end)*100/float64(total), fmt.Sprintf("translated %d/%d cues", end, total))
		t.logger.Debug("translation batch complete",
			logging.Int("batch", b+1),
			logging.Int("batches", batches),
			logging.String("model", model),
		)
	}

	result, err := subs.WithTexts(target, subtitles.OriginTranslation, translated)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	return result, nil
}

// translateBatch sends texts numbered from offset+1 and returns them in order.
func (t *Translator) translateBatch(ctx context.Context, model, source, target string, texts []string, offset int) ([]string, error) {
	req := batchRequest{
		SourceLanguage: language.DisplayName(source),
		TargetLanguage: language.DisplayName(target),
		Cues:           make([]batchCue, len(texts)),
	}
	for i, text := range texts {
		req.Cues[i] = batchCue{Index: offset + i + 1, Text: text}
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	content, err := t.client.CompleteJSON(ctx, model, TranslationPrompt, string(encoded))
	if err != nil {
		return nil, err
	}
	var resp batchResponse
	if err := DecodeLLMJSON(content, &resp); err != nil {
		return nil, fmt.Errorf("malformed translation payload: %w", err)
	}

	byIndex := make(map[int]string, len(resp.Translations))
	for _, cue := range resp.Translations {
		byIndex[cue.Index] = strings.TrimSpace(cue.Text)
	}
	out := make([]string, len(texts))
	missing := 0
	for i := range texts {
		text, ok := byIndex[offset+i+1]
		if !ok || text == "" {
			missing++
			continue
		}
		out[i] = text
	}
	if missing > 0 || len(resp.Translations) != len(texts) {
		return nil, fmt.Errorf("cue count mismatch: sent %d cues, received %d (%d missing)", len(texts), len(resp.Translations), missing)
	}
	return out, nil
}

// HealthCheck verifies the provider accepts the configured key and model.
func (t *Translator) HealthCheck(ctx context.Context) stage.Health {
	if err := t.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("translator", err.Error())
	}
	return stage.Healthy("translator")
}
