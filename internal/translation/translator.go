// Package translation turns a timed transcript into the target language by
// batching segments through a chat completion API.
//
// Each batch is sent as numbered JSON and the model must answer with the
// same count. Timing never goes through the model; translated text is
// re-attached to the original segment boundaries afterwards, so a model
// cannot corrupt the timeline.
package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"overdub/internal/config"
	langpkg "overdub/internal/language"
	"overdub/internal/services"
	"overdub/internal/transcript"
)

const systemPromptTemplate = `You are a professional dubbing translator.
Translate each numbered segment into %s.
Rules:
- Respond with JSON only: {"translations": [{"index": 0, "text": "..."}]}
- Return exactly one translation per input segment, same indexes.
- Never merge, split, or reorder segments.
- Keep each translation close to the spoken length of the original so it fits the same time slot.
- Preserve names, numbers, and tone.`

// Translator batches transcript segments through the model.
type Translator struct {
	client         *Client
	batchSize      int
	primaryModel   string
	fallbackModels []string
	targetLanguage string
	styleNotes     string
}

// NewTranslator builds a translator for the given target language.
func NewTranslator(cfg config.Translation, targetLanguage string, opts ...Option) (*Translator, error) {
	display := langpkg.DisplayName(targetLanguage)
	if strings.TrimSpace(display) == "" || langpkg.ToISO2(targetLanguage) == "" {
		return nil, services.Wrap(services.ErrValidation, "translation", "configure",
			fmt.Sprintf("unrecognized target language %q", targetLanguage), nil)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 40
	}
	return &Translator{
		client: NewClient(ClientConfig{
			BaseURL:        cfg.BaseURL,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, opts...),
		batchSize:      batchSize,
		primaryModel:   cfg.Model,
		fallbackModels: cfg.FallbackModels,
		targetLanguage: display,
		styleNotes:     styleNotes(cfg),
	}, nil
}

func styleNotes(cfg config.Translation) string {
	var notes []string
	if tone := strings.TrimSpace(cfg.Tone); tone != "" {
		notes = append(notes, "tone: "+tone)
	}
	if genre := strings.TrimSpace(cfg.Genre); genre != "" {
		notes = append(notes, "genre: "+genre)
	}
	if extra := strings.TrimSpace(cfg.Instructions); extra != "" {
		notes = append(notes, extra)
	}
	return strings.Join(notes, "; ")
}

func (t *Translator) systemPrompt() string {
	prompt := fmt.Sprintf(systemPromptTemplate, t.targetLanguage)
	if t.styleNotes != "" {
		prompt += "\n- Style: " + t.styleNotes
	}
	return prompt
}

// Models returns the primary model followed by its fallbacks.
func (t *Translator) Models() []string {
	models := make([]string, 0, 1+len(t.fallbackModels))
	if t.primaryModel != "" {
		models = append(models, t.primaryModel)
	}
	for _, model := range t.fallbackModels {
		if model != "" && model != t.primaryModel {
			models = append(models, model)
		}
	}
	return models
}

// Batches splits segments into model-sized batches.
func (t *Translator) Batches(segments []transcript.Segment) [][]transcript.Segment {
	var out [][]transcript.Segment
	for start := 0; start < len(segments); start += t.batchSize {
		end := min(start+t.batchSize, len(segments))
		out = append(out, segments[start:end])
	}
	return out
}

type batchRequest struct {
	Segments []batchSegment `json:"segments"`
}

type batchSegment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type batchResponse struct {
	Translations []batchSegment `json:"translations"`
}

// TranslateBatch translates one batch with the given credential and model.
// The returned segments keep the source timing.
func (t *Translator) TranslateBatch(ctx context.Context, apiKey, model string, batch []transcript.Segment) ([]transcript.TranslatedSegment, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	request := batchRequest{Segments: make([]batchSegment, len(batch))}
	for i, seg := range batch {
		request.Segments[i] = batchSegment{Index: i, Text: seg.Text}
	}
	userPrompt, err := encodePrompt(request)
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "translation", "encode", "marshal batch", err)
	}

	content, err := t.client.CompleteJSON(ctx, apiKey, model, t.systemPrompt(), userPrompt)
	if err != nil {
		return nil, err
	}

	var response batchResponse
	if err := DecodeModelJSON(content, &response); err != nil {
		return nil, services.Wrap(services.ErrProcessing, "translation", "decode", "parse model payload", err)
	}
	if len(response.Translations) != len(batch) {
		return nil, services.Wrap(services.ErrProcessing, "translation", "decode",
			fmt.Sprintf("model returned %d translations for %d segments", len(response.Translations), len(batch)), nil)
	}

	byIndex := make(map[int]string, len(response.Translations))
	for _, tr := range response.Translations {
		byIndex[tr.Index] = strings.TrimSpace(tr.Text)
	}

	out := make([]transcript.TranslatedSegment, len(batch))
	for i, seg := range batch {
		text, ok := byIndex[i]
		if !ok || text == "" {
			return nil, services.Wrap(services.ErrProcessing, "translation", "decode",
				fmt.Sprintf("missing or empty translation for segment %d", i), nil)
		}
		out[i] = transcript.TranslatedSegment{
			Start:          seg.Start,
			End:            seg.End,
			TextTranslated: text,
			OriginalText:   seg.Text,
		}
	}
	return out, nil
}

func encodePrompt(request batchRequest) (string, error) {
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	return "Translate these segments:\n" + string(encoded), nil
}
