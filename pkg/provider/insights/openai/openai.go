// Package openai provides an insights.Extractor backed by an OpenAI-style
// chat-completions endpoint.
//
// Each extraction issues one chat completion with a JSON-object response
// format and parses the structured payload
// {location: {...}|null, summary: string|null, key_findings: [...]|null}
// into store records. Extraction runs against full call transcripts and can
// be slow on larger models, so the request budget never drops below 90 s
// regardless of configuration.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/callsight/callsight/pkg/provider/insights"
	"github.com/callsight/callsight/pkg/store"
)

// systemDirective is the instruction sent as the system message on every
// extraction request. The json_object response format requires the word
// "JSON" to appear in the prompt.
const systemDirective = `You analyze emergency call transcripts. Extract the caller's location, a concise summary, and key findings. Respond with a JSON object of the form {"location": {"address": string, "latitude": number, "longitude": number, "confidence": number} | null, "summary": string | null, "key_findings": string[] | null}. Use null for anything the transcript does not support.`

const (
	defaultTemperature = 0.1

	// minRequestBudget is the lower bound on the per-request timeout.
	// Extended-family models routinely take over a minute on long
	// transcripts.
	minRequestBudget = 90 * time.Second

	// findingSimilarityThreshold is the Jaro-Winkler score above which two
	// key findings are treated as duplicates of each other.
	findingSimilarityThreshold = 0.95
)

// Compile-time assertion that Extractor implements insights.Extractor.
var _ insights.Extractor = (*Extractor)(nil)

// config holds optional configuration for the extractor.
type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	hasRetries bool
}

// Option is a functional option for Extractor.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets the per-request budget. Values below 90 s are raised to
// 90 s; extraction is a long-running call by contract.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries overrides the SDK's default retry count.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
		c.hasRetries = true
	}
}

// Extractor implements insights.Extractor using the OpenAI API. It is safe
// for concurrent use.
type Extractor struct {
	client      oai.Client
	model       string
	temperature float64
}

// New constructs a new OpenAI insights Extractor.
func New(apiKey, model string, opts ...Option) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai insights: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai insights: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	timeout := cfg.timeout
	if timeout < minRequestBudget {
		timeout = minRequestBudget
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.hasRetries {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Extractor{
		client:      oai.NewClient(reqOpts...),
		model:       model,
		temperature: defaultTemperature,
	}, nil
}

// Extract implements [insights.Extractor].
func (e *Extractor) Extract(ctx context.Context, callID, transcript string) (*insights.Insights, error) {
	if callID == "" {
		return nil, errors.New("openai insights: call ID must not be empty")
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}

	resp, err := e.client.Chat.Completions.New(ctx, e.buildParams(transcript))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Info("insights request cancelled", "call", callID, "err", err)
		} else {
			slog.Error("insights request failed", "call", callID, "err", err)
		}
		return nil, nil
	}
	if len(resp.Choices) == 0 {
		slog.Warn("insights response carried no choices", "call", callID)
		return nil, nil
	}

	var parsed payload
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		slog.Error("insights response parse failed", "call", callID, "err", err)
		return nil, nil
	}

	return e.build(callID, parsed), nil
}

// buildParams assembles the chat completion request for one transcript.
func (e *Extractor) buildParams(transcript string) oai.ChatCompletionNewParams {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemDirective),
			oai.UserMessage(transcript),
		},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	// The gpt-5 family rejects explicit sampling temperature.
	if !strings.HasPrefix(strings.ToLower(e.model), "gpt-5") {
		params.Temperature = param.NewOpt(e.temperature)
	}
	return params
}

// payload mirrors the structured JSON the model is instructed to emit.
type payload struct {
	Location    *locationPayload `json:"location"`
	Summary     *string          `json:"summary"`
	KeyFindings []string         `json:"key_findings"`
}

type locationPayload struct {
	Address    string   `json:"address"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Confidence *float64 `json:"confidence"`
}

// build applies the construction rules: a summary record only for a
// non-empty summary, a location record only when the address and both
// coordinates are present.
func (e *Extractor) build(callID string, p payload) *insights.Insights {
	out := &insights.Insights{}

	if p.Summary != nil {
		if summary := strings.TrimSpace(*p.Summary); summary != "" {
			out.Summary = &store.SummaryRecord{
				CallID:      callID,
				Summary:     summary,
				KeyFindings: dedupeFindings(p.KeyFindings),
				GeneratedAt: time.Now().UTC(),
			}
		}
	}

	if loc := p.Location; loc != nil && loc.Latitude != nil && loc.Longitude != nil {
		if address := strings.TrimSpace(loc.Address); address != "" {
			confidence := 0.0
			if loc.Confidence != nil {
				confidence = *loc.Confidence
			}
			out.Location = &store.LocationRecord{
				CallID:           callID,
				RawText:          address,
				Latitude:         loc.Latitude,
				Longitude:        loc.Longitude,
				FormattedAddress: address,
				Confidence:       confidence,
			}
		}
	}

	return out
}

// dedupeFindings drops blank findings and merges near-duplicates, which the
// model tends to emit on incremental re-extraction with small wording drift.
// The earlier finding wins. The returned slice is never nil.
func dedupeFindings(raw []string) []string {
	out := []string{}
	for _, finding := range raw {
		finding = strings.TrimSpace(finding)
		if finding == "" {
			continue
		}
		duplicate := false
		for _, kept := range out {
			if matchr.JaroWinkler(strings.ToLower(finding), strings.ToLower(kept), false) >= findingSimilarityThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, finding)
		}
	}
	return out
}
