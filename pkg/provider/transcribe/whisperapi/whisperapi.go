// Package whisperapi provides a transcribe.Client backed by a hosted
// Whisper-compatible HTTP transcription endpoint.
//
// Each call uploads one WAV clip as a multipart form (parts: file, model,
// temperature) with bearer-token authentication and parses the JSON response
// {"text": string, "confidence"?: number}. The client owns the failure
// policy of the pipeline's transcription stage: operational failures are
// logged and reported as "no result" so a single lost clip never tears down
// a live call.
//
// Usage:
//
//	client, err := whisperapi.New("https://api.example.com/v1/audio/transcriptions", apiKey,
//	    whisperapi.WithModel("whisper-1"),
//	    whisperapi.WithTimeout(60*time.Second),
//	)
//	result, err := client.Transcribe(ctx, callID, streamID, wavBytes, false)
package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/callsight/callsight/pkg/provider/transcribe"
)

const (
	defaultModel       = "whisper-1"
	defaultTemperature = 0.0

	// defaultTimeout bounds one transcription round trip. Flushes carry a
	// few seconds of audio, so a minute is generous.
	defaultTimeout = 60 * time.Second
)

// Compile-time assertion that Client implements transcribe.Client.
var _ transcribe.Client = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier sent in the form's model part.
// Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithTemperature sets the sampling temperature sent in the form's
// temperature part. Defaults to 0.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithTimeout sets the per-request timeout of the internally constructed
// HTTP client. Defaults to 60 s. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the internally constructed HTTP client, including
// its timeout. Useful for tests and custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client implements transcribe.Client against a hosted Whisper-compatible
// endpoint. It is safe for concurrent use.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

// New creates a Client posting to the given endpoint URL. apiKey is sent as
// a bearer token on every request.
func New(endpoint, apiKey string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("whisperapi: endpoint URL must not be empty")
	}
	c := &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       defaultModel,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Transcribe implements [transcribe.Client].
func (c *Client) Transcribe(ctx context.Context, callID, streamID string, wav []byte, isFinal bool) (*transcribe.Result, error) {
	if callID == "" {
		return nil, errors.New("whisperapi: call ID must not be empty")
	}
	if streamID == "" {
		return nil, errors.New("whisperapi: stream ID must not be empty")
	}
	if len(wav) == 0 {
		return nil, nil
	}

	text, confidence, ok := c.post(ctx, callID, streamID, wav)
	if !ok {
		return nil, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		slog.Debug("transcription returned empty text", "call", callID, "stream", streamID)
		return nil, nil
	}

	return &transcribe.Result{
		CallID:     callID,
		StreamID:   streamID,
		Text:       text,
		IsFinal:    isFinal,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// post performs one multipart upload round trip. It logs all failures and
// reports them through ok=false; the caller translates that to "no result".
func (c *Client) post(ctx context.Context, callID, streamID string, wav []byte) (text string, confidence *float64, ok bool) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// CreatePart instead of CreateFormFile so the part carries the real
	// audio MIME type rather than application/octet-stream.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	fw, err := mw.CreatePart(header)
	if err != nil {
		slog.Error("transcription request build failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}
	if _, err := fw.Write(wav); err != nil {
		slog.Error("transcription request build failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}
	if err := mw.WriteField("model", c.model); err != nil {
		slog.Error("transcription request build failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}
	temperature := strconv.FormatFloat(c.temperature, 'f', -1, 64)
	if err := mw.WriteField("temperature", temperature); err != nil {
		slog.Error("transcription request build failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}
	if err := mw.Close(); err != nil {
		slog.Error("transcription request build failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		slog.Error("transcription request build failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Info("transcription request cancelled", "call", callID, "stream", streamID, "err", err)
		} else {
			slog.Error("transcription request failed", "call", callID, "stream", streamID, "err", err)
		}
		return "", nil, false
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("transcription response read failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("transcription service returned error status",
			"call", callID,
			"stream", streamID,
			"status", resp.StatusCode,
			"body", string(data))
		return "", nil, false
	}

	var parsed struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		slog.Error("transcription response parse failed", "call", callID, "stream", streamID, "err", err)
		return "", nil, false
	}
	return parsed.Text, parsed.Confidence, true
}
