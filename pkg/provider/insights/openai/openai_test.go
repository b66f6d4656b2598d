package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ---- construction -----------------------------------------------------------

func TestNew_RequiresAPIKeyAndModel(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New with empty apiKey = nil error, want error")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("New with empty model = nil error, want error")
	}
}

// ---- request construction ---------------------------------------------------

func TestBuildParams_SetsJSONObjectResponseFormat(t *testing.T) {
	e, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	params := e.buildParams("caller reports a fire")
	if params.ResponseFormat.OfJSONObject == nil {
		t.Error("ResponseFormat.OfJSONObject not set, want json_object response format")
	}
	if len(params.Messages) != 2 {
		t.Fatalf("built %d messages, want system directive + transcript", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message is not a system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("second message is not a user message")
	}
}

func TestBuildParams_TemperatureByModelFamily(t *testing.T) {
	cases := []struct {
		model           string
		wantTemperature bool
	}{
		{"gpt-4o-mini", true},
		{"gpt-4.1", true},
		{"gpt-5", false},
		{"gpt-5-mini", false},
		{"GPT-5-TURBO", false},
	}
	for _, tc := range cases {
		e, err := New("sk-test", tc.model)
		if err != nil {
			t.Fatalf("New(%s): %v", tc.model, err)
		}
		params := e.buildParams("transcript")
		if got := params.Temperature.Valid(); got != tc.wantTemperature {
			t.Errorf("model %s: temperature set = %v, want %v", tc.model, got, tc.wantTemperature)
		}
	}
}

// ---- construction rules -----------------------------------------------------

func TestBuild_SummaryOnlyWhenNonEmpty(t *testing.T) {
	e := &Extractor{model: "gpt-4o-mini"}

	empty := ""
	if got := e.build("CA1", payload{Summary: &empty}); got.Summary != nil {
		t.Errorf("build with empty summary produced %+v, want nil Summary", got.Summary)
	}
	if got := e.build("CA1", payload{}); got.Summary != nil {
		t.Errorf("build with null summary produced %+v, want nil Summary", got.Summary)
	}

	text := "  Caller reports a kitchen fire.  "
	got := e.build("CA1", payload{Summary: &text})
	if got.Summary == nil {
		t.Fatal("build with summary text produced nil Summary")
	}
	if got.Summary.Summary != "Caller reports a kitchen fire." {
		t.Errorf("Summary = %q, want trimmed text", got.Summary.Summary)
	}
	if got.Summary.CallID != "CA1" {
		t.Errorf("Summary.CallID = %q, want CA1", got.Summary.CallID)
	}
	if got.Summary.KeyFindings == nil {
		t.Error("KeyFindings is nil, want empty non-nil slice")
	}
	if got.Summary.GeneratedAt.IsZero() {
		t.Error("GeneratedAt is zero, want stamped")
	}
}

func TestBuild_LocationRequiresAddressAndBothCoords(t *testing.T) {
	e := &Extractor{model: "gpt-4o-mini"}
	lat, lng := 52.52, 13.405

	cases := []struct {
		name string
		loc  *locationPayload
		want bool
	}{
		{"complete", &locationPayload{Address: "Alexanderplatz 1", Latitude: &lat, Longitude: &lng}, true},
		{"missing address", &locationPayload{Latitude: &lat, Longitude: &lng}, false},
		{"whitespace address", &locationPayload{Address: "   ", Latitude: &lat, Longitude: &lng}, false},
		{"missing latitude", &locationPayload{Address: "Alexanderplatz 1", Longitude: &lng}, false},
		{"missing longitude", &locationPayload{Address: "Alexanderplatz 1", Latitude: &lat}, false},
		{"null location", nil, false},
	}
	for _, tc := range cases {
		got := e.build("CA1", payload{Location: tc.loc})
		if (got.Location != nil) != tc.want {
			t.Errorf("%s: location populated = %v, want %v", tc.name, got.Location != nil, tc.want)
		}
	}
}

func TestBuild_LocationDefaultsAndRawText(t *testing.T) {
	e := &Extractor{model: "gpt-4o-mini"}
	lat, lng := 40.7128, -74.006

	got := e.build("CA1", payload{Location: &locationPayload{
		Address:   "350 5th Ave, New York",
		Latitude:  &lat,
		Longitude: &lng,
	}})

	if got.Location == nil {
		t.Fatal("location not populated")
	}
	if got.Location.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 default when absent", got.Location.Confidence)
	}
	if got.Location.RawText != "350 5th Ave, New York" {
		t.Errorf("RawText = %q, want the address", got.Location.RawText)
	}
	if got.Location.FormattedAddress != got.Location.RawText {
		t.Errorf("FormattedAddress = %q, want same as RawText", got.Location.FormattedAddress)
	}
}

func TestDedupeFindings(t *testing.T) {
	got := dedupeFindings([]string{
		"Caller reports smoke in the kitchen",
		"  ",
		"Caller reports smoke in the kitchen.",
		"Two people are still inside",
	})
	if len(got) != 2 {
		t.Fatalf("dedupeFindings kept %d findings (%v), want 2", len(got), got)
	}
	if got[0] != "Caller reports smoke in the kitchen" {
		t.Errorf("first finding = %q, want the earlier duplicate to win", got[0])
	}
	if got[1] != "Two people are still inside" {
		t.Errorf("second finding = %q", got[1])
	}

	if out := dedupeFindings(nil); out == nil {
		t.Error("dedupeFindings(nil) = nil, want empty non-nil slice")
	}
}

// ---- round trips ------------------------------------------------------------

// completionBody wraps content into a minimal chat-completion response.
func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func newExtractorAgainst(t *testing.T, srv *httptest.Server) *Extractor {
	t.Helper()
	e, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestExtract_FullRoundTrip(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"summary":"Kitchen fire at a restaurant.","key_findings":["Grease fire","One employee injured"],"location":{"address":"12 Main St","latitude":51.5,"longitude":-0.1,"confidence":0.8}}`))
	}))
	defer srv.Close()

	e := newExtractorAgainst(t, srv)
	got, err := e.Extract(context.Background(), "CA1", "there is a fire at 12 Main Street")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got == nil {
		t.Fatal("Extract returned nil insights")
	}
	if got.Summary == nil || got.Summary.Summary != "Kitchen fire at a restaurant." {
		t.Errorf("Summary = %+v, want populated", got.Summary)
	}
	if len(got.Summary.KeyFindings) != 2 {
		t.Errorf("KeyFindings = %v, want 2 entries", got.Summary.KeyFindings)
	}
	if got.Location == nil || got.Location.FormattedAddress != "12 Main St" {
		t.Errorf("Location = %+v, want populated", got.Location)
	}
	if got.Location.Confidence != 0.8 {
		t.Errorf("Location.Confidence = %v, want 0.8", got.Location.Confidence)
	}

	if !strings.HasSuffix(gotPath, "/chat/completions") {
		t.Errorf("request path = %q, want chat completions endpoint", gotPath)
	}
	var req map[string]any
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	rf, ok := req["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want {type: json_object}", req["response_format"])
	}
	if _, ok := req["temperature"]; !ok {
		t.Error("temperature missing from request for a non-gpt-5 model")
	}
}

func TestExtract_EmptyTranscriptSkipsRemoteCall(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, completionBody(`{}`))
	}))
	defer srv.Close()

	e := newExtractorAgainst(t, srv)
	got, err := e.Extract(context.Background(), "CA1", "   \n\t ")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != nil {
		t.Errorf("Extract(blank transcript) = %+v, want nil", got)
	}
	if hits != 0 {
		t.Errorf("server hit %d times for blank transcript, want 0", hits)
	}
}

func TestExtract_ServerErrorReturnsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newExtractorAgainst(t, srv)
	got, err := e.Extract(context.Background(), "CA1", "transcript text")
	if err != nil {
		t.Fatalf("Extract must not surface HTTP failures, got %v", err)
	}
	if got != nil {
		t.Errorf("Extract(500) = %+v, want nil", got)
	}
}

func TestExtract_MalformedContentReturnsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`not a json object`))
	}))
	defer srv.Close()

	e := newExtractorAgainst(t, srv)
	got, err := e.Extract(context.Background(), "CA1", "transcript text")
	if err != nil {
		t.Fatalf("Extract must not surface parse failures, got %v", err)
	}
	if got != nil {
		t.Errorf("Extract(malformed content) = %+v, want nil", got)
	}
}

func TestExtract_RejectsEmptyCallID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completionBody(`{}`))
	}))
	defer srv.Close()

	e := newExtractorAgainst(t, srv)
	if _, err := e.Extract(context.Background(), "", "transcript"); err == nil {
		t.Error("Extract with empty call ID = nil error, want error")
	}
}
