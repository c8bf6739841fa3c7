package extraction

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ougirez/aedsync/internal/config"
	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

const modelsBody = `{"models":[
	{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]},
	{"name":"models/gemini-1.5-flash","supportedGenerationMethods":["generateContent","countTokens"]},
	{"name":"models/gemini-2.0-flash-lite","supportedGenerationMethods":["generateContent"]}
]}`

func testConfig(baseURL string) config.ExtractionConfig {
	return config.ExtractionConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		PreferredModels: []string{
			"models/gemini-2.5-flash-lite-preview-06-17",
			"models/gemini-2.0-flash-lite",
			"models/gemini-1.5-flash",
		},
		Retry: config.RetryConfig{
			MaxAttempts:      5,
			Escalation:       1,
			RetryStatuses:    []int{429, 500, 503},
			EscalateStatuses: []int{429},
		},
	}
}

// candidate wraps model output text the way generateContent returns it.
func candidate(t *testing.T, text string) string {
	t.Helper()
	body, err := utils.JSON.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal candidate: %v", err)
	}
	return string(body)
}

type fakeService struct {
	models   string
	generate func(calls int32, w http.ResponseWriter, r *http.Request)
	calls    atomic.Int32
	lastBody []byte
	lastPath string
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != "test-key" {
		http.Error(w, "missing key", http.StatusForbidden)
		return
	}
	if r.Method == http.MethodGet && r.URL.Path == "/models" {
		_, _ = io.WriteString(w, f.models)
		return
	}
	n := f.calls.Add(1)
	f.lastPath = r.URL.Path
	f.lastBody, _ = io.ReadAll(r.Body)
	f.generate(n, w, r)
}

func newTestClient(t *testing.T, f *fakeService) *Client {
	t.Helper()
	if f.models == "" {
		f.models = modelsBody
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := NewClient(testConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err = c.SelectModel(context.Background()); err != nil {
		t.Fatalf("SelectModel: %v", err)
	}
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.APIKey = "  "
	if _, err := NewClient(cfg, nil); !errors.Is(err, constants.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		name    string
		models  string
		want    string
		wantErr bool
	}{
		{
			name:   "first preference that is available",
			models: modelsBody,
			want:   "models/gemini-2.0-flash-lite",
		},
		{
			name:   "fallback to first valid model",
			models: `{"models":[{"name":"models/other","supportedGenerationMethods":["generateContent"]}]}`,
			want:   "models/other",
		},
		{
			name:    "no model supports generateContent",
			models:  `{"models":[{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.models)
			}))
			defer srv.Close()

			c, err := NewClient(testConfig(srv.URL), srv.Client())
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			got, err := c.SelectModel(context.Background())
			if tt.wantErr {
				if !errors.Is(err, constants.ErrNoUsableModel) {
					t.Fatalf("expected ErrNoUsableModel, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("SelectModel() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestSelectModelListingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewClient(testConfig(srv.URL), srv.Client())
	if _, err := c.SelectModel(context.Background()); !errors.Is(err, constants.ErrNoUsableModel) {
		t.Fatalf("expected ErrNoUsableModel, got %v", err)
	}
}

func TestExtractRequestShape(t *testing.T) {
	f := &fakeService{generate: func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, candidate(t, `{"original_text":"24/7","status":"parsed","is_24_7":true,"rules":[]}`))
	}}
	c := newTestClient(t, f)

	if _, err := c.Extract(context.Background(), "24/7"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if f.lastPath != "/models/gemini-2.0-flash-lite:generateContent" {
		t.Fatalf("unexpected path %q", f.lastPath)
	}

	var req generateRequest
	if err := utils.JSON.Unmarshal(f.lastBody, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Contents[0].Parts[0].Text != "24/7" {
		t.Errorf("input text not sent: %+v", req.Contents)
	}
	if !strings.Contains(req.SystemInstruction.Parts[0].Text, "Καθημερινά") {
		t.Errorf("system instruction missing day mappings")
	}
	if req.GenerationConfig.ResponseMimeType != "application/json" || req.GenerationConfig.Temperature != 0 {
		t.Errorf("unexpected generation config %+v", req.GenerationConfig)
	}
	if req.GenerationConfig.ResponseSchema["type"] != "OBJECT" {
		t.Errorf("schema not sent")
	}
}

func TestExtract247(t *testing.T) {
	f := &fakeService{generate: func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, candidate(t, `{"original_text":"24/7","status":"parsed","is_24_7":true,"rules":[]}`))
	}}
	c := newTestClient(t, f)

	got, err := c.Extract(context.Background(), "24/7")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := domain.Availability{OriginalText: "24/7", Status: domain.StatusParsed, Is247: true, Rules: []domain.Rule{}}
	if got.OriginalText != want.OriginalText || got.Status != want.Status || !got.Is247 || len(got.Rules) != 0 || got.Rules == nil {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestExtractRetriesServerErrorsUpToBudget(t *testing.T) {
	f := &fakeService{generate: func(_ int32, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}}
	c := newTestClient(t, f)

	got, err := c.Extract(context.Background(), "Καθημερινά 09:00-17:00")
	if got != nil {
		t.Fatalf("expected no result, got %+v", got)
	}
	if !errors.Is(err, constants.ErrTransientService) {
		t.Fatalf("expected ErrTransientService, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if n := f.calls.Load(); n != 5 {
		t.Fatalf("expected 5 attempts, got %d", n)
	}
}

func TestExtractRecoversAfterRateLimit(t *testing.T) {
	f := &fakeService{generate: func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n < 3 {
			http.Error(w, "quota", http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, candidate(t, `{"status":"parsed","is_24_7":false,"rules":[{"days":[5,1,2,3,4,1],"open_time":"09:00","close_time":"17:00"}]}`))
	}}
	c := newTestClient(t, f)

	got, err := c.Extract(context.Background(), "Δευτέρα - Παρασκευή 9:00-17:00")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if f.calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls.Load())
	}
	if got.OriginalText != "Δευτέρα - Παρασκευή 9:00-17:00" {
		t.Errorf("original text not filled: %q", got.OriginalText)
	}
	if days := got.Rules[0].Days; len(days) != 5 || days[0] != 1 || days[4] != 5 {
		t.Errorf("days not normalized: %v", days)
	}
}

func TestExtractFatalStatusIsNotRetried(t *testing.T) {
	f := &fakeService{generate: func(_ int32, w http.ResponseWriter, _ *http.Request) {
		http.Error(w, strings.Repeat("bad request ", 100), http.StatusBadRequest)
	}}
	c := newTestClient(t, f)

	_, err := c.Extract(context.Background(), "κάτι")
	if !errors.Is(err, constants.ErrFatalService) {
		t.Fatalf("expected ErrFatalService, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || len(se.Body) > constants.ResponseBodySnip {
		t.Fatalf("expected truncated StatusError, got %v", err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestExtractUndecodableOutputIsRetried(t *testing.T) {
	f := &fakeService{generate: func(n int32, w http.ResponseWriter, _ *http.Request) {
		if n == 1 {
			_, _ = io.WriteString(w, candidate(t, "not json"))
			return
		}
		_, _ = io.WriteString(w, candidate(t, `{"original_text":"x","status":"uncertain","is_24_7":false,"uncertain_reason":"By phone","rules":[]}`))
	}}
	c := newTestClient(t, f)

	got, err := c.Extract(context.Background(), "x")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Status != domain.StatusUncertain || got.UncertainReason != "By phone" {
		t.Fatalf("unexpected result %+v", got)
	}
	if f.calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", f.calls.Load())
	}
}

func TestExtractInvalidOutputIsFatal(t *testing.T) {
	f := &fakeService{generate: func(_ int32, w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, candidate(t, `{"original_text":"x","status":"parsed","is_24_7":false,"rules":[{"days":[8],"open_time":"9:00"}]}`))
	}}
	c := newTestClient(t, f)

	if _, err := c.Extract(context.Background(), "x"); !errors.Is(err, constants.ErrFatalService) {
		t.Fatalf("expected ErrFatalService, got %v", err)
	}
	if f.calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", f.calls.Load())
	}
}

func TestExtractRequiresModel(t *testing.T) {
	c, _ := NewClient(testConfig("http://unused"), nil)
	if _, err := c.Extract(context.Background(), "x"); !errors.Is(err, constants.ErrNoUsableModel) {
		t.Fatalf("expected ErrNoUsableModel, got %v", err)
	}
}
