package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"

	"github.com/google/go-cmp/cmp"
)

type fakeCompleter struct {
	response string
	err      error

	gotSystem string
	gotUser   string
	calls     int
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.gotSystem = system
	f.gotUser = user
	return f.response, f.err
}

func TestParseReasoningResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.ReasoningFilter
		wantErr bool
	}{
		{
			name: "date range with details",
			raw:  `{"filtering_by_date": true, "is_asking_about_specific_details": true, "date": {"$gte": "03/03/2024 00:00", "$lte": "10/03/2024 00:00"}}`,
			want: domain.ReasoningFilter{
				FilteringByDate:            true,
				AskingAboutSpecificDetails: true,
				Date:                       map[domain.DateOperator]int64{domain.OpGte: 1709424000, domain.OpLte: 1710028800},
			},
		},
		{
			name: "day first",
			raw:  `{"filtering_by_date": true, "date": {"$gte": "03/04/2024"}}`,
			want: domain.ReasoningFilter{
				FilteringByDate: true,
				Date:            map[domain.DateOperator]int64{domain.OpGte: 1712102400},
			},
		},
		{
			name: "code fenced",
			raw:  "```json\n{\"filtering_by_date\": false, \"date\": {}}\n```",
			want: domain.ReasoningFilter{Date: map[domain.DateOperator]int64{}},
		},
		{
			name: "numeric timestamp",
			raw:  `{"filtering_by_date": true, "date": {"$gte": 1704067200, "$lt": "1705276800"}}`,
			want: domain.ReasoningFilter{
				FilteringByDate: true,
				Date:            map[domain.DateOperator]int64{domain.OpGte: 1704067200, domain.OpLt: 1705276800},
			},
		},
		{name: "not json", raw: "Sure! Here is the filter you asked for.", wantErr: true},
		{name: "missing date", raw: `{"filtering_by_date": true}`, wantErr: true},
		{name: "date is a string", raw: `{"filtering_by_date": true, "date": "last week"}`, wantErr: true},
		{name: "date is null", raw: `{"filtering_by_date": true, "date": null}`, wantErr: true},
		{name: "unknown operator", raw: `{"filtering_by_date": true, "date": {"$gte": "01/01/2024", "$between": "x"}}`, wantErr: true},
		{name: "unparseable date", raw: `{"filtering_by_date": true, "date": {"$gte": "sometime last spring"}}`, wantErr: true},
		{name: "boolean as string", raw: `{"filtering_by_date": "yes", "date": {}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReasoningResponse(tt.raw, time.UTC)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if !got.IsEmpty() {
					t.Errorf("rejected response must yield the empty filter, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDayFirst(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"15/01/2024 00:00", 1705276800},
		{"15/1/2024", 1705276800},
		{"31/01/2024 23:59", 1706745540},
		{"10-03-2024 12:00", 1710072000},
		{"2024-01-15", 1705276800},
		{"2024-01-15T00:00:00Z", 1705276800},
		{"15 January 2024", 1705276800},
		{"1705276800", 1705276800},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDayFirst(tt.in, time.UTC)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDayFirst(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseDayFirst("", time.UTC); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestParseDayFirst_Location(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	got, err := ParseDayFirst("15/01/2024 02:00", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1705276800 {
		t.Errorf("expected local 02:00 at +2 to be midnight UTC, got %d", got)
	}
}

func TestReasoningClassifier_Classify(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 5, 0, 0, time.UTC)

	t.Run("prompt shape", func(t *testing.T) {
		fc := &fakeCompleter{response: `{"filtering_by_date": true, "is_asking_about_specific_details": true, "date": {"$gte": "03/03/2024 00:00"}}`}
		rc := NewReasoningClassifier(fc)

		rf, err := rc.Classify(context.Background(), "What did Jane say last week?", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fc.gotUser != "What did Jane say last week? Current date: 10/03/2024 09:05" {
			t.Errorf("unexpected user prompt %q", fc.gotUser)
		}
		if fc.gotSystem != DefaultReasoningPrompt {
			t.Errorf("expected default system prompt")
		}
		if gte, ok := rf.Bound(domain.OpGte); !ok || gte != 1709424000 {
			t.Errorf("unexpected $gte %d (present=%v)", gte, ok)
		}
	})

	t.Run("custom prompt", func(t *testing.T) {
		fc := &fakeCompleter{response: `{"date": {}}`}
		rc := NewReasoningClassifier(fc, WithPrompt("only JSON please"))
		if _, err := rc.Classify(context.Background(), "hi", now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fc.gotSystem != "only JSON please" {
			t.Errorf("expected overridden prompt, got %q", fc.gotSystem)
		}
	})

	t.Run("invalid output is empty filter", func(t *testing.T) {
		fc := &fakeCompleter{response: "I cannot help with that"}
		rf, err := NewReasoningClassifier(fc).Classify(context.Background(), "contract details", now)
		if err != nil {
			t.Fatalf("invalid output must not be an error: %v", err)
		}
		if !rf.IsEmpty() {
			t.Errorf("expected empty filter, got %+v", rf)
		}
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		fc := &fakeCompleter{err: errors.New("connection reset")}
		_, err := NewReasoningClassifier(fc).Classify(context.Background(), "anything", now)
		if err == nil {
			t.Fatal("expected error")
		}
		if appErr := apperr.AsAppError(err); appErr.Code != apperr.CodeExternalError {
			t.Errorf("expected EXTERNAL_ERROR, got %s", appErr.Code)
		}
	})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClientWithConfig(ClientConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	})
	c.retry.BaseDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond
	return c
}

const chatOK = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"{\"date\":{}}"},"finish_reason":"stop"}]}`

func TestClient_CompleteJSON(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatOK)
	})

	got, err := c.CompleteJSON(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"date":{}}` {
		t.Errorf("unexpected content %q", got)
	}
	for _, want := range []string{`"json_object"`, `"system text"`, `"user text"`, `"gpt-4o-mini"`} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %s: %s", want, body)
		}
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
			return
		}
		_, _ = io.WriteString(w, chatOK)
	})

	if _, err := c.CompleteJSON(context.Background(), "s", "u"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestClient_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	})

	if _, err := c.CompleteJSON(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected a single attempt, got %d", n)
	}
}

func TestClient_Embed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(b), `"model":"`+DefaultEmbeddingModel+`"`) {
			t.Errorf("expected embedding model in request: %s", b)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5]}],"model":"text-embedding-ada-002"}`)
	})

	got, err := c.Embed(context.Background(), "quarterly report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float32{0.25, -0.5}, got); diff != "" {
		t.Errorf("embedding mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmbeddingModel(t *testing.T) {
	m, err := ParseEmbeddingModel(DefaultEmbeddingModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.String() != DefaultEmbeddingModel {
		t.Errorf("expected %s on the wire, got %q", DefaultEmbeddingModel, m.String())
	}

	for _, name := range []string{"", "text-embedding-3-small", "gpt-4o-mini"} {
		if _, err := ParseEmbeddingModel(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retryWithBackoff(ctx, RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2},
		func(error) bool { return true },
		func() (int, error) {
			calls++
			cancel()
			return 0, errors.New("transient")
		})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
