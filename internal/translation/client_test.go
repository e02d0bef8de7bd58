package translation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"overdub/internal/services"
)

func newTestClient(url string, opts ...Option) *Client {
	base := []Option{
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	}
	return NewClient(ClientConfig{BaseURL: url}, append(base, opts...)...)
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.CompleteJSON(context.Background(), "sk-test", "some/model", "system", "user")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestCompleteJSONClassifiesAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CompleteJSON(context.Background(), "sk-bad", "m", "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := services.Classify(err); kind != services.KindCredential {
		t.Fatalf("kind = %q", kind)
	}
}

func TestCompleteJSONClassifiesQuotaWithResetTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "120")
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CompleteJSON(context.Background(), "sk", "m", "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := services.Classify(err); kind != services.KindQuota {
		t.Fatalf("kind = %q", kind)
	}
	reset, ok := QuotaResetTime(err)
	if !ok {
		t.Fatal("expected reset time from Retry-After")
	}
	if until := time.Until(reset); until < 110*time.Second || until > 130*time.Second {
		t.Fatalf("reset in %v, want ~120s", until)
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream sad", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	}))
	defer server.Close()

	content, err := newTestClient(server.URL).CompleteJSON(context.Background(), "sk", "m", "s", "u")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != "done" || calls != 3 {
		t.Fatalf("content = %q after %d calls", content, calls)
	}
}

func TestCompleteJSONDoesNotRetryQuota(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CompleteJSON(context.Background(), "sk", "m", "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("quota errors must surface immediately, got %d calls", calls)
	}
}

func TestCompleteJSONRequiresCredential(t *testing.T) {
	client := newTestClient("http://localhost:0")
	_, err := client.CompleteJSON(context.Background(), "", "m", "s", "u")
	if kind := services.Classify(err); kind != services.KindCredential {
		t.Fatalf("kind = %q", kind)
	}
}

func TestCompleteJSONReadsDeltaAndTextFallbacks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[{"delta":{"content":"from delta"}}]}`))
	}))
	defer server.Close()

	content, err := newTestClient(server.URL).CompleteJSON(context.Background(), "sk", "m", "s", "u")
	if err != nil {
		t.Fatal(err)
	}
	if content != "from delta" {
		t.Fatalf("content = %q", content)
	}
}

func TestDecodeModelJSON(t *testing.T) {
	type payload struct {
		OK bool `json:"ok"`
	}
	cases := []string{
		`{"ok": true}`,
		"```json\n{\"ok\": true}\n```",
		"Here you go:\n{\"ok\": true}\nHope that helps!",
	}
	for _, content := range cases {
		var got payload
		if err := DecodeModelJSON(content, &got); err != nil {
			t.Errorf("decode %q: %v", content, err)
			continue
		}
		if !got.OK {
			t.Errorf("decode %q: ok=false", content)
		}
	}

	var got payload
	if err := DecodeModelJSON("", &got); err == nil {
		t.Error("empty payload must fail")
	}
	if err := DecodeModelJSON("not json at all", &got); err == nil {
		t.Error("prose payload must fail")
	}
}
