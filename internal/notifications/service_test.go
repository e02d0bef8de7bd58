package notifications

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"overdub/internal/config"
)

func TestNewServiceReturnsNoopWithoutTopic(t *testing.T) {
	svc := NewService(config.Notifications{})
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyRunStarted(context.Background(), "movie.mkv"); err != nil {
		t.Fatalf("noop must never fail: %v", err)
	}
}

func TestNtfySendsHeaders(t *testing.T) {
	var gotTitle, gotTags, gotPriority, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
	}))
	defer server.Close()

	svc := NewService(config.Notifications{NtfyTopic: server.URL, RequestTimeout: 5})
	if err := svc.NotifyRunCompleted(context.Background(), "movie.mkv", 90*time.Second); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotTitle != "Overdub - Complete" {
		t.Fatalf("title = %q", gotTitle)
	}
	if gotTags != "overdub,run,completed" {
		t.Fatalf("tags = %q", gotTags)
	}
	if gotPriority != "high" {
		t.Fatalf("priority = %q", gotPriority)
	}
	if gotBody != "Dub ready: movie.mkv (1m30s)" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestNtfyErrorNotification(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
	}))
	defer server.Close()

	svc := NewService(config.Notifications{NtfyTopic: server.URL})
	err := svc.NotifyError(context.Background(), errors.New("quota exhausted"), "translation")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotBody != "Error in translation: quota exhausted" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestNtfySurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic gone", http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewService(config.Notifications{NtfyTopic: server.URL})
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
