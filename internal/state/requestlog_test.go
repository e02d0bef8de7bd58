package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *RequestLog {
	t.Helper()
	log, err := OpenRequestLog(filepath.Join(t.TempDir(), "requests.db"))
	if err != nil {
		t.Fatalf("open request log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestRequestLogRecordAndRecent(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	if err := log.Record(ctx, Request{
		RunID:      "run-1",
		Stage:      StageTranslation,
		Provider:   "openrouter",
		Model:      "gemini-flash",
		Credential: "credential_1",
		Duration:   1500 * time.Millisecond,
		Status:     RequestOK,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := log.Record(ctx, Request{
		RunID:     "run-1",
		Stage:     StageSynthesis,
		Status:    RequestFailed,
		ErrorKind: "network_error",
		Message:   "connection reset",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	recent, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("rows = %d", len(recent))
	}
	if recent[0].Stage != StageSynthesis {
		t.Fatalf("newest first expected, got %q", recent[0].Stage)
	}
	if recent[1].Duration != 1500*time.Millisecond {
		t.Fatalf("duration = %v", recent[1].Duration)
	}
	if recent[1].Credential != "credential_1" {
		t.Fatalf("credential = %q", recent[1].Credential)
	}
}

func TestRequestLogPrunesBeyondCap(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < requestLogCap+25; i++ {
		if err := log.Record(ctx, Request{Stage: StageTranslation, Status: RequestOK}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	recent, err := log.Recent(ctx, requestLogCap*2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != requestLogCap {
		t.Fatalf("rows = %d, want %d", len(recent), requestLogCap)
	}
}

func TestRequestLogStats(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		status := RequestOK
		if i < 2 {
			status = RequestFailed
		}
		if err := log.Record(ctx, Request{Stage: StageTranslation, Status: status}); err != nil {
			t.Fatal(err)
		}
	}
	if err := log.Record(ctx, Request{Stage: StageSynthesis, Status: RequestOK}); err != nil {
		t.Fatal(err)
	}

	stats, err := log.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stages = %d", len(stats))
	}
	var translation StageStats
	for _, s := range stats {
		if s.Stage == StageTranslation {
			translation = s
		}
	}
	if translation.Total != 8 || translation.Failed != 2 {
		t.Fatalf("translation stats = %+v", translation)
	}
	if translation.SuccessRate != 0.75 {
		t.Fatalf("success rate = %v", translation.SuccessRate)
	}
}

func TestRequestLogReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.db")
	log, err := OpenRequestLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Record(context.Background(), Request{Stage: StageRecognition, Status: RequestOK}); err != nil {
		t.Fatal(err)
	}
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenRequestLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	recent, err := reopened.Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("rows after reopen = %d", len(recent))
	}
}
