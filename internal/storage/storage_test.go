package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ragagent.db")
	s, err := Open(ctx, Config{
		Path:      dbPath,
		EnableWAL: true,
	})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTurnRecordsRoundtrip(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-10 * time.Minute).UTC()
	r1 := TurnRecord{
		TraceID:      "trace-1",
		Question:     "What is vector search?",
		Answer:       "Vector search finds semantically similar documents.",
		SearchCount:  1,
		RewriteCount: 0,
		Status:       "success",
		StartedAt:    base,
		FinishedAt:   base.Add(2 * time.Second),
		CreatedAt:    base,
	}
	r2 := TurnRecord{
		TraceID:      "trace-2",
		Question:     "Explain reranking",
		SearchCount:  3,
		RewriteCount: 1,
		Status:       "failed",
		ErrorMessage: "failed to generate response at generate_answer: boom",
		StartedAt:    base.Add(1 * time.Minute),
		FinishedAt:   base.Add(1*time.Minute + 5*time.Second),
		CreatedAt:    base.Add(1 * time.Minute),
	}

	if err := s.InsertTurnRecord(ctx, &r1); err != nil {
		t.Fatalf("insert r1: %v", err)
	}
	if err := s.InsertTurnRecord(ctx, &r2); err != nil {
		t.Fatalf("insert r2: %v", err)
	}

	got, err := s.QueryTurnRecords(ctx, TurnQuery{Status: "success", Limit: 10})
	if err != nil {
		t.Fatalf("query turns: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 success turn, got %d", len(got))
	}
	if got[0].TraceID != "trace-1" {
		t.Fatalf("unexpected trace id: %s", got[0].TraceID)
	}
	if got[0].Answer == "" {
		t.Fatalf("expected answer to survive roundtrip")
	}

	got, err = s.QueryTurnRecords(ctx, TurnQuery{Contains: "rerank", Limit: 10})
	if err != nil {
		t.Fatalf("query turns by keyword: %v", err)
	}
	if len(got) != 1 || got[0].TraceID != "trace-2" {
		t.Fatalf("keyword query returned wrong records: %+v", got)
	}

	deleted, err := s.DeleteTurnRecordsBefore(ctx, base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("delete turns: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted turn, got %d", deleted)
	}
}

func TestAuditRecordsLifecycle(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	rec := AuditRecord{
		TraceID:    "trace-1",
		Action:     "product_docs",
		ParamsJSON: `{"query":"installation steps"}`,
		Status:     "running",
		StartedAt:  time.Now().UTC(),
	}
	if err := s.InsertAuditRecord(ctx, &rec); err != nil {
		t.Fatalf("insert audit: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected auto-assigned id")
	}

	status := "success"
	result := "passage one\n\npassage two"
	finished := time.Now().UTC()
	err := s.UpdateAuditRecord(ctx, rec.ID, AuditUpdate{
		Status:     &status,
		ResultJSON: &result,
		FinishedAt: &finished,
	})
	if err != nil {
		t.Fatalf("update audit: %v", err)
	}

	got, err := s.QueryAuditRecords(ctx, AuditQuery{TraceID: "trace-1", Limit: 10})
	if err != nil {
		t.Fatalf("query audits: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(got))
	}
	if got[0].Status != "success" {
		t.Fatalf("expected success status, got %s", got[0].Status)
	}
	if got[0].ResultJSON != result {
		t.Fatalf("result not persisted: %q", got[0].ResultJSON)
	}

	if err := s.UpdateAuditRecord(ctx, 99999, AuditUpdate{Status: &status}); err == nil {
		t.Fatalf("expected not found error for missing record")
	}
}

func TestDeleteAuditRecordsBeforeLimited(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-1 * time.Hour).UTC()
	for i := 0; i < 5; i++ {
		rec := AuditRecord{
			TraceID:   "trace-old",
			Action:    "product_docs",
			Status:    "success",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertAuditRecord(ctx, &rec); err != nil {
			t.Fatalf("insert audit %d: %v", i, err)
		}
	}

	deleted, err := s.DeleteAuditRecordsBeforeLimited(ctx, base.Add(10*time.Minute), 3)
	if err != nil {
		t.Fatalf("delete limited: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}

	deleted, err = s.DeleteAuditRecordsBefore(ctx, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("delete remaining: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
}

func TestDeleteAuditRecordsKeepLatest(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-1 * time.Hour).UTC()
	for i := 0; i < 5; i++ {
		rec := AuditRecord{
			TraceID:   "trace-keep",
			Action:    "product_docs",
			Status:    "success",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertAuditRecord(ctx, &rec); err != nil {
			t.Fatalf("insert audit %d: %v", i, err)
		}
	}

	deleted, err := s.DeleteAuditRecordsKeepLatest(ctx, 2)
	if err != nil {
		t.Fatalf("keep latest: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}

	count, err := s.CountAuditRecords(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 remaining, got %d", count)
	}

	// 留下的应是最新的两条
	remaining, err := s.QueryAuditRecords(ctx, AuditQuery{Desc: true, Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !remaining[0].CreatedAt.After(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected surviving record: %+v", remaining[0])
	}
}

func TestInMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.InsertTurnRecord(ctx, &TurnRecord{
		TraceID:  "trace-mem",
		Question: "ping",
		Status:   "success",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
}
