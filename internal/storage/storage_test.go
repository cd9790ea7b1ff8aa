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
	dbPath := filepath.Join(t.TempDir(), "edagent.db")
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

func TestRunRecordsQuery(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-10 * time.Minute).UTC()
	recs := []RunRecord{
		{TraceID: "t-1", Kind: "autonomous", Dataset: "sales.csv", Query: "price", Outcome: "final_answer", Iterations: 3, ToolCalls: 4, StartedAt: base},
		{TraceID: "t-2", Kind: "query", Dataset: "sales.csv", Query: "qual a média?", Outcome: "final_answer", Iterations: 2, ToolCalls: 1, StartedAt: base.Add(time.Minute)},
		{TraceID: "t-3", Kind: "query", Dataset: "iris.csv", Query: "loop", Outcome: "max_iterations", Iterations: 10, ToolCalls: 10, StartedAt: base.Add(2 * time.Minute)},
	}
	for i := range recs {
		if err := s.InsertRunRecord(ctx, &recs[i]); err != nil {
			t.Fatalf("insert run %d: %v", i, err)
		}
	}

	got, err := s.QueryRunRecords(ctx, RunQuery{Dataset: "sales.csv", Desc: true})
	if err != nil {
		t.Fatalf("query runs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].TraceID != "t-2" || got[1].TraceID != "t-1" {
		t.Fatalf("unexpected order: %s then %s", got[0].TraceID, got[1].TraceID)
	}

	got, err = s.QueryRunRecords(ctx, RunQuery{Outcome: "max_iterations"})
	if err != nil {
		t.Fatalf("query runs by outcome: %v", err)
	}
	if len(got) != 1 || got[0].Iterations != 10 {
		t.Fatalf("unexpected max_iterations runs: %+v", got)
	}

	affected, err := s.DeleteRunRecordsBefore(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("delete runs: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected delete 2 runs, got %d", affected)
	}
	n, err := s.CountRunRecords(ctx)
	if err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining run, got %d", n)
	}
}

func TestAuditInsertQueryUpdate(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	rec := AuditRecord{
		TraceID:    "trace-1",
		Dataset:    "sales.csv",
		Action:     "analyze_distribution",
		CallID:     "call_1",
		ParamsJSON: `{"column":"price"}`,
		Status:     StatusRunning,
		StartedAt:  time.Now().Add(-1 * time.Second).UTC(),
	}
	if err := s.InsertAuditRecord(ctx, &rec); err != nil {
		t.Fatalf("insert audit: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("expected audit id to be set")
	}

	got, err := s.QueryAuditRecords(ctx, AuditQuery{TraceID: "trace-1", Limit: 10})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(got))
	}
	if got[0].Status != StatusRunning {
		t.Fatalf("unexpected status: %s", got[0].Status)
	}

	status := StatusSuccess
	result := `{"status":"success"}`
	resultStatus := "success"
	plotPath := "plots/distribution_price_1700000000.html"
	finished := time.Now().UTC()
	if err := s.UpdateAuditRecord(ctx, rec.ID, AuditUpdate{
		Status:       &status,
		ResultJSON:   &result,
		ResultStatus: &resultStatus,
		PlotPath:     &plotPath,
		FinishedAt:   &finished,
	}); err != nil {
		t.Fatalf("update audit: %v", err)
	}

	got2, err := s.QueryAuditRecords(ctx, AuditQuery{TraceID: "trace-1", Limit: 10})
	if err != nil {
		t.Fatalf("query audit after update: %v", err)
	}
	if len(got2) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(got2))
	}
	if got2[0].Status != StatusSuccess || got2[0].ResultJSON != result || got2[0].PlotPath != plotPath {
		t.Fatalf("unexpected updated record: status=%s result=%s plot=%s", got2[0].Status, got2[0].ResultJSON, got2[0].PlotPath)
	}

	if err := s.UpdateAuditRecord(ctx, 9999, AuditUpdate{Status: &status}); err == nil {
		t.Fatalf("expected not found error for missing record")
	}
}

func TestAuditPruneAndCounts(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	actions := []string{"get_data_summary", "analyze_distribution", "analyze_distribution", "detect_outliers", "analyze_distribution"}
	for i, a := range actions {
		rec := AuditRecord{
			TraceID:   "trace-prune",
			Action:    a,
			Status:    StatusSuccess,
			CreatedAt: now.Add(time.Duration(i-len(actions)) * 24 * time.Hour),
		}
		if i == 3 {
			rec.Status = StatusFailed
		}
		if err := s.InsertAuditRecord(ctx, &rec); err != nil {
			t.Fatalf("insert audit %d: %v", i, err)
		}
	}

	counts, err := s.CountAuditRecordsByAction(ctx)
	if err != nil {
		t.Fatalf("count by action: %v", err)
	}
	if len(counts) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(counts))
	}
	if counts[0].Action != "analyze_distribution" || counts[0].Total != 3 {
		t.Fatalf("unexpected top action: %+v", counts[0])
	}
	for _, c := range counts {
		if c.Action == "detect_outliers" && c.Failed != 1 {
			t.Fatalf("expected 1 failed detect_outliers, got %d", c.Failed)
		}
	}

	// 5 条记录分别在 5..1 天前
	deleted, err := s.DeleteAuditRecordsBefore(ctx, now.Add(-4*24*time.Hour+time.Hour))
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected delete 2 records, got %d", deleted)
	}

	deleted, err = s.DeleteAuditRecordsKeepLatest(ctx, 1)
	if err != nil {
		t.Fatalf("keep latest: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected delete 2 records, got %d", deleted)
	}

	left, err := s.QueryAuditRecords(ctx, AuditQuery{TraceID: "trace-prune"})
	if err != nil {
		t.Fatalf("query remaining: %v", err)
	}
	if len(left) != 1 || left[0].Action != "analyze_distribution" {
		t.Fatalf("unexpected remaining records: %+v", left)
	}
	n, err := s.CountAuditRecords(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}
