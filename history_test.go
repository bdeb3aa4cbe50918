package main

import (
	"path/filepath"
	"testing"
)

func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := OpenHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult() AutomationResult {
	confidence := 0.85
	return AutomationResult{
		Success:       true,
		TotalSteps:    2,
		ExecutedSteps: 2,
		DurationMs:    420,
		StepResults: []StepResult{
			{StepIndex: 0, Action: "tap", Status: StepSuccess, Attempts: 1, DurationMs: 200,
				Confidence: &confidence, StrategyUsed: "id", FallbackLevel: 0},
			{StepIndex: 1, Action: "press", Status: StepSuccess, Attempts: 2, DurationMs: 220,
				Message: "retried once"},
		},
	}
}

func TestHistorySaveAndGet(t *testing.T) {
	store := openTestHistory(t)

	id, err := store.SaveRun("emulator-5554", RunKindReplay, "wf-1", sampleResult())
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a generated run id")
	}

	rec, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if rec.DeviceID != "emulator-5554" || rec.Kind != RunKindReplay || rec.WorkflowID != "wf-1" {
		t.Errorf("Unexpected run metadata: %+v", rec)
	}
	if !rec.Result.Success || rec.Result.TotalSteps != 2 {
		t.Errorf("Unexpected result: %+v", rec.Result)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Expected a creation timestamp")
	}

	if len(rec.Result.StepResults) != 2 {
		t.Fatalf("Expected 2 step results, got %d", len(rec.Result.StepResults))
	}
	first := rec.Result.StepResults[0]
	if first.Confidence == nil || *first.Confidence != 0.85 {
		t.Errorf("Expected confidence 0.85, got %v", first.Confidence)
	}
	if first.StrategyUsed != "id" {
		t.Errorf("Expected strategy id, got %q", first.StrategyUsed)
	}
	second := rec.Result.StepResults[1]
	if second.Confidence != nil {
		t.Errorf("Expected nil confidence, got %v", second.Confidence)
	}
	if second.Attempts != 2 || second.Message != "retried once" {
		t.Errorf("Unexpected second step: %+v", second)
	}
}

func TestHistoryGetMissingRun(t *testing.T) {
	store := openTestHistory(t)
	if _, err := store.GetRun("does-not-exist"); err == nil {
		t.Error("Expected missing run lookup to fail")
	}
}

func TestHistoryListFilterAndLimit(t *testing.T) {
	store := openTestHistory(t)

	if _, err := store.SaveRun("dev-a", RunKindReplay, "wf-1", sampleResult()); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if _, err := store.SaveRun("dev-a", RunKindScript, "", sampleResult()); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if _, err := store.SaveRun("dev-b", RunKindScript, "", sampleResult()); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	all, err := store.ListRuns("", 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 runs, got %d", len(all))
	}
	// List omits step results.
	if len(all[0].Result.StepResults) != 0 {
		t.Errorf("Expected summary rows without step results, got %d", len(all[0].Result.StepResults))
	}

	filtered, err := store.ListRuns("dev-a", 0)
	if err != nil {
		t.Fatalf("Failed to list filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("Expected 2 runs for dev-a, got %d", len(filtered))
	}
	for _, r := range filtered {
		if r.DeviceID != "dev-a" {
			t.Errorf("Expected only dev-a runs, got %s", r.DeviceID)
		}
	}

	limited, err := store.ListRuns("", 1)
	if err != nil {
		t.Fatalf("Failed to list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 run with limit 1, got %d", len(limited))
	}
}

func TestMarshalRuns(t *testing.T) {
	store := openTestHistory(t)
	if _, err := store.SaveRun("dev-a", RunKindScript, "", sampleResult()); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	runs, err := store.ListRuns("", 0)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	out, err := MarshalRuns(runs)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if out == "" || out[0] != '[' {
		t.Errorf("Expected a JSON array, got %q", out)
	}
}
