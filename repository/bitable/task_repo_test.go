package bitable

import (
	"testing"

	bitableInfra "github.com/taskrelay/backend/internal/infrastructure/bitable"
)

func TestTaskFromRecordFinalScore(t *testing.T) {
	base := map[string]any{
		"task_id": "TASK1",
		"title":   "Fix exporter",
		"status":  "rejected",
	}

	// A clamped zero is a legal review verdict and must survive the read.
	withZero := map[string]any{"final_score": float64(0)}
	for k, v := range base {
		withZero[k] = v
	}
	task := taskFromRecord(bitableInfra.Record{Fields: withZero})
	if task.FinalScore == nil || *task.FinalScore != 0 {
		t.Errorf("final score = %v, want 0", task.FinalScore)
	}

	task = taskFromRecord(bitableInfra.Record{Fields: base})
	if task.FinalScore != nil {
		t.Errorf("absent final score decoded as %d", *task.FinalScore)
	}

	withNil := map[string]any{"final_score": nil}
	for k, v := range base {
		withNil[k] = v
	}
	task = taskFromRecord(bitableInfra.Record{Fields: withNil})
	if task.FinalScore != nil {
		t.Errorf("empty cell decoded as %d", *task.FinalScore)
	}

	withScore := map[string]any{"final_score": float64(85)}
	for k, v := range base {
		withScore[k] = v
	}
	task = taskFromRecord(bitableInfra.Record{Fields: withScore})
	if task.FinalScore == nil || *task.FinalScore != 85 {
		t.Errorf("final score = %v, want 85", task.FinalScore)
	}
}
