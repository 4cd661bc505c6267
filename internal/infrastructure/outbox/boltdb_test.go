package outbox

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outbox.db")
	store, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func textItem(id string, priority int, ts time.Time) Item {
	payload, _ := json.Marshal("hello")
	return Item{
		ID:        id,
		Kind:      KindText,
		Target:    "chat-1",
		Payload:   payload,
		Priority:  priority,
		Timestamp: ts,
	}
}

func TestDrainOrderByPriorityThenTime(t *testing.T) {
	store, _ := openTestStore(t)
	now := time.Now()

	if err := store.Enqueue(textItem("late", 3, now)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(textItem("urgent", 1, now.Add(time.Second))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(textItem("early", 3, now.Add(-time.Second))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	want := []string{"urgent", "early", "late"}
	for i, w := range want {
		if items[i].ID != w {
			t.Errorf("items[%d] = %s, want %s", i, items[i].ID, w)
		}
	}
}

func TestGetBatchHonorsLimit(t *testing.T) {
	store, _ := openTestStore(t)
	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Enqueue(textItem(id, 3, now.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	items, err := store.GetBatch(2)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2", len(items))
	}

	// GetBatch does not consume.
	if size, _ := store.Size(); size != 3 {
		t.Errorf("size = %d, want 3", size)
	}
}

func TestRemoveDeletesItem(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.Enqueue(textItem("only", 3, time.Now())); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, err := store.GetBatch(1)
	if err != nil || len(items) != 1 {
		t.Fatalf("GetBatch: %v (%d items)", err, len(items))
	}
	if err := store.Remove(items[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if size, _ := store.Size(); size != 0 {
		t.Errorf("size = %d after remove", size)
	}
}

func TestRequeueCountsRetriesAndDrops(t *testing.T) {
	store, _ := openTestStore(t)
	item := textItem("flaky", 3, time.Now())
	item.Retries = MaxRetries - 1
	if err := store.Enqueue(item); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, _ := store.GetBatch(1)
	if err := store.Requeue(items[0]); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	items, _ = store.GetBatch(1)
	if len(items) != 1 || items[0].Retries != MaxRetries {
		t.Fatalf("after requeue: %+v", items)
	}

	// One more failure exceeds the budget and the item is dropped.
	if err := store.Requeue(items[0]); err != nil {
		t.Fatalf("final Requeue: %v", err)
	}
	if size, _ := store.Size(); size != 0 {
		t.Errorf("size = %d, want 0 after drop", size)
	}
}

func TestCleanupRemovesOldItems(t *testing.T) {
	store, _ := openTestStore(t)
	now := time.Now()
	if err := store.Enqueue(textItem("stale", 3, now.Add(-2*time.Hour))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(textItem("fresh", 3, now)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := store.Cleanup(now.Add(-time.Hour)); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	items, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(items) != 1 || items[0].ID != "fresh" {
		t.Errorf("after cleanup: %+v", items)
	}
}

func TestItemsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	store, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Enqueue(textItem("persisted", 3, time.Now())); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	items, err := reopened.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(items) != 1 || items[0].ID != "persisted" {
		t.Errorf("after reopen: %+v", items)
	}
}

func TestEnqueueNormalizesDefaults(t *testing.T) {
	store, _ := openTestStore(t)
	if err := store.Enqueue(Item{Kind: KindText, Target: "chat-1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, err := store.GetBatch(1)
	if err != nil || len(items) != 1 {
		t.Fatalf("GetBatch: %v (%d items)", err, len(items))
	}
	if items[0].ID == "" {
		t.Error("ID not assigned")
	}
	if items[0].Priority != 3 {
		t.Errorf("priority = %d, want default 3", items[0].Priority)
	}
	if items[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}
