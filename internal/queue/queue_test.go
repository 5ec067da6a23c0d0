package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	if n := q.Push(testItem{ID: 1, Name: "first"}); n != 0 {
		t.Errorf("expected nothing rejected, got %d", n)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty_PreservesOrder(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	items := q.GetAndEmpty()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.ID != i+1 {
			t.Errorf("item %d: expected ID %d, got %d", i, i+1, item.ID)
		}
	}
	if !q.Empty() {
		t.Error("expected queue to be empty after GetAndEmpty")
	}
}

func TestQueue_GetAndEmpty_Empty(t *testing.T) {
	q := New[testItem]()
	if items := q.GetAndEmpty(); len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestQueue_GetAndEmpty_IndependentSlices(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1})
	first := q.GetAndEmpty()

	q.Push(testItem{ID: 2})
	if first[0].ID != 1 {
		t.Errorf("earlier result modified: got ID %d", first[0].ID)
	}
}

func TestQueue_Bounded(t *testing.T) {
	q := NewBounded[testItem](2)

	if n := q.Push(testItem{ID: 1}); n != 0 {
		t.Errorf("expected 0 rejected, got %d", n)
	}
	if n := q.Push(testItem{ID: 2}, testItem{ID: 3}, testItem{ID: 4}); n != 2 {
		t.Errorf("expected 2 rejected, got %d", n)
	}
	items := q.GetAndEmpty()
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Errorf("expected items 1 and 2, got %+v", items)
	}

	// room again after draining
	if n := q.Push(testItem{ID: 5}); n != 0 {
		t.Errorf("expected 0 rejected after drain, got %d", n)
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}
}

func TestQueue_ConcurrentPushAndDrain(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
		go func() {
			defer wg.Done()
			n := len(q.GetAndEmpty())
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	total += len(q.GetAndEmpty())
	if total != 50 {
		t.Errorf("expected 50 items drained, got %d", total)
	}
}
