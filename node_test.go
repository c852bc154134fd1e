package tether

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// countingMetrics records document events for assertions. OnChangeDetected
// fires synchronously inside the mutating call, so change counts are
// deterministic even with non-blocking saves.
type countingMetrics struct {
	NoOpMetricsProvider
	changes  atomic.Int32
	saves    atomic.Int32
	failures atomic.Int32
}

func (m *countingMetrics) OnChangeDetected()                       { m.changes.Add(1) }
func (m *countingMetrics) OnSaveSuccess(_ time.Duration)           { m.saves.Add(1) }
func (m *countingMetrics) OnSaveFailure(_ string, _ time.Duration) { m.failures.Add(1) }

// newTestDoc adopts root bound to a throwaway JSON destination.
func newTestDoc(t *testing.T, root any, opts ...Option) (*Document, *countingMetrics) {
	t.Helper()
	m := &countingMetrics{}
	path := filepath.Join(t.TempDir(), "doc.json")
	opts = append([]Option{WithSaveTo(path), WithMetrics(m)}, opts...)
	doc, err := Adopt(root, opts...)
	if err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	t.Cleanup(func() { _ = doc.Close(context.Background()) })
	return doc, m
}

func TestNode_SetNotifiesOnce(t *testing.T) {
	doc, m := newTestDoc(t, map[string]any{})
	root := doc.Root()

	if err := root.Set("a", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got := m.changes.Load(); got != 1 {
		t.Errorf("expected 1 notification, got %d", got)
	}
	if v, ok := root.Get("a"); !ok || v != 1 {
		t.Errorf("expected a=1, got %v (present=%v)", v, ok)
	}
}

func TestNode_ReadsNeverNotify(t *testing.T) {
	doc, m := newTestDoc(t, map[string]any{
		"a":      1,
		"nested": map[string]any{"x": 2},
		"list":   []any{1, 2},
	})
	root := doc.Root()

	root.Get("a")
	root.Has("nested")
	root.Keys()
	root.Len()
	nested, err := root.Child("nested")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	nested.Get("x")
	list, err := root.Child("list")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	list.At(0)
	list.Len()

	if got := m.changes.Load(); got != 0 {
		t.Errorf("expected 0 notifications from reads, got %d", got)
	}
}

func TestNode_DeleteNotifies(t *testing.T) {
	doc, m := newTestDoc(t, map[string]any{"a": 1})
	root := doc.Root()

	if err := root.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := m.changes.Load(); got != 1 {
		t.Errorf("expected 1 notification, got %d", got)
	}
	if root.Has("a") {
		t.Error("expected key to be removed")
	}
}

func TestNode_DeleteAbsentKeyIsNoOp(t *testing.T) {
	doc, m := newTestDoc(t, map[string]any{})
	root := doc.Root()

	if err := root.Delete("missing"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := m.changes.Load(); got != 0 {
		t.Errorf("expected no notification for absent key, got %d", got)
	}
}

func TestNode_DeepObservation_NewContainerIsObserved(t *testing.T) {
	doc, m := newTestDoc(t, map[string]any{})
	root := doc.Root()

	// Attach a brand-new nested map, then mutate it through traversal.
	if err := root.Set("nested", map[string]any{"x": 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	nested, err := root.Child("nested")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	if err := nested.Set("x", 2); err != nil {
		t.Fatalf("nested Set failed: %v", err)
	}

	if got := m.changes.Load(); got != 2 {
		t.Errorf("expected 2 notifications, got %d", got)
	}

	// And one level deeper still.
	if err := nested.Set("inner", map[string]any{"y": 1}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	inner, err := nested.Child("inner")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	if err := inner.Set("y", 2); err != nil {
		t.Fatalf("inner Set failed: %v", err)
	}

	if got := m.changes.Load(); got != 4 {
		t.Errorf("expected 4 notifications, got %d", got)
	}
}

func TestNode_ShallowObservation(t *testing.T) {
	doc, m := newTestDoc(t, map[string]any{
		"nested": map[string]any{"x": 1},
	}, WithShallow())
	root := doc.Root()

	// Mutating inside a nested container is opaque in shallow mode.
	nested, err := root.Child("nested")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	if err := nested.Set("x", 2); err != nil {
		t.Fatalf("nested Set failed: %v", err)
	}
	if got := m.changes.Load(); got != 0 {
		t.Errorf("expected no notification for nested mutation, got %d", got)
	}

	// Reassigning the top-level key notifies.
	if err := root.Set("nested", map[string]any{"x": 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := m.changes.Load(); got != 1 {
		t.Errorf("expected 1 notification for root reassignment, got %d", got)
	}
}

func TestNode_SliceAppendNotifiesOncePerBatch(t *testing.T) {
	doc, m := newTestDoc(t, map[string]any{"list": []any{}})
	root := doc.Root()

	list, err := root.Child("list")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	if err := list.Append(1, 2, 3); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if got := m.changes.Load(); got != 1 {
		t.Errorf("expected 1 notification for the batch, got %d", got)
	}
	if list.Len() != 3 {
		t.Errorf("expected length 3, got %d", list.Len())
	}
}

func TestNode_SliceGrowthVisibleThroughParentSlot(t *testing.T) {
	doc, _ := newTestDoc(t, map[string]any{"list": []any{"a"}})
	root := doc.Root()

	list, _ := root.Child("list")
	for i := 0; i < 10; i++ {
		if err := list.Append(i); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// A fresh handle sees the grown slice through the parent slot.
	fresh, err := root.Child("list")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	if fresh.Len() != 11 {
		t.Errorf("expected length 11, got %d", fresh.Len())
	}
	if v, ok := fresh.At(0); !ok || v != "a" {
		t.Errorf("expected first element \"a\", got %v", v)
	}
}

func TestNode_SliceInsertRemoveSetAt(t *testing.T) {
	doc, m := newTestDoc(t, []any{"a", "c"})
	root := doc.Root()

	if !root.IsSlice() {
		t.Fatal("expected slice root")
	}

	if err := root.Insert(1, "b"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := root.SetAt(2, "C"); err != nil {
		t.Fatalf("SetAt failed: %v", err)
	}
	if err := root.Remove(0); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if got := m.changes.Load(); got != 3 {
		t.Errorf("expected 3 notifications, got %d", got)
	}
	if root.Len() != 2 {
		t.Fatalf("expected length 2, got %d", root.Len())
	}
	if v, _ := root.At(0); v != "b" {
		t.Errorf("expected first element \"b\", got %v", v)
	}
	if v, _ := root.At(1); v != "C" {
		t.Errorf("expected second element \"C\", got %v", v)
	}
}

func TestNode_SliceIndexOutOfRange(t *testing.T) {
	doc, m := newTestDoc(t, []any{"a"})
	root := doc.Root()

	if err := root.SetAt(5, "x"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := root.Remove(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := root.Insert(3, "x"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if got := m.changes.Load(); got != 0 {
		t.Errorf("expected no notifications from failed mutations, got %d", got)
	}
}

func TestNode_KindMismatchErrors(t *testing.T) {
	doc, _ := newTestDoc(t, map[string]any{"list": []any{1}, "scalar": 7})
	root := doc.Root()

	if err := root.Append(1); !errors.Is(err, ErrNotSlice) {
		t.Errorf("expected ErrNotSlice for Append on map, got %v", err)
	}

	list, _ := root.Child("list")
	if err := list.Set("k", 1); !errors.Is(err, ErrNotMap) {
		t.Errorf("expected ErrNotMap for Set on slice, got %v", err)
	}

	if _, err := root.Child("missing"); !errors.Is(err, ErrNoSuchKey) {
		t.Errorf("expected ErrNoSuchKey, got %v", err)
	}
	if _, err := root.Child("scalar"); !errors.Is(err, ErrNotContainer) {
		t.Errorf("expected ErrNotContainer, got %v", err)
	}
}

func TestNode_ChildAtContainers(t *testing.T) {
	doc, m := newTestDoc(t, []any{
		map[string]any{"name": "first"},
		[]any{"x"},
		42,
	})
	root := doc.Root()

	obj, err := root.ChildAt(0)
	if err != nil {
		t.Fatalf("ChildAt(0) failed: %v", err)
	}
	if err := obj.Set("name", "updated"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	inner, err := root.ChildAt(1)
	if err != nil {
		t.Fatalf("ChildAt(1) failed: %v", err)
	}
	if err := inner.Append("y"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, err := root.ChildAt(2); !errors.Is(err, ErrNotContainer) {
		t.Errorf("expected ErrNotContainer for scalar element, got %v", err)
	}
	if _, err := root.ChildAt(9); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}

	if got := m.changes.Load(); got != 2 {
		t.Errorf("expected 2 notifications, got %d", got)
	}
}

func TestNode_CrossDocumentAssignmentUnwrapsHandles(t *testing.T) {
	source, _ := newTestDoc(t, map[string]any{"sub": map[string]any{"v": 1}})
	target, m := newTestDoc(t, map[string]any{})

	sub, err := source.Root().Child("sub")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}

	// Assigning an observed handle from another document must store the
	// underlying container, not the handle.
	if err := target.Root().Set("copied", sub); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw := target.Raw().(map[string]any)
	if _, ok := raw["copied"].(map[string]any); !ok {
		t.Fatalf("expected unwrapped map in tree, got %T", raw["copied"])
	}

	// The copied container is observed by the target document.
	copied, err := target.Root().Child("copied")
	if err != nil {
		t.Fatalf("Child failed: %v", err)
	}
	if err := copied.Set("v", 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := m.changes.Load(); got != 2 {
		t.Errorf("expected 2 notifications on target, got %d", got)
	}
}

func TestNode_KeysSorted(t *testing.T) {
	doc, _ := newTestDoc(t, map[string]any{"b": 1, "a": 2, "c": 3})
	keys := doc.Root().Keys()
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("expected key %q at %d, got %q", k, i, keys[i])
		}
	}
}
