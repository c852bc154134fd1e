package tether

import (
	"fmt"
	"sort"
)

// Node is an observed handle over one container (map or slice) in a
// document's tree. All reads pass through to the underlying container
// unchanged; all mutations take effect on the container first and then
// notify the owning document, which persists the tree according to its
// save policy. In blocking mode the returned error is the save error.
//
// Handles are cheap stateless values created on traversal, so observation
// of newly attached containers requires no extra call: Child and ChildAt
// wire the notification sink as part of the traversal itself. Wrapping is
// idempotent; holding multiple handles to the same container never
// duplicates notifications.
//
// A handle to a container that has since been detached from the tree
// (its slot reassigned) keeps mutating the detached container and keeps
// notifying, mirroring a retained reference in the source tree.
type Node struct {
	doc  *Document
	live bool // mutations through this handle notify the document

	m  map[string]any // non-nil when this node is a map
	pm map[string]any // parent map slot, for slice nodes stored in a map
	pk string
	ps []any // parent slice slot, for slice nodes stored in a slice
	pi int
}

// IsMap reports whether this node is a map container.
func (n Node) IsMap() bool { return n.m != nil }

// IsSlice reports whether this node is a slice container.
func (n Node) IsSlice() bool { return n.m == nil }

// current returns the underlying container. Callers must hold the
// document lock.
func (n Node) current() any {
	switch {
	case n.m != nil:
		return n.m
	case n.pm != nil:
		return n.pm[n.pk]
	case n.ps != nil:
		return n.ps[n.pi]
	default:
		return n.doc.root // root slice node
	}
}

// storeSlice writes a new slice header back into this node's slot.
// Callers must hold the document lock.
func (n Node) storeSlice(s []any) {
	switch {
	case n.pm != nil:
		n.pm[n.pk] = s
	case n.ps != nil:
		n.ps[n.pi] = s
	default:
		n.doc.root = s
	}
}

// sliceLocked returns the current slice for this node. Callers must hold
// the document lock.
func (n Node) sliceLocked() ([]any, error) {
	if n.m != nil {
		return nil, ErrNotSlice
	}
	s, ok := n.current().([]any)
	if !ok {
		return nil, ErrNotSlice
	}
	return s, nil
}

// childLive reports whether child handles carry the notification sink.
// In shallow documents only root-level mutations notify.
func (n Node) childLive() bool {
	return n.live && n.doc.deep
}

// notify reports a mutation to the owning document.
func (n Node) notify() error {
	if !n.live {
		return nil
	}
	return n.doc.changed()
}

// unwrapValue replaces Node-typed values with their underlying containers
// so that copying between documents never nests handles.
func unwrapValue(v any) any {
	switch t := v.(type) {
	case Node:
		return t.Raw()
	case *Node:
		if t != nil {
			return t.Raw()
		}
	}
	return v
}

// Raw returns the underlying container. Mutations performed directly on
// the returned value are not observed; call Document.React afterwards to
// re-arm observation and Document.Save to persist them.
func (n Node) Raw() any {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	return n.current()
}

// Len returns the number of entries in the container.
func (n Node) Len() int {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	if n.m != nil {
		return len(n.m)
	}
	if s, ok := n.current().([]any); ok {
		return len(s)
	}
	return 0
}

// -----------------------------------------------------------------------------
// Map operations
// -----------------------------------------------------------------------------

// Get returns the value for key and whether it is present.
// Reads never notify and never mutate.
func (n Node) Get(key string) (any, bool) {
	if n.m == nil {
		return nil, false
	}
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	v, ok := n.m[key]
	return v, ok
}

// Has reports whether key is present.
func (n Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Keys returns the map's keys, sorted.
func (n Node) Keys() []string {
	if n.m == nil {
		return nil
	}
	n.doc.mu.RLock()
	keys := make([]string, 0, len(n.m))
	for k := range n.m {
		keys = append(keys, k)
	}
	n.doc.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Child returns an observed handle for the container stored at key.
// Fails with ErrNoSuchKey if the key is absent and ErrNotContainer if the
// value is a scalar.
func (n Node) Child(key string) (Node, error) {
	if n.m == nil {
		return Node{}, ErrNotMap
	}
	n.doc.mu.RLock()
	v, ok := n.m[key]
	n.doc.mu.RUnlock()
	if !ok {
		return Node{}, fmt.Errorf("%q: %w", key, ErrNoSuchKey)
	}
	switch t := v.(type) {
	case map[string]any:
		return Node{doc: n.doc, live: n.childLive(), m: t}, nil
	case []any:
		return Node{doc: n.doc, live: n.childLive(), pm: n.m, pk: key}, nil
	}
	return Node{}, fmt.Errorf("%q: %w", key, ErrNotContainer)
}

// Set stores value under key and notifies. Container values become
// observable through Child with no further ceremony; Node values are
// unwrapped to their underlying containers before storing.
func (n Node) Set(key string, value any) error {
	if n.m == nil {
		return ErrNotMap
	}
	value = unwrapValue(value)
	n.doc.mu.Lock()
	n.m[key] = value
	n.doc.gen++
	n.doc.mu.Unlock()
	return n.notify()
}

// Delete removes key and notifies. Deleting an absent key is a no-op and
// does not notify.
func (n Node) Delete(key string) error {
	if n.m == nil {
		return ErrNotMap
	}
	n.doc.mu.Lock()
	if _, ok := n.m[key]; !ok {
		n.doc.mu.Unlock()
		return nil
	}
	delete(n.m, key)
	n.doc.gen++
	n.doc.mu.Unlock()
	return n.notify()
}

// -----------------------------------------------------------------------------
// Slice operations
// -----------------------------------------------------------------------------

// At returns the element at index i and whether the index is valid.
func (n Node) At(i int) (any, bool) {
	n.doc.mu.RLock()
	defer n.doc.mu.RUnlock()
	s, err := n.sliceLocked()
	if err != nil || i < 0 || i >= len(s) {
		return nil, false
	}
	return s[i], true
}

// ChildAt returns an observed handle for the container stored at index i.
func (n Node) ChildAt(i int) (Node, error) {
	n.doc.mu.RLock()
	s, err := n.sliceLocked()
	if err != nil {
		n.doc.mu.RUnlock()
		return Node{}, err
	}
	if i < 0 || i >= len(s) {
		n.doc.mu.RUnlock()
		return Node{}, fmt.Errorf("index %d: %w", i, ErrOutOfRange)
	}
	v := s[i]
	n.doc.mu.RUnlock()
	switch t := v.(type) {
	case map[string]any:
		return Node{doc: n.doc, live: n.childLive(), m: t}, nil
	case []any:
		return Node{doc: n.doc, live: n.childLive(), ps: s, pi: i}, nil
	}
	return Node{}, fmt.Errorf("index %d: %w", i, ErrNotContainer)
}

// SetAt replaces the element at index i and notifies.
func (n Node) SetAt(i int, value any) error {
	value = unwrapValue(value)
	n.doc.mu.Lock()
	s, err := n.sliceLocked()
	if err != nil {
		n.doc.mu.Unlock()
		return err
	}
	if i < 0 || i >= len(s) {
		n.doc.mu.Unlock()
		return fmt.Errorf("index %d: %w", i, ErrOutOfRange)
	}
	s[i] = value
	n.doc.gen++
	n.doc.mu.Unlock()
	return n.notify()
}

// Append adds values to the end of the slice and notifies once for the
// whole batch.
func (n Node) Append(values ...any) error {
	if len(values) == 0 {
		return nil
	}
	unwrapped := make([]any, len(values))
	for i, v := range values {
		unwrapped[i] = unwrapValue(v)
	}
	n.doc.mu.Lock()
	s, err := n.sliceLocked()
	if err != nil {
		n.doc.mu.Unlock()
		return err
	}
	n.storeSlice(append(s, unwrapped...))
	n.doc.gen++
	n.doc.mu.Unlock()
	return n.notify()
}

// Insert places value at index i, shifting later elements, and notifies.
// Inserting at Len() appends.
func (n Node) Insert(i int, value any) error {
	value = unwrapValue(value)
	n.doc.mu.Lock()
	s, err := n.sliceLocked()
	if err != nil {
		n.doc.mu.Unlock()
		return err
	}
	if i < 0 || i > len(s) {
		n.doc.mu.Unlock()
		return fmt.Errorf("index %d: %w", i, ErrOutOfRange)
	}
	out := make([]any, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, value)
	out = append(out, s[i:]...)
	n.storeSlice(out)
	n.doc.gen++
	n.doc.mu.Unlock()
	return n.notify()
}

// Remove deletes the element at index i, shrinking the slice, and
// notifies. Length changes are mutations.
func (n Node) Remove(i int) error {
	n.doc.mu.Lock()
	s, err := n.sliceLocked()
	if err != nil {
		n.doc.mu.Unlock()
		return err
	}
	if i < 0 || i >= len(s) {
		n.doc.mu.Unlock()
		return fmt.Errorf("index %d: %w", i, ErrOutOfRange)
	}
	out := make([]any, 0, len(s)-1)
	out = append(out, s[:i]...)
	out = append(out, s[i+1:]...)
	n.storeSlice(out)
	n.doc.gen++
	n.doc.mu.Unlock()
	return n.notify()
}
