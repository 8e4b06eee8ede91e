package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a write addresses a document that does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrReadOnly is returned by [ReadOnlyStore] for writes while read-only mode is on.
	ErrReadOnly = errors.New("operation denied: application is in read-only mode")
)

// Batch collects document deletes to be committed together by [Store.Commit].
type Batch struct {
	deletes []Ref
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Delete queues the removal of the note or reply addressed by ref.
func (b *Batch) Delete(ref Ref) *Batch {
	b.deletes = append(b.deletes, ref)
	return b
}

// Deletes returns the queued refs in the order they were added.
func (b *Batch) Deletes() []Ref {
	out := make([]Ref, len(b.deletes))
	copy(out, b.deletes)
	return out
}

func (b *Batch) Len() int {
	return len(b.deletes)
}

// Validate checks every queued ref.
func (b *Batch) Validate() error {
	for _, ref := range b.deletes {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("invalid batch delete %q: %w", ref, err)
		}
	}
	return nil
}
