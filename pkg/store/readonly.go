package store

import (
	"context"

	"github.com/supportnotes/supportnotes/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects writes while read-only mode is on.
//
// The mode is read through isReadOnly on every call, so maintenance windows can be
// opened and closed without rebuilding the store. Writes fail with [ErrReadOnly];
// reads, Migrate and Close pass through.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a read-only wrapper for a store.
func NewReadOnlyStore(store Store, isReadOnly func() bool) Store {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyStore) AddNote(ctx context.Context, c models.Collection, doc NoteDocument) (string, error) {
	if err := r.checkReadOnly(); err != nil {
		return "", err
	}
	return r.Store.AddNote(ctx, c, doc)
}

func (r *ReadOnlyStore) SetNote(ctx context.Context, ref Ref, doc NoteDocument) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SetNote(ctx, ref, doc)
}

func (r *ReadOnlyStore) UpdateNote(ctx context.Context, ref Ref, u NoteUpdate) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateNote(ctx, ref, u)
}

func (r *ReadOnlyStore) AddReply(ctx context.Context, ref Ref, doc ReplyDocument) (string, error) {
	if err := r.checkReadOnly(); err != nil {
		return "", err
	}
	return r.Store.AddReply(ctx, ref, doc)
}

func (r *ReadOnlyStore) DeleteReply(ctx context.Context, ref Ref) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteReply(ctx, ref)
}

func (r *ReadOnlyStore) Commit(ctx context.Context, b *Batch) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Commit(ctx, b)
}

func (r *ReadOnlyStore) PutAccount(ctx context.Context, doc AccountDocument) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.PutAccount(ctx, doc)
}
