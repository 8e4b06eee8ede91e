// Package store provides the persistence abstraction for the supportnotes application.
//
// This package defines the [Store] interface, a small document-store contract that the
// notes service is written against. Four implementations exist:
//
//   - [github.com/supportnotes/supportnotes/pkg/store/memory.Store]: in-process store with
//     an optional CBOR snapshot file, used by tests and single-node deployments
//   - [github.com/supportnotes/supportnotes/pkg/store/surrealdb.Store]: SurrealDB over
//     WebSocket using the surrealcbor codec
//   - [github.com/supportnotes/supportnotes/pkg/store/postgres.Store]: PostgreSQL through GORM
//   - [github.com/supportnotes/supportnotes/pkg/store/mongo.Store]: MongoDB through the v2 driver
//
// # Addressing
//
// Notes live in one of the named collections and replies live under their note. A [Ref]
// addresses either, and renders as "{collection}/{noteId}" or
// "{collection}/{noteId}/replies/{replyId}".
//
// # Timestamps
//
// Backends return timestamps in their own native shape. Each implementation passes them
// through [NormalizeTime] before building a document, so callers only ever see
// [time.Time] values. A missing timestamp normalizes to the zero time.
//
// # Atomicity
//
// Only [Store.Commit] is atomic across documents: either every delete in the [Batch]
// is applied or none is. Every other method touches a single document.
package store

import (
	"context"
	"time"

	"github.com/supportnotes/supportnotes/pkg/models"
)

// Store defines the document operations the notes service relies on.
//
// Get methods return nil without error for missing documents.
// List methods return an empty slice for no results.
// Methods that address an existing document (UpdateNote, DeleteReply) return an error
// wrapping [ErrNotFound] when it is missing.
type Store interface {
	// AddNote creates a note document in collection c and returns the id the store assigned.
	AddNote(ctx context.Context, c models.Collection, doc NoteDocument) (string, error)

	// GetNote reads the note addressed by ref.
	GetNote(ctx context.Context, ref Ref) (*NoteDocument, error)

	// SetNote writes a complete note document at ref, creating or replacing it.
	SetNote(ctx context.Context, ref Ref, doc NoteDocument) error

	// UpdateNote applies the non-nil fields of u and always sets UpdatedAt.
	UpdateNote(ctx context.Context, ref Ref, u NoteUpdate) error

	// ListNotes returns the notes of collection c ordered as q asks.
	ListNotes(ctx context.Context, c models.Collection, q Query) ([]NoteDocument, error)

	// AddReply creates a reply under the note addressed by ref and returns its id.
	AddReply(ctx context.Context, ref Ref, doc ReplyDocument) (string, error)

	GetReply(ctx context.Context, ref Ref) (*ReplyDocument, error)

	DeleteReply(ctx context.Context, ref Ref) error

	// ListReplies returns the replies under the note addressed by ref.
	ListReplies(ctx context.Context, ref Ref, q Query) ([]ReplyDocument, error)

	// Commit applies every delete in b atomically.
	Commit(ctx context.Context, b *Batch) error

	// GetAccount returns the sign-in account for email, or nil.
	GetAccount(ctx context.Context, email string) (*AccountDocument, error)

	// PutAccount creates or replaces a sign-in account.
	PutAccount(ctx context.Context, doc AccountDocument) error

	// Migrate prepares tables, collections and indexes.
	Migrate(ctx context.Context) error

	Close() error
}

// NoteDocument is a note as persisted. ID is empty when passed to AddNote.
type NoteDocument struct {
	ID           string
	StudentName  string
	TeacherName  string
	Content      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatorEmail string
	CreatorName  string
}

// NoteUpdate is a partial update. Nil fields are left unchanged.
type NoteUpdate struct {
	StudentName *string
	TeacherName *string
	Content     *string
	UpdatedAt   time.Time
}

// ReplyDocument is a reply as persisted. NoteID is filled from the parent on read.
type ReplyDocument struct {
	ID           string
	NoteID       string
	Content      string
	CreatedAt    time.Time
	CreatorEmail string
	CreatorName  string
}

// AccountDocument is a stored sign-in identity.
type AccountDocument struct {
	Email        string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Field names accepted by Query.OrderBy.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Query shapes a list call. The zero value lists everything in store order.
type Query struct {
	OrderBy    string
	Descending bool
	// Limit caps the number of documents returned when positive.
	Limit int
}

// OrderedBy returns an ascending query on field.
func OrderedBy(field string) Query {
	return Query{OrderBy: field}
}

// Desc returns q sorted descending.
func (q Query) Desc() Query {
	q.Descending = true
	return q
}

// WithLimit returns q capped at n documents.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}
