// Package memory provides an in-process implementation of the
// [github.com/supportnotes/supportnotes/pkg/store.Store] interface.
//
// Documents are held in maps guarded by a single mutex, ids are ULIDs, and a batch
// commit is applied under the lock so it is trivially all-or-nothing. When opened with
// a file path, the whole store is written to that file as CBOR after each mutation and
// read back on open.
//
// Replies are kept apart from their notes, keyed by the note's path. Deleting a note
// does not delete its replies; callers remove them in the same batch.
//
// [Store.FailNext] makes the next call of an operation fail, which tests use to
// simulate backend outages.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/oklog/ulid/v2"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

const filePerm = 0o600

// Op names a store operation for fault injection.
type Op string

const (
	OpAddNote     Op = "AddNote"
	OpGetNote     Op = "GetNote"
	OpSetNote     Op = "SetNote"
	OpUpdateNote  Op = "UpdateNote"
	OpListNotes   Op = "ListNotes"
	OpAddReply    Op = "AddReply"
	OpGetReply    Op = "GetReply"
	OpDeleteReply Op = "DeleteReply"
	OpListReplies Op = "ListReplies"
	OpCommit      Op = "Commit"
	OpGetAccount  Op = "GetAccount"
	OpPutAccount  Op = "PutAccount"
)

// ErrInjected is the default error returned by an injected fault.
var ErrInjected = errors.New("injected store failure")

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	path     string
	notes    map[models.Collection][]store.NoteDocument
	replies  map[string][]store.ReplyDocument
	accounts map[string]store.AccountDocument
	faults   map[Op][]error
	closed   bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store that lives only in memory.
func New() *Store {
	return &Store{
		notes:    make(map[models.Collection][]store.NoteDocument),
		replies:  make(map[string][]store.ReplyDocument),
		accounts: make(map[string]store.AccountDocument),
		faults:   make(map[Op][]error),
	}
}

// Open returns a store persisted to the file at path, loading it if it exists.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %q: %w", path, err)
	}
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %q: %w", path, err)
	}
	snap.restore(s)
	return s, nil
}

// FailNext makes the next call of op return err, or ErrInjected when err is nil.
// Calls queue: FailNext twice fails the next two calls.
func (s *Store) FailNext(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

// fault pops a queued failure for op. Callers hold s.mu.
func (s *Store) fault(op Op) error {
	if s.closed {
		return errors.New("store is closed")
	}
	queued := s.faults[op]
	if len(queued) == 0 {
		return nil
	}
	s.faults[op] = queued[1:]
	return queued[0]
}

func (s *Store) AddNote(_ context.Context, c models.Collection, doc store.NoteDocument) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpAddNote); err != nil {
		return "", fmt.Errorf("failed to add note: %w", err)
	}
	if c == "" {
		return "", errors.New("failed to add note: collection is required")
	}
	doc.ID = ulid.Make().String()
	err := s.write(func() {
		s.notes[c] = append(s.notes[c], doc)
	})
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (s *Store) GetNote(_ context.Context, ref store.Ref) (*store.NoteDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpGetNote); err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	i := s.noteIndex(ref)
	if i < 0 {
		return nil, nil
	}
	doc := s.notes[ref.Collection][i]
	return &doc, nil
}

func (s *Store) SetNote(_ context.Context, ref store.Ref, doc store.NoteDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpSetNote); err != nil {
		return fmt.Errorf("failed to set note: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("failed to set note: %w", err)
	}
	doc.ID = ref.NoteID
	return s.write(func() {
		if i := s.noteIndex(ref); i >= 0 {
			s.notes[ref.Collection][i] = doc
		} else {
			s.notes[ref.Collection] = append(s.notes[ref.Collection], doc)
		}
	})
}

func (s *Store) UpdateNote(_ context.Context, ref store.Ref, u store.NoteUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpUpdateNote); err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	i := s.noteIndex(ref)
	if i < 0 {
		return fmt.Errorf("failed to update note %s: %w", ref, store.ErrNotFound)
	}
	return s.write(func() {
		doc := &s.notes[ref.Collection][i]
		if u.StudentName != nil {
			doc.StudentName = *u.StudentName
		}
		if u.TeacherName != nil {
			doc.TeacherName = *u.TeacherName
		}
		if u.Content != nil {
			doc.Content = *u.Content
		}
		doc.UpdatedAt = u.UpdatedAt
	})
}

func (s *Store) ListNotes(_ context.Context, c models.Collection, q store.Query) ([]store.NoteDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpListNotes); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	out := append([]store.NoteDocument{}, s.notes[c]...)
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := noteField(out[i], q.OrderBy), noteField(out[j], q.OrderBy)
			if q.Descending {
				return a.After(b)
			}
			return a.Before(b)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) AddReply(_ context.Context, ref store.Ref, doc store.ReplyDocument) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpAddReply); err != nil {
		return "", fmt.Errorf("failed to add reply: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return "", fmt.Errorf("failed to add reply: %w", err)
	}
	key := ref.Note().String()
	doc.ID = ulid.Make().String()
	doc.NoteID = ref.NoteID
	err := s.write(func() {
		s.replies[key] = append(s.replies[key], doc)
	})
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (s *Store) GetReply(_ context.Context, ref store.Ref) (*store.ReplyDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpGetReply); err != nil {
		return nil, fmt.Errorf("failed to get reply: %w", err)
	}
	i := s.replyIndex(ref)
	if i < 0 {
		return nil, nil
	}
	doc := s.replies[ref.Note().String()][i]
	return &doc, nil
}

func (s *Store) DeleteReply(_ context.Context, ref store.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpDeleteReply); err != nil {
		return fmt.Errorf("failed to delete reply: %w", err)
	}
	if s.replyIndex(ref) < 0 {
		return fmt.Errorf("failed to delete reply %s: %w", ref, store.ErrNotFound)
	}
	return s.write(func() {
		s.deleteLocked(ref)
	})
}

func (s *Store) ListReplies(_ context.Context, ref store.Ref, q store.Query) ([]store.ReplyDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpListReplies); err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	out := append([]store.ReplyDocument{}, s.replies[ref.Note().String()]...)
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Descending {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Commit validates every ref before applying any delete. Deleting a missing
// document is not an error.
func (s *Store) Commit(_ context.Context, b *store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpCommit); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return s.write(func() {
		for _, ref := range b.Deletes() {
			s.deleteLocked(ref)
		}
	})
}

func (s *Store) GetAccount(_ context.Context, email string) (*store.AccountDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpGetAccount); err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	acc, ok := s.accounts[email]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s *Store) PutAccount(_ context.Context, doc store.AccountDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(OpPutAccount); err != nil {
		return fmt.Errorf("failed to put account: %w", err)
	}
	if doc.Email == "" {
		return errors.New("failed to put account: email is required")
	}
	return s.write(func() {
		s.accounts[doc.Email] = doc
	})
}

// Migrate creates the snapshot directory when the store is file backed.
func (s *Store) Migrate(_ context.Context) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) noteIndex(ref store.Ref) int {
	for i, doc := range s.notes[ref.Collection] {
		if doc.ID == ref.NoteID {
			return i
		}
	}
	return -1
}

func (s *Store) replyIndex(ref store.Ref) int {
	for i, doc := range s.replies[ref.Note().String()] {
		if doc.ID == ref.ReplyID {
			return i
		}
	}
	return -1
}

func (s *Store) deleteLocked(ref store.Ref) {
	if ref.IsReply() {
		key := ref.Note().String()
		if i := s.replyIndex(ref); i >= 0 {
			s.replies[key] = append(s.replies[key][:i], s.replies[key][i+1:]...)
		}
		if len(s.replies[key]) == 0 {
			delete(s.replies, key)
		}
		return
	}
	if i := s.noteIndex(ref); i >= 0 {
		docs := s.notes[ref.Collection]
		s.notes[ref.Collection] = append(docs[:i], docs[i+1:]...)
	}
}

// write applies fn and persists the result. When the snapshot cannot be written the
// documents are put back as they were, so a failed call leaves nothing behind.
// Callers hold s.mu.
func (s *Store) write(fn func()) error {
	if s.path == "" {
		fn()
		return nil
	}
	notes, replies, accounts := s.cloneLocked()
	fn()
	if err := s.persist(); err != nil {
		s.notes, s.replies, s.accounts = notes, replies, accounts
		return err
	}
	return nil
}

func (s *Store) cloneLocked() (map[models.Collection][]store.NoteDocument, map[string][]store.ReplyDocument, map[string]store.AccountDocument) {
	notes := make(map[models.Collection][]store.NoteDocument, len(s.notes))
	for c, docs := range s.notes {
		notes[c] = append([]store.NoteDocument(nil), docs...)
	}
	replies := make(map[string][]store.ReplyDocument, len(s.replies))
	for key, docs := range s.replies {
		replies[key] = append([]store.ReplyDocument(nil), docs...)
	}
	accounts := make(map[string]store.AccountDocument, len(s.accounts))
	for email, doc := range s.accounts {
		accounts[email] = doc
	}
	return notes, replies, accounts
}

// persist writes the snapshot file. Callers hold s.mu.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	data, err := snapshotEncMode.Marshal(newSnapshot(s))
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func noteField(doc store.NoteDocument, field string) time.Time {
	if field == store.FieldCreatedAt {
		return doc.CreatedAt
	}
	return doc.UpdatedAt
}
