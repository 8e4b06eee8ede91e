// Package notes is the data-access layer between the notes UI and the document store.
//
// A [Service] loads, saves and deletes notes and their replies, turns store documents
// into [models.Note] and [models.Reply] values, and keeps an in-memory cache of the
// notes in the active collection and the replies of the open note.
//
// Every mutation runs in two steps: a store step that returns the result and a
// [Patch], then an apply step that updates the cache. The cache is patched only after
// the store accepted the write, so a failed write leaves it untouched.
//
// Read operations ([Service.FetchNotes], [Service.FetchReplies]) log failures and leave
// the cache as it was. Write operations return errors matching one of [ErrValidation],
// [ErrInvalidArgument], [ErrAuthRequired], [ErrNotFound] or [ErrPersistence].
//
// Operations are not serialized against each other. Two concurrent saves of the same
// note both reach the store, and whichever finishes last wins the cache.
package notes

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/supportnotes/supportnotes/pkg/auth"
	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

// Service is safe for concurrent use.
type Service struct {
	store      store.Store
	sessions   auth.SessionSource
	collection models.Collection
	logger     zerolog.Logger
	now        func() time.Time

	cache cache
}

type Option func(*Service)

// WithCollection sets the collection used when a call passes an empty one.
func WithCollection(c models.Collection) Option {
	return func(s *Service) {
		s.collection = c
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService returns a service over st that reads the signed-in user from sessions.
// A nil sessions means nobody is ever signed in.
func NewService(st store.Store, sessions auth.SessionSource, opts ...Option) *Service {
	s := &Service{
		store:      st,
		sessions:   sessions,
		collection: models.DefaultCollection,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = auth.Anonymous
	}
	s.cache.collection = s.collection
	return s
}

// Collection is the default collection.
func (s *Service) Collection() models.Collection {
	return s.collection
}

// Notes returns a copy of the cached notes.
func (s *Service) Notes() []models.Note {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	return append([]models.Note{}, s.cache.notes...)
}

// NotesCollection is the collection the cached notes belong to.
func (s *Service) NotesCollection() models.Collection {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	return s.cache.collection
}

// Replies returns a copy of the cached replies of the open note.
func (s *Service) Replies() []models.Reply {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	return append([]models.Reply{}, s.cache.replies...)
}

func (s *Service) Loading() bool {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	return s.cache.loading
}

func (s *Service) LoadingReplies() bool {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	return s.cache.loadingReplies
}

// resolve picks the default for an empty collection and rejects unknown ones.
func (s *Service) resolve(c models.Collection) (models.Collection, error) {
	if c == "" {
		c = s.collection
	}
	if c == "" {
		return "", invalidArgument("collection is required")
	}
	if !c.Known() {
		return "", invalidArgument("unknown collection %q", c)
	}
	return c, nil
}

// creator returns the identity stamped on new documents, falling back to the
// anonymous address when nobody is signed in.
func (s *Service) creator(ctx context.Context) (email, name string) {
	email = models.AnonymousEmail
	if sess, ok := s.sessions.Current(ctx); ok {
		if sess.Email != "" {
			email = sess.Email
		}
		name = sess.DisplayName
	}
	return email, models.DisplayName(name, email)
}

// minStep is how far updatedAt is pushed past a floor it would not clear. It is coarse
// enough to survive the millisecond precision of the slowest backend.
const minStep = time.Millisecond

// advance returns now, or minStep past the latest floor when now is not after it.
func advance(now time.Time, floors ...time.Time) time.Time {
	for _, f := range floors {
		if !now.After(f) {
			now = f.Add(minStep)
		}
	}
	return now
}

// stamp returns the current time, or now when the zero value came from the store.
func (s *Service) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func (s *Service) toNote(doc store.NoteDocument) models.Note {
	n := models.Note{
		ID:           doc.ID,
		StudentName:  doc.StudentName,
		TeacherName:  doc.TeacherName,
		Content:      doc.Content,
		CreatedAt:    s.stamp(doc.CreatedAt),
		UpdatedAt:    s.stamp(doc.UpdatedAt),
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  doc.CreatorName,
	}
	if n.CreatorName == "" && n.CreatorEmail != "" {
		n.CreatorName = models.LocalPart(n.CreatorEmail)
	}
	return n
}

func (s *Service) toReply(noteID string, doc store.ReplyDocument) models.Reply {
	r := models.Reply{
		ID:           doc.ID,
		NoteID:       doc.NoteID,
		Content:      doc.Content,
		CreatedAt:    s.stamp(doc.CreatedAt),
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  models.DisplayName(doc.CreatorName, doc.CreatorEmail),
	}
	if r.NoteID == "" {
		r.NoteID = noteID
	}
	return r
}
