package notes_test

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportnotes/supportnotes/pkg/auth"
	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/notes"
	"github.com/supportnotes/supportnotes/pkg/store"
	"github.com/supportnotes/supportnotes/pkg/store/memory"
)

// tickClock advances one second on every reading.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickClock() *tickClock {
	return &tickClock{t: time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

var sara = &auth.Session{Email: "sara@gmail.com", DisplayName: "Sara"}

type fixture struct {
	ctx   context.Context
	store *memory.Store
	svc   *notes.Service
	clock *tickClock
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, session *auth.Session, opts ...notes.Option) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.New(),
		clock: newTickClock(),
		logs:  &bytes.Buffer{},
	}
	opts = append([]notes.Option{
		notes.WithClock(f.clock.Now),
		notes.WithLogger(zerolog.New(zerolog.SyncWriter(f.logs))),
	}, opts...)
	f.svc = notes.NewService(f.store, auth.StaticSource{Session: session}, opts...)
	return f
}

func (f *fixture) create(t *testing.T, student string) models.Note {
	t.Helper()
	n, err := f.svc.SaveNote(f.ctx, models.NoteInput{StudentName: student, TeacherName: "Sara", Content: "Missed homework"}, "")
	require.NoError(t, err)
	return n
}

func TestNewServiceDefaults(t *testing.T) {
	svc := notes.NewService(memory.New(), nil)
	assert.Equal(t, models.CollectionNormal, svc.Collection())
	assert.Empty(t, svc.Notes())
	assert.Empty(t, svc.Replies())
	assert.False(t, svc.Loading())
	assert.False(t, svc.LoadingReplies())

	svc = notes.NewService(memory.New(), nil, notes.WithCollection(models.CollectionPermanent))
	assert.Equal(t, models.CollectionPermanent, svc.Collection())
	assert.Equal(t, models.CollectionPermanent, svc.NotesCollection())
}

func TestSaveNoteCreate(t *testing.T) {
	f := newFixture(t, sara)

	n, err := f.svc.SaveNote(f.ctx, models.NoteInput{StudentName: "  Ali ", TeacherName: "Sara", Content: "Missed homework\n"}, "")
	require.NoError(t, err)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "Ali", n.StudentName)
	assert.Equal(t, "Missed homework", n.Content)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
	assert.Equal(t, "sara@gmail.com", n.CreatorEmail)
	assert.Equal(t, "Sara", n.CreatorName)
	assert.Equal(t, []models.Note{n}, f.svc.Notes())

	doc, err := f.store.GetNote(f.ctx, store.NoteRef(models.CollectionNormal, n.ID))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Ali", doc.StudentName)

	second := f.create(t, "Omar")
	cached := f.svc.Notes()
	require.Len(t, cached, 2)
	assert.Equal(t, second.ID, cached[0].ID, "new notes are prepended")
}

func TestSaveNoteCreatorFallbacks(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := newFixture(t, nil)
		n := f.create(t, "Ali")
		assert.Equal(t, "anonymous@example.com", n.CreatorEmail)
		assert.Equal(t, "anonymous", n.CreatorName)
	})

	t.Run("session without display name", func(t *testing.T) {
		f := newFixture(t, &auth.Session{Email: "omar@gmail.com"})
		n := f.create(t, "Ali")
		assert.Equal(t, "omar@gmail.com", n.CreatorEmail)
		assert.Equal(t, "omar", n.CreatorName)
	})
}

func TestSaveNoteValidation(t *testing.T) {
	f := newFixture(t, sara)

	tests := []struct {
		name  string
		in    models.NoteInput
		field string
	}{
		{"blank student", models.NoteInput{StudentName: " ", TeacherName: "Sara", Content: "x"}, "studentName"},
		{"empty teacher", models.NoteInput{StudentName: "Ali", Content: "x"}, "teacherName"},
		{"whitespace content", models.NoteInput{StudentName: "Ali", TeacherName: "Sara", Content: "\t\n"}, "content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SaveNote(f.ctx, tt.in, "")
			require.ErrorIs(t, err, notes.ErrValidation)

			var verr *notes.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Equal(t, tt.field+" must not be blank", verr.Fields[0].Error)
		})
	}

	t.Run("all blank", func(t *testing.T) {
		_, err := f.svc.SaveNote(f.ctx, models.NoteInput{}, "")
		var verr *notes.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Fields, 3)
	})

	assert.Empty(t, f.svc.Notes())
	docs, err := f.store.ListNotes(f.ctx, models.CollectionNormal, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSaveNoteUnknownCollection(t *testing.T) {
	f := newFixture(t, sara)
	_, err := f.svc.SaveNote(f.ctx, models.NoteInput{StudentName: "Ali", TeacherName: "Sara", Content: "x"}, "archive")
	assert.ErrorIs(t, err, notes.ErrInvalidArgument)
}

func TestSaveNoteUpdate(t *testing.T) {
	f := newFixture(t, sara)
	created := f.create(t, "Ali")
	f.create(t, "Omar")

	updater := notes.NewService(f.store, auth.StaticSource{Session: &auth.Session{Email: "omar@gmail.com"}}, notes.WithClock(f.clock.Now))
	updater.FetchNotes(f.ctx, "")

	updated, err := updater.SaveNote(f.ctx, models.NoteInput{ID: created.ID, StudentName: "Ali", TeacherName: "Huda", Content: "Done"}, "")
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, "Huda", updated.TeacherName)
	assert.Equal(t, "sara@gmail.com", updated.CreatorEmail, "creator is kept")

	cached := updater.Notes()
	require.Len(t, cached, 2)
	assert.Equal(t, updated, cached[1], "patched in place")

	doc, err := f.store.GetNote(f.ctx, store.NoteRef(models.CollectionNormal, created.ID))
	require.NoError(t, err)
	assert.Equal(t, "Done", doc.Content)
	assert.True(t, created.CreatedAt.Equal(doc.CreatedAt))
}

func TestSaveNoteUpdateWithFrozenClock(t *testing.T) {
	frozen := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	svc := notes.NewService(memory.New(), auth.StaticSource{Session: sara}, notes.WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	n, err := svc.SaveNote(ctx, models.NoteInput{StudentName: "Ali", TeacherName: "Sara", Content: "a"}, "")
	require.NoError(t, err)
	n, err = svc.SaveNote(ctx, models.NoteInput{ID: n.ID, StudentName: "Ali", TeacherName: "Sara", Content: "b"}, "")
	require.NoError(t, err)
	assert.True(t, n.UpdatedAt.After(n.CreatedAt))

	prev := n.UpdatedAt
	n, err = svc.SaveNote(ctx, models.NoteInput{ID: n.ID, StudentName: "Ali", TeacherName: "Sara", Content: "c"}, "")
	require.NoError(t, err)
	assert.True(t, n.UpdatedAt.After(prev), "every edit moves updatedAt forward")
}

func TestReplyTouchWithFrozenClock(t *testing.T) {
	frozen := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	st := memory.New()
	svc := notes.NewService(st, auth.StaticSource{Session: sara}, notes.WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	n, err := svc.SaveNote(ctx, models.NoteInput{StudentName: "Ali", TeacherName: "Sara", Content: "a"}, "")
	require.NoError(t, err)
	ref := store.NoteRef(models.CollectionNormal, n.ID)

	stored := func() time.Time {
		t.Helper()
		doc, err := st.GetNote(ctx, ref)
		require.NoError(t, err)
		require.NotNil(t, doc)
		return doc.UpdatedAt
	}

	r, err := svc.AddReply(ctx, n.ID, "first", "")
	require.NoError(t, err)
	afterAdd := stored()
	assert.True(t, afterAdd.After(n.UpdatedAt), "adding a reply advances updatedAt")
	assert.True(t, svc.Notes()[0].UpdatedAt.Equal(afterAdd))

	require.NoError(t, svc.DeleteReply(ctx, n.ID, r.ID, ""))
	afterDelete := stored()
	assert.True(t, afterDelete.After(afterAdd), "deleting a reply advances updatedAt")
	assert.True(t, svc.Notes()[0].UpdatedAt.Equal(afterDelete))

	// The step survives millisecond storage precision.
	assert.True(t, afterDelete.Truncate(time.Millisecond).After(afterAdd.Truncate(time.Millisecond)))
}

func TestSaveNoteStaleID(t *testing.T) {
	f := newFixture(t, sara)
	keep := f.create(t, "Omar")

	n, err := f.svc.SaveNote(f.ctx, models.NoteInput{ID: "gone-123", StudentName: "Ali", TeacherName: "Sara", Content: "back"}, "")
	require.NoError(t, err)
	assert.Equal(t, "gone-123", n.ID)
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)
	assert.Equal(t, "sara@gmail.com", n.CreatorEmail)

	doc, err := f.store.GetNote(f.ctx, store.NoteRef(models.CollectionNormal, "gone-123"))
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "back", doc.Content)

	cached := f.svc.Notes()
	require.Len(t, cached, 2)
	assert.Equal(t, "gone-123", cached[0].ID)
	assert.Equal(t, keep.ID, cached[1].ID)

	// the recreated note now exists, so saving it again updates in place
	_, err = f.svc.SaveNote(f.ctx, models.NoteInput{ID: "gone-123", StudentName: "Ali", TeacherName: "Sara", Content: "again"}, "")
	require.NoError(t, err)
	assert.Len(t, f.svc.Notes(), 2)
}

func TestSaveNoteStoreFailure(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")
	before := f.svc.Notes()

	f.store.FailNext(memory.OpAddNote, nil)
	_, err := f.svc.SaveNote(f.ctx, models.NoteInput{StudentName: "Omar", TeacherName: "Sara", Content: "x"}, "")
	require.ErrorIs(t, err, notes.ErrPersistence)
	require.ErrorIs(t, err, memory.ErrInjected)
	var perr *notes.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "add note", perr.Op)

	f.store.FailNext(memory.OpUpdateNote, nil)
	_, err = f.svc.SaveNote(f.ctx, models.NoteInput{ID: n.ID, StudentName: "Ali", TeacherName: "Sara", Content: "changed"}, "")
	require.ErrorIs(t, err, notes.ErrPersistence)

	f.store.FailNext(memory.OpGetNote, nil)
	_, err = f.svc.SaveNote(f.ctx, models.NoteInput{ID: n.ID, StudentName: "Ali", TeacherName: "Sara", Content: "changed"}, "")
	require.ErrorIs(t, err, notes.ErrPersistence)

	assert.Equal(t, before, f.svc.Notes(), "cache untouched on failure")
}

func TestSaveNoteSnapshotWriteFailure(t *testing.T) {
	ctx := context.Background()
	st, err := memory.Open(filepath.Join(t.TempDir(), "missing", "notes.cbor"))
	require.NoError(t, err)
	svc := notes.NewService(st, auth.StaticSource{Session: sara})

	_, err = svc.SaveNote(ctx, models.NoteInput{StudentName: "Ali", TeacherName: "Sara", Content: "x"}, "")
	require.ErrorIs(t, err, notes.ErrPersistence)
	assert.Empty(t, svc.Notes())

	docs, err := st.ListNotes(ctx, models.CollectionNormal, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, docs, "store and cache agree after a failed create")
}

func TestFetchNotes(t *testing.T) {
	f := newFixture(t, sara)
	a := f.create(t, "A")
	b := f.create(t, "B")
	c := f.create(t, "C")
	_, err := f.svc.SaveNote(f.ctx, models.NoteInput{ID: a.ID, StudentName: "A", TeacherName: "Sara", Content: "edited"}, "")
	require.NoError(t, err)

	fresh := notes.NewService(f.store, nil)
	got := fresh.FetchNotes(f.ctx, "")
	assert.Equal(t, []string{a.ID, c.ID, b.ID}, ids(got))
	assert.Equal(t, got, fresh.Notes())
	assert.False(t, fresh.Loading())
}

func TestFetchNotesMissingTimestamps(t *testing.T) {
	f := newFixture(t, sara)
	old := f.create(t, "Old")
	_, err := f.store.AddNote(f.ctx, models.CollectionNormal, store.NoteDocument{
		StudentName:  "Legacy",
		TeacherName:  "Sara",
		Content:      "no dates",
		CreatorEmail: "huda@gmail.com",
	})
	require.NoError(t, err)

	got := f.svc.FetchNotes(f.ctx, "")
	require.Len(t, got, 2)
	legacy := got[0]
	assert.Equal(t, "Legacy", legacy.StudentName, "now-stamped note sorts first")
	assert.False(t, legacy.CreatedAt.IsZero())
	assert.True(t, legacy.UpdatedAt.After(old.UpdatedAt))
	assert.Equal(t, "huda", legacy.CreatorName)
}

func TestFetchNotesFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, sara)
	f.create(t, "Ali")
	f.svc.FetchNotes(f.ctx, "")
	before := f.svc.Notes()

	f.store.FailNext(memory.OpListNotes, nil)
	got := f.svc.FetchNotes(f.ctx, "")
	assert.Equal(t, before, got)
	assert.Equal(t, before, f.svc.Notes())
	assert.False(t, f.svc.Loading())
	assert.Contains(t, f.logs.String(), "Error fetching notes")

	empty := notes.NewService(f.store, nil)
	f.store.FailNext(memory.OpListNotes, nil)
	assert.Empty(t, empty.FetchNotes(f.ctx, ""))
	assert.False(t, empty.Loading())
}

func TestFetchNotesSwitchesCollection(t *testing.T) {
	f := newFixture(t, sara)
	f.create(t, "Normal")
	_, err := f.svc.SaveNote(f.ctx, models.NoteInput{StudentName: "Stopped", TeacherName: "Sara", Content: "x"}, models.CollectionStoppedStudents)
	require.NoError(t, err)
	assert.Len(t, f.svc.Notes(), 1, "other collection does not touch the cache")

	got := f.svc.FetchNotes(f.ctx, models.CollectionStoppedStudents)
	require.Len(t, got, 1)
	assert.Equal(t, "Stopped", got[0].StudentName)
	assert.Equal(t, models.CollectionStoppedStudents, f.svc.NotesCollection())
}

func TestDeleteNote(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")
	keep := f.create(t, "Omar")
	for _, msg := range []string{"one", "two", "three"} {
		_, err := f.svc.AddReply(f.ctx, n.ID, msg, "")
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.DeleteNote(f.ctx, n.ID, ""))

	assert.Equal(t, []string{keep.ID}, ids(f.svc.Notes()))
	assert.Empty(t, f.svc.Replies())
	doc, err := f.store.GetNote(f.ctx, store.NoteRef(models.CollectionNormal, n.ID))
	require.NoError(t, err)
	assert.Nil(t, doc)
	left, err := f.store.ListReplies(f.ctx, store.NoteRef(models.CollectionNormal, n.ID), store.Query{})
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Empty(t, f.svc.FetchReplies(f.ctx, n.ID, ""))
}

func TestDeleteNoteCommitFailure(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")
	for _, msg := range []string{"one", "two", "three"} {
		_, err := f.svc.AddReply(f.ctx, n.ID, msg, "")
		require.NoError(t, err)
	}
	notesBefore := f.svc.Notes()

	f.store.FailNext(memory.OpCommit, nil)
	err := f.svc.DeleteNote(f.ctx, n.ID, "")
	require.ErrorIs(t, err, notes.ErrPersistence)

	assert.Equal(t, notesBefore, f.svc.Notes())
	doc, err := f.store.GetNote(f.ctx, store.NoteRef(models.CollectionNormal, n.ID))
	require.NoError(t, err)
	assert.NotNil(t, doc)
	left, err := f.store.ListReplies(f.ctx, store.NoteRef(models.CollectionNormal, n.ID), store.Query{})
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestDeleteNoteInvalidArgument(t *testing.T) {
	f := newFixture(t, sara)
	assert.ErrorIs(t, f.svc.DeleteNote(f.ctx, "", ""), notes.ErrInvalidArgument)
	assert.ErrorIs(t, f.svc.DeleteNote(f.ctx, "x", "trash"), notes.ErrInvalidArgument)
}

func TestRepliesScenario(t *testing.T) {
	f := newFixture(t, sara)
	n, err := f.svc.SaveNote(f.ctx, models.NoteInput{StudentName: "Ali", TeacherName: "Sara", Content: "Missed homework"}, "")
	require.NoError(t, err)
	require.Len(t, f.svc.Notes(), 1)

	r1, err := f.svc.AddReply(f.ctx, n.ID, "Please follow up", "")
	require.NoError(t, err)
	r2, err := f.svc.AddReply(f.ctx, n.ID, "Please follow up", "")
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)
	assert.Equal(t, n.ID, r1.NoteID)
	assert.Equal(t, "sara@gmail.com", r1.CreatorEmail)
	assert.Equal(t, "Sara", r1.CreatorName)

	replies := f.svc.Replies()
	require.Len(t, replies, 2)
	assert.Equal(t, []string{r1.ID, r2.ID}, replyIDs(replies))

	touched := f.svc.Notes()[0].UpdatedAt
	assert.True(t, touched.After(n.UpdatedAt), "adding a reply touches the note")

	require.NoError(t, f.svc.DeleteReply(f.ctx, n.ID, replies[0].ID, ""))
	assert.Equal(t, []string{r2.ID}, replyIDs(f.svc.Replies()))
	assert.True(t, f.svc.Notes()[0].UpdatedAt.After(touched), "deleting a reply touches the note")

	doc, err := f.store.GetNote(f.ctx, store.NoteRef(models.CollectionNormal, n.ID))
	require.NoError(t, err)
	assert.True(t, f.svc.Notes()[0].UpdatedAt.Equal(doc.UpdatedAt), "touch is persisted")
}

func TestAddReplyErrors(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")

	_, err := f.svc.AddReply(f.ctx, n.ID, "   ", "")
	assert.ErrorIs(t, err, notes.ErrValidation)

	_, err = f.svc.AddReply(f.ctx, "", "hello", "")
	assert.ErrorIs(t, err, notes.ErrInvalidArgument)

	_, err = f.svc.AddReply(f.ctx, "missing", "hello", "")
	assert.ErrorIs(t, err, notes.ErrNotFound)

	anon := notes.NewService(f.store, nil)
	_, err = anon.AddReply(f.ctx, n.ID, "hello", "")
	assert.ErrorIs(t, err, notes.ErrAuthRequired)

	_, err = anon.AddReply(f.ctx, n.ID, "", "")
	assert.ErrorIs(t, err, notes.ErrValidation, "content is checked before the session")

	f.store.FailNext(memory.OpAddReply, nil)
	_, err = f.svc.AddReply(f.ctx, n.ID, "hello", "")
	assert.ErrorIs(t, err, notes.ErrPersistence)
	assert.Empty(t, f.svc.Replies())
}

func TestAddReplyTouchFailure(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")

	f.store.FailNext(memory.OpUpdateNote, nil)
	r, err := f.svc.AddReply(f.ctx, n.ID, "hello", "")
	require.ErrorIs(t, err, notes.ErrPersistence)
	assert.Equal(t, "hello", r.Content, "the stored reply is still returned")
	assert.Equal(t, []string{r.ID}, replyIDs(f.svc.Replies()))
	assert.Equal(t, n.UpdatedAt, f.svc.Notes()[0].UpdatedAt)
}

func TestDeleteReplyErrors(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")
	r, err := f.svc.AddReply(f.ctx, n.ID, "hello", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteReply(f.ctx, "", r.ID, ""), notes.ErrInvalidArgument)
	assert.ErrorIs(t, f.svc.DeleteReply(f.ctx, n.ID, "", ""), notes.ErrInvalidArgument)
	assert.ErrorIs(t, f.svc.DeleteReply(f.ctx, n.ID, "nope", ""), notes.ErrNotFound)

	f.store.FailNext(memory.OpDeleteReply, nil)
	assert.ErrorIs(t, f.svc.DeleteReply(f.ctx, n.ID, r.ID, ""), notes.ErrPersistence)
	assert.Len(t, f.svc.Replies(), 1)
}

func TestFetchReplies(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")
	other := f.create(t, "Omar")
	for _, msg := range []string{"first", "second", "third"} {
		_, err := f.svc.AddReply(f.ctx, n.ID, msg, "")
		require.NoError(t, err)
	}
	_, err := f.svc.AddReply(f.ctx, other.ID, "elsewhere", "")
	require.NoError(t, err)

	fresh := notes.NewService(f.store, nil)
	got := fresh.FetchReplies(f.ctx, n.ID, "")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, contents(got))
	assert.Equal(t, got, fresh.Replies())
	assert.False(t, fresh.LoadingReplies())

	assert.Empty(t, fresh.FetchReplies(f.ctx, other.ID+"x", ""), "missing note")
	assert.Empty(t, fresh.Replies(), "cache cleared for the new note")

	fresh.FetchReplies(f.ctx, n.ID, "")
	f.store.FailNext(memory.OpListReplies, nil)
	assert.Empty(t, fresh.FetchReplies(f.ctx, n.ID, ""))
	assert.Empty(t, fresh.Replies())
	assert.False(t, fresh.LoadingReplies())
}

func TestFetchRepliesSkipsFullQueryWhenEmpty(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")

	counting := &countingStore{Store: f.store}
	svc := notes.NewService(counting, nil)
	assert.Empty(t, svc.FetchReplies(f.ctx, n.ID, ""))
	assert.Equal(t, 1, counting.listReplies, "only the existence check runs")
}

// duplicatingStore returns every reply twice, out of order.
type duplicatingStore struct {
	store.Store
}

func (d duplicatingStore) ListReplies(ctx context.Context, ref store.Ref, q store.Query) ([]store.ReplyDocument, error) {
	docs, err := d.Store.ListReplies(ctx, ref, q)
	if err != nil || q.Limit > 0 {
		return docs, err
	}
	out := make([]store.ReplyDocument, 0, 2*len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		out = append(out, docs[i])
	}
	return append(out, docs...), nil
}

type countingStore struct {
	store.Store
	listReplies int
}

func (c *countingStore) ListReplies(ctx context.Context, ref store.Ref, q store.Query) ([]store.ReplyDocument, error) {
	c.listReplies++
	return c.Store.ListReplies(ctx, ref, q)
}

func TestFetchRepliesDeduplicates(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")
	for _, msg := range []string{"first", "second", "third"} {
		_, err := f.svc.AddReply(f.ctx, n.ID, msg, "")
		require.NoError(t, err)
	}

	svc := notes.NewService(duplicatingStore{f.store}, nil)
	got := svc.FetchReplies(f.ctx, n.ID, "")
	assert.Equal(t, []string{"first", "second", "third"}, contents(got))
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	f := newFixture(t, sara)
	n := f.create(t, "Ali")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddReply(f.ctx, n.ID, "hi", "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_ = f.svc.Notes()
			_ = f.svc.Replies()
			f.svc.FetchNotes(f.ctx, "")
		}()
	}
	wg.Wait()

	got := notes.NewService(f.store, nil).FetchReplies(f.ctx, n.ID, "")
	assert.Len(t, got, 8)
}

func ids(ns []models.Note) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func replyIDs(rs []models.Reply) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func contents(rs []models.Reply) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Content
	}
	return out
}
