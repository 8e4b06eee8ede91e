// Package storetest provides a conformance suite that every
// [github.com/supportnotes/supportnotes/pkg/store.Store] implementation runs.
//
//	func TestMemoryStore(t *testing.T) {
//		suite.Run(t, storetest.New(func(t *testing.T) store.Store { return memory.New() }))
//	}
//
// The factory is called once per test and must return an empty store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

// Factory opens a fresh, empty store for one test.
type Factory func(t *testing.T) store.Store

type Suite struct {
	suite.Suite
	open  Factory
	store store.Store
	ctx   context.Context
}

func New(open Factory) *Suite {
	return &Suite{open: open}
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

// base is truncated to milliseconds so every backend stores it without loss.
var base = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func (s *Suite) addNote(c models.Collection, student string, created, updated time.Time) string {
	id, err := s.store.AddNote(s.ctx, c, store.NoteDocument{
		StudentName:  student,
		TeacherName:  "Sara",
		Content:      "content for " + student,
		CreatedAt:    created,
		UpdatedAt:    updated,
		CreatorEmail: "sara@example.com",
		CreatorName:  "Sara",
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(id)
	return id
}

func (s *Suite) addReply(note store.Ref, content string, created time.Time) string {
	id, err := s.store.AddReply(s.ctx, note, store.ReplyDocument{
		Content:      content,
		CreatedAt:    created,
		CreatorEmail: "ali@example.com",
		CreatorName:  "ali",
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(id)
	return id
}

func (s *Suite) TestAddAndGetNote() {
	id := s.addNote(models.CollectionNormal, "Ali", at(0), at(0))

	got, err := s.store.GetNote(s.ctx, store.NoteRef(models.CollectionNormal, id))
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(id, got.ID)
	s.Equal("Ali", got.StudentName)
	s.Equal("Sara", got.TeacherName)
	s.Equal("content for Ali", got.Content)
	s.Equal("sara@example.com", got.CreatorEmail)
	s.Equal("Sara", got.CreatorName)
	s.True(at(0).Equal(got.CreatedAt), "createdAt %v", got.CreatedAt)
	s.True(at(0).Equal(got.UpdatedAt), "updatedAt %v", got.UpdatedAt)
}

func (s *Suite) TestAddNoteAssignsDistinctIDs() {
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		id := s.addNote(models.CollectionNormal, "Ali", at(i), at(i))
		s.False(seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func (s *Suite) TestGetMissingNote() {
	got, err := s.store.GetNote(s.ctx, store.NoteRef(models.CollectionNormal, "00000000-0000-0000-0000-000000000000"))
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *Suite) TestCollectionsAreSeparate() {
	id := s.addNote(models.CollectionPermanent, "Omar", at(0), at(0))

	got, err := s.store.GetNote(s.ctx, store.NoteRef(models.CollectionNormal, id))
	s.Require().NoError(err)
	s.Nil(got)

	normal, err := s.store.ListNotes(s.ctx, models.CollectionNormal, store.Query{})
	s.Require().NoError(err)
	s.Empty(normal)

	permanent, err := s.store.ListNotes(s.ctx, models.CollectionPermanent, store.Query{})
	s.Require().NoError(err)
	s.Len(permanent, 1)
}

func (s *Suite) TestSetNoteCreatesAndReplaces() {
	ref := store.NoteRef(models.CollectionStoppedStudents, "3f6f1c1e-8a52-4f3e-9a0e-1d7c2b5e4a10")
	doc := store.NoteDocument{
		StudentName: "Lina",
		TeacherName: "Sara",
		Content:     "first",
		CreatedAt:   at(0),
		UpdatedAt:   at(0),
	}
	s.Require().NoError(s.store.SetNote(s.ctx, ref, doc))

	doc.Content = "second"
	doc.UpdatedAt = at(5)
	s.Require().NoError(s.store.SetNote(s.ctx, ref, doc))

	got, err := s.store.GetNote(s.ctx, ref)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(ref.NoteID, got.ID)
	s.Equal("second", got.Content)
	s.True(at(5).Equal(got.UpdatedAt))

	all, err := s.store.ListNotes(s.ctx, models.CollectionStoppedStudents, store.Query{})
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *Suite) TestUpdateNote() {
	id := s.addNote(models.CollectionNormal, "Ali", at(0), at(0))
	ref := store.NoteRef(models.CollectionNormal, id)

	content := "updated"
	s.Require().NoError(s.store.UpdateNote(s.ctx, ref, store.NoteUpdate{Content: &content, UpdatedAt: at(10)}))

	got, err := s.store.GetNote(s.ctx, ref)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("updated", got.Content)
	s.Equal("Ali", got.StudentName)
	s.True(at(0).Equal(got.CreatedAt))
	s.True(at(10).Equal(got.UpdatedAt))
	s.Equal("sara@example.com", got.CreatorEmail)
}

func (s *Suite) TestUpdateMissingNote() {
	err := s.store.UpdateNote(s.ctx, store.NoteRef(models.CollectionNormal, "00000000-0000-0000-0000-000000000000"), store.NoteUpdate{UpdatedAt: at(1)})
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestListNotesOrderAndLimit() {
	a := s.addNote(models.CollectionNormal, "A", at(0), at(30))
	b := s.addNote(models.CollectionNormal, "B", at(1), at(10))
	c := s.addNote(models.CollectionNormal, "C", at(2), at(20))

	desc, err := s.store.ListNotes(s.ctx, models.CollectionNormal, store.OrderedBy(store.FieldUpdatedAt).Desc())
	s.Require().NoError(err)
	s.Equal([]string{a, c, b}, noteIDs(desc))

	asc, err := s.store.ListNotes(s.ctx, models.CollectionNormal, store.OrderedBy(store.FieldCreatedAt))
	s.Require().NoError(err)
	s.Equal([]string{a, b, c}, noteIDs(asc))

	limited, err := s.store.ListNotes(s.ctx, models.CollectionNormal, store.OrderedBy(store.FieldUpdatedAt).Desc().WithLimit(2))
	s.Require().NoError(err)
	s.Equal([]string{a, c}, noteIDs(limited))
}

func (s *Suite) TestReplies() {
	noteID := s.addNote(models.CollectionNormal, "Ali", at(0), at(0))
	note := store.NoteRef(models.CollectionNormal, noteID)

	empty, err := s.store.ListReplies(s.ctx, note, store.Query{Limit: 1})
	s.Require().NoError(err)
	s.Empty(empty)

	second := s.addReply(note, "second", at(2))
	first := s.addReply(note, "first", at(1))

	got, err := s.store.GetReply(s.ctx, note.Reply(first))
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(first, got.ID)
	s.Equal(noteID, got.NoteID)
	s.Equal("first", got.Content)
	s.Equal("ali@example.com", got.CreatorEmail)
	s.Equal("ali", got.CreatorName)
	s.True(at(1).Equal(got.CreatedAt))

	ordered, err := s.store.ListReplies(s.ctx, note, store.OrderedBy(store.FieldCreatedAt))
	s.Require().NoError(err)
	s.Equal([]string{first, second}, replyIDs(ordered))

	oldest, err := s.store.ListReplies(s.ctx, note, store.Query{Limit: 1})
	s.Require().NoError(err)
	s.Len(oldest, 1)

	s.Require().NoError(s.store.DeleteReply(s.ctx, note.Reply(first)))
	gone, err := s.store.GetReply(s.ctx, note.Reply(first))
	s.Require().NoError(err)
	s.Nil(gone)

	rest, err := s.store.ListReplies(s.ctx, note, store.Query{})
	s.Require().NoError(err)
	s.Equal([]string{second}, replyIDs(rest))
}

func (s *Suite) TestRepliesScopedToNote() {
	n1 := store.NoteRef(models.CollectionNormal, s.addNote(models.CollectionNormal, "A", at(0), at(0)))
	n2 := store.NoteRef(models.CollectionNormal, s.addNote(models.CollectionNormal, "B", at(0), at(0)))
	r1 := s.addReply(n1, "for A", at(1))

	other, err := s.store.ListReplies(s.ctx, n2, store.Query{})
	s.Require().NoError(err)
	s.Empty(other)

	wrong, err := s.store.GetReply(s.ctx, n2.Reply(r1))
	s.Require().NoError(err)
	s.Nil(wrong)
}

func (s *Suite) TestDeleteMissingReply() {
	note := store.NoteRef(models.CollectionNormal, s.addNote(models.CollectionNormal, "A", at(0), at(0)))
	err := s.store.DeleteReply(s.ctx, note.Reply("00000000-0000-0000-0000-000000000000"))
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestCommitDeletesNoteAndReplies() {
	keep := store.NoteRef(models.CollectionNormal, s.addNote(models.CollectionNormal, "Keep", at(0), at(0)))
	keptReply := s.addReply(keep, "stays", at(1))

	note := store.NoteRef(models.CollectionNormal, s.addNote(models.CollectionNormal, "Drop", at(0), at(0)))
	batch := store.NewBatch()
	for i := 0; i < 3; i++ {
		batch.Delete(note.Reply(s.addReply(note, "bye", at(i+1))))
	}
	batch.Delete(note)

	s.Require().NoError(s.store.Commit(s.ctx, batch))

	got, err := s.store.GetNote(s.ctx, note)
	s.Require().NoError(err)
	s.Nil(got)
	replies, err := s.store.ListReplies(s.ctx, note, store.Query{})
	s.Require().NoError(err)
	s.Empty(replies)

	kept, err := s.store.GetNote(s.ctx, keep)
	s.Require().NoError(err)
	s.NotNil(kept)
	stays, err := s.store.ListReplies(s.ctx, keep, store.Query{})
	s.Require().NoError(err)
	s.Equal([]string{keptReply}, replyIDs(stays))
}

func (s *Suite) TestCommitEmptyBatch() {
	s.NoError(s.store.Commit(s.ctx, store.NewBatch()))
}

func (s *Suite) TestAccounts() {
	missing, err := s.store.GetAccount(s.ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.Nil(missing)

	acc := store.AccountDocument{
		Email:        "sara@example.com",
		DisplayName:  "Sara",
		PasswordHash: []byte("$2a$10$hash"),
		CreatedAt:    at(0),
		UpdatedAt:    at(0),
	}
	s.Require().NoError(s.store.PutAccount(s.ctx, acc))

	acc.DisplayName = "Sara K."
	acc.UpdatedAt = at(1)
	s.Require().NoError(s.store.PutAccount(s.ctx, acc))

	got, err := s.store.GetAccount(s.ctx, "sara@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Sara K.", got.DisplayName)
	s.Equal([]byte("$2a$10$hash"), got.PasswordHash)
	s.True(at(0).Equal(got.CreatedAt))
}

func noteIDs(docs []store.NoteDocument) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

func replyIDs(docs []store.ReplyDocument) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
