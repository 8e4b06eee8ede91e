package notes_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/supportnotes/supportnotes/pkg/auth"
	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/notes"
	"github.com/supportnotes/supportnotes/pkg/store"
	"github.com/supportnotes/supportnotes/pkg/store/memory"
)

// =============================================================================
// Generators
// =============================================================================

func nameGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z][A-Za-z ']{0,30}`)
}

func contentGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 .,!?\n]{0,200}`)
}

func blankGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`[ \t\n]{0,5}`)
}

func inputGenerator() *rapid.Generator[models.NoteInput] {
	return rapid.Custom(func(t *rapid.T) models.NoteInput {
		return models.NoteInput{
			StudentName: nameGenerator().Draw(t, "studentName"),
			TeacherName: nameGenerator().Draw(t, "teacherName"),
			Content:     contentGenerator().Draw(t, "content"),
		}
	})
}

func newPropertyService(t *rapid.T) (*notes.Service, *memory.Store) {
	st := memory.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	step := rapid.Int64Range(0, int64(time.Minute)).Draw(t, "clockStep")
	clock := func() time.Time {
		start = start.Add(time.Duration(step))
		return start
	}
	return notes.NewService(st, auth.StaticSource{Session: sara}, notes.WithClock(clock)), st
}

// =============================================================================
// Property: create stamps equal timestamps and a fresh id
// =============================================================================

func testCreate_Properties(t *rapid.T) {
	svc, _ := newPropertyService(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for _, in := range rapid.SliceOfN(inputGenerator(), 1, 8).Draw(t, "inputs") {
		n, err := svc.SaveNote(ctx, in, "")
		if err != nil {
			t.Fatalf("SaveNote: %v", err)
		}
		if !n.CreatedAt.Equal(n.UpdatedAt) {
			t.Fatalf("createdAt %v != updatedAt %v", n.CreatedAt, n.UpdatedAt)
		}
		if n.ID == "" || seen[n.ID] {
			t.Fatalf("id %q is empty or reused", n.ID)
		}
		seen[n.ID] = true
		if n.StudentName != strings.TrimSpace(in.StudentName) {
			t.Fatalf("studentName %q not trimmed from %q", n.StudentName, in.StudentName)
		}
	}
}

func TestCreate_Properties(t *testing.T) {
	rapid.Check(t, testCreate_Properties)
}

// =============================================================================
// Property: update keeps createdAt and moves updatedAt past it
// =============================================================================

func testUpdate_Properties(t *rapid.T) {
	svc, _ := newPropertyService(t)
	ctx := context.Background()

	n, err := svc.SaveNote(ctx, inputGenerator().Draw(t, "original"), "")
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	for i, in := range rapid.SliceOfN(inputGenerator(), 1, 5).Draw(t, "edits") {
		in.ID = n.ID
		updated, err := svc.SaveNote(ctx, in, "")
		if err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
		if !updated.CreatedAt.Equal(n.CreatedAt) {
			t.Fatalf("edit %d changed createdAt", i)
		}
		if !updated.UpdatedAt.After(updated.CreatedAt) {
			t.Fatalf("edit %d: updatedAt %v not after createdAt %v", i, updated.UpdatedAt, updated.CreatedAt)
		}
	}
}

func TestUpdate_Properties(t *testing.T) {
	rapid.Check(t, testUpdate_Properties)
}

// =============================================================================
// Property: blank required fields are rejected
// =============================================================================

func testBlankField_Properties(t *rapid.T) {
	svc, st := newPropertyService(t)
	ctx := context.Background()

	in := inputGenerator().Draw(t, "input")
	blank := blankGenerator().Draw(t, "blank")
	switch rapid.IntRange(0, 2).Draw(t, "field") {
	case 0:
		in.StudentName = blank
	case 1:
		in.TeacherName = blank
	default:
		in.Content = blank
	}

	if _, err := svc.SaveNote(ctx, in, ""); !errors.Is(err, notes.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	docs, err := st.ListNotes(ctx, models.CollectionNormal, store.Query{})
	if err != nil || len(docs) != 0 {
		t.Fatalf("store written on validation failure: %d docs, %v", len(docs), err)
	}
}

func TestBlankField_Properties(t *testing.T) {
	rapid.Check(t, testBlankField_Properties)
}

// =============================================================================
// Property: fetched replies are ordered and unique
// =============================================================================

func testFetchReplies_Properties(t *rapid.T) {
	st := memory.New()
	ctx := context.Background()
	ref := store.NoteRef(models.CollectionNormal, "")

	id, err := st.AddNote(ctx, models.CollectionNormal, store.NoteDocument{StudentName: "Ali", TeacherName: "Sara", Content: "x"})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	ref.NoteID = id

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := rapid.SliceOfN(rapid.IntRange(0, 1000), 0, 20).Draw(t, "offsets")
	for _, off := range offsets {
		if _, err := st.AddReply(ctx, ref, store.ReplyDocument{Content: "r", CreatedAt: base.Add(time.Duration(off) * time.Second)}); err != nil {
			t.Fatalf("AddReply: %v", err)
		}
	}

	svc := notes.NewService(duplicatingStore{st}, nil)
	got := svc.FetchReplies(ctx, id, "")
	if len(got) != len(offsets) {
		t.Fatalf("got %d replies, want %d", len(got), len(offsets))
	}
	seen := map[string]bool{}
	for i, r := range got {
		if seen[r.ID] {
			t.Fatalf("duplicate reply %s", r.ID)
		}
		seen[r.ID] = true
		if i > 0 && r.CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("reply %d out of order", i)
		}
	}
}

func TestFetchReplies_Properties(t *testing.T) {
	rapid.Check(t, testFetchReplies_Properties)
}

// =============================================================================
// Property: delete leaves nothing reachable under the note
// =============================================================================

func testDeleteNote_Properties(t *rapid.T) {
	svc, st := newPropertyService(t)
	ctx := context.Background()

	n, err := svc.SaveNote(ctx, inputGenerator().Draw(t, "note"), "")
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	for _, c := range rapid.SliceOfN(contentGenerator(), 0, 6).Draw(t, "replies") {
		if _, err := svc.AddReply(ctx, n.ID, c, ""); err != nil {
			t.Fatalf("AddReply: %v", err)
		}
	}

	if err := svc.DeleteNote(ctx, n.ID, ""); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	for _, cached := range svc.Notes() {
		if cached.ID == n.ID {
			t.Fatalf("deleted note still cached")
		}
	}
	left, err := st.ListReplies(ctx, store.NoteRef(models.CollectionNormal, n.ID), store.Query{})
	if err != nil || len(left) != 0 {
		t.Fatalf("%d replies left, err %v", len(left), err)
	}
	if got := svc.FetchReplies(ctx, n.ID, ""); len(got) != 0 {
		t.Fatalf("FetchReplies after delete returned %d", len(got))
	}
}

func TestDeleteNote_Properties(t *testing.T) {
	rapid.Check(t, testDeleteNote_Properties)
}
