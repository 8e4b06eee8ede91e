package notes

import (
	"context"
	"sort"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

// FetchNotes replaces the notes cache with every note of collection c, most recently
// updated first, and returns the new contents.
//
// A failed query is logged and leaves the cache as it was.
func (s *Service) FetchNotes(ctx context.Context, c models.Collection) []models.Note {
	s.setLoading(true)
	defer s.setLoading(false)

	c, err := s.resolve(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching notes")
		return s.Notes()
	}

	docs, err := s.store.ListNotes(ctx, c, store.OrderedBy(store.FieldUpdatedAt).Desc())
	if err != nil {
		s.logger.Error().Err(err).Str("collection", c.String()).Msg("Error fetching notes")
		return s.Notes()
	}

	notes := make([]models.Note, len(docs))
	for i, doc := range docs {
		notes[i] = s.toNote(doc)
	}
	// Missing timestamps were just stamped with now, so the store order is not enough.
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})

	s.cache.mu.Lock()
	s.cache.collection = c
	s.cache.notes = notes
	s.cache.mu.Unlock()

	s.logger.Debug().Str("collection", c.String()).Int("count", len(notes)).Msg("Fetched notes")
	return append([]models.Note{}, notes...)
}

func (s *Service) setLoading(v bool) {
	s.cache.mu.Lock()
	s.cache.loading = v
	s.cache.mu.Unlock()
}

// SaveNote creates a note when in.ID is empty and updates it otherwise.
//
// An update of an id that no longer exists writes a complete new note at that id.
func (s *Service) SaveNote(ctx context.Context, in models.NoteInput, c models.Collection) (models.Note, error) {
	c, err := s.resolve(c)
	if err != nil {
		return models.Note{}, err
	}
	in = in.Trimmed()
	if err := validateInput(in); err != nil {
		return models.Note{}, err
	}

	note, patch, err := s.saveNote(ctx, in, c)
	if err != nil {
		return models.Note{}, err
	}
	s.cache.apply(patch)
	return note, nil
}

func (s *Service) saveNote(ctx context.Context, in models.NoteInput, c models.Collection) (models.Note, Patch, error) {
	if in.ID == "" {
		return s.createNote(ctx, in, c)
	}

	ref := store.NoteRef(c, in.ID)
	existing, err := s.store.GetNote(ctx, ref)
	if err != nil {
		return models.Note{}, Patch{}, persistenceError("read note", err)
	}
	if existing == nil {
		s.logger.Warn().Str("collection", c.String()).Str("note_id", in.ID).Msg("Note missing on update, recreating")
		return s.recreateNote(ctx, in, ref)
	}

	updatedAt := advance(s.now(), existing.CreatedAt, existing.UpdatedAt)
	err = s.store.UpdateNote(ctx, ref, store.NoteUpdate{
		StudentName: &in.StudentName,
		TeacherName: &in.TeacherName,
		Content:     &in.Content,
		UpdatedAt:   updatedAt,
	})
	if err != nil {
		return models.Note{}, Patch{}, persistenceError("update note", err)
	}

	doc := *existing
	doc.StudentName = in.StudentName
	doc.TeacherName = in.TeacherName
	doc.Content = in.Content
	doc.UpdatedAt = updatedAt
	note := s.toNote(doc)
	return note, Patch{Collection: c, UpdateNote: &note}, nil
}

func (s *Service) newNoteDocument(ctx context.Context, in models.NoteInput) store.NoteDocument {
	now := s.now()
	email, name := s.creator(ctx)
	return store.NoteDocument{
		StudentName:  in.StudentName,
		TeacherName:  in.TeacherName,
		Content:      in.Content,
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatorEmail: email,
		CreatorName:  name,
	}
}

func (s *Service) createNote(ctx context.Context, in models.NoteInput, c models.Collection) (models.Note, Patch, error) {
	doc := s.newNoteDocument(ctx, in)
	id, err := s.store.AddNote(ctx, c, doc)
	if err != nil {
		return models.Note{}, Patch{}, persistenceError("add note", err)
	}
	doc.ID = id
	note := s.toNote(doc)
	s.logger.Info().Str("collection", c.String()).Str("note_id", id).Msg("Note created")
	return note, Patch{Collection: c, InsertNote: &note}, nil
}

func (s *Service) recreateNote(ctx context.Context, in models.NoteInput, ref store.Ref) (models.Note, Patch, error) {
	doc := s.newNoteDocument(ctx, in)
	if err := s.store.SetNote(ctx, ref, doc); err != nil {
		return models.Note{}, Patch{}, persistenceError("write note", err)
	}
	doc.ID = ref.NoteID
	note := s.toNote(doc)
	return note, Patch{Collection: ref.Collection, InsertNote: &note}, nil
}

// DeleteNote removes the note and all of its replies in one atomic commit.
func (s *Service) DeleteNote(ctx context.Context, id string, c models.Collection) error {
	c, err := s.resolve(c)
	if err != nil {
		return err
	}
	if id == "" {
		return invalidArgument("note id is required")
	}

	patch, err := s.deleteNote(ctx, store.NoteRef(c, id))
	if err != nil {
		return err
	}
	s.cache.apply(patch)
	return nil
}

func (s *Service) deleteNote(ctx context.Context, ref store.Ref) (Patch, error) {
	replies, err := s.store.ListReplies(ctx, ref, store.Query{})
	if err != nil {
		return Patch{}, persistenceError("list replies", err)
	}

	batch := store.NewBatch()
	for _, r := range replies {
		batch.Delete(ref.Reply(r.ID))
	}
	batch.Delete(ref)
	if err := s.store.Commit(ctx, batch); err != nil {
		return Patch{}, persistenceError("delete note", err)
	}

	s.logger.Info().
		Str("collection", ref.Collection.String()).
		Str("note_id", ref.NoteID).
		Int("count", len(replies)).
		Msg("Note deleted with replies")
	return Patch{
		Collection:   ref.Collection,
		RemoveNote:   ref.NoteID,
		Replies:      ref,
		ClearReplies: true,
	}, nil
}
