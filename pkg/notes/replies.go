package notes

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

// FetchReplies opens note id: the reply cache is cleared, then filled with the note's
// replies oldest first, without duplicate ids.
//
// A missing note or a failed query is logged and leaves the reply cache empty.
func (s *Service) FetchReplies(ctx context.Context, id string, c models.Collection) []models.Reply {
	c, err := s.resolve(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching replies")
		return nil
	}
	ref := store.NoteRef(c, id)

	s.cache.mu.Lock()
	s.cache.replyNote = ref
	s.cache.replies = nil
	s.cache.loadingReplies = true
	s.cache.mu.Unlock()
	defer func() {
		s.cache.mu.Lock()
		s.cache.loadingReplies = false
		s.cache.mu.Unlock()
	}()

	log := s.logger.With().Str("collection", c.String()).Str("note_id", id).Logger()
	if id == "" {
		log.Error().Msg("Error fetching replies: note id is required")
		return nil
	}

	note, err := s.store.GetNote(ctx, ref)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching replies")
		return nil
	}
	if note == nil {
		log.Warn().Msg("Note not found, no replies to fetch")
		return nil
	}

	first, err := s.store.ListReplies(ctx, ref, store.Query{Limit: 1})
	if err != nil {
		log.Error().Err(err).Msg("Error fetching replies")
		return nil
	}
	if len(first) == 0 {
		return nil
	}

	docs, err := s.store.ListReplies(ctx, ref, store.OrderedBy(store.FieldCreatedAt))
	if err != nil {
		log.Error().Err(err).Msg("Error fetching replies")
		return nil
	}

	seen := make(map[string]bool, len(docs))
	replies := make([]models.Reply, 0, len(docs))
	for _, doc := range docs {
		if seen[doc.ID] {
			log.Warn().Str("reply_id", doc.ID).Msg("Duplicate reply skipped")
			continue
		}
		seen[doc.ID] = true
		replies = append(replies, s.toReply(id, doc))
	}
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})

	s.cache.mu.Lock()
	if s.cache.replyNote == ref {
		s.cache.replies = replies
	}
	s.cache.mu.Unlock()

	log.Debug().Int("count", len(replies)).Msg("Fetched replies")
	return append([]models.Reply{}, replies...)
}

// AddReply stores a reply by the signed-in user under note id, appends it to the reply
// cache and moves the note's updatedAt forward.
//
// If the reply is stored but the note cannot be touched, the reply stays cached and a
// PersistenceError is returned.
func (s *Service) AddReply(ctx context.Context, id, content string, c models.Collection) (models.Reply, error) {
	in := models.ReplyInput{Content: strings.TrimSpace(content)}
	if err := validateInput(in); err != nil {
		return models.Reply{}, err
	}
	c, err := s.resolve(c)
	if err != nil {
		return models.Reply{}, err
	}
	if id == "" {
		return models.Reply{}, invalidArgument("note id is required")
	}
	sess, ok := s.sessions.Current(ctx)
	if !ok {
		return models.Reply{}, ErrAuthRequired
	}

	ref := store.NoteRef(c, id)
	reply, patch, err := s.addReply(ctx, ref, in.Content, sess.Email, sess.DisplayName)
	if err != nil {
		return models.Reply{}, err
	}
	s.cache.apply(patch)

	touch, err := s.touchNote(ctx, ref)
	if err != nil {
		return reply, err
	}
	s.cache.apply(touch)
	return reply, nil
}

func (s *Service) addReply(ctx context.Context, ref store.Ref, content, email, name string) (models.Reply, Patch, error) {
	note, err := s.store.GetNote(ctx, ref)
	if err != nil {
		return models.Reply{}, Patch{}, persistenceError("read note", err)
	}
	if note == nil {
		return models.Reply{}, Patch{}, notFound("note %s", ref)
	}

	if email == "" {
		email = models.AnonymousEmail
	}
	doc := store.ReplyDocument{
		NoteID:       ref.NoteID,
		Content:      content,
		CreatedAt:    s.now(),
		CreatorEmail: email,
		CreatorName:  models.DisplayName(name, email),
	}
	replyID, err := s.store.AddReply(ctx, ref, doc)
	if err != nil {
		return models.Reply{}, Patch{}, persistenceError("add reply", err)
	}
	doc.ID = replyID
	reply := s.toReply(ref.NoteID, doc)

	s.logger.Info().
		Str("collection", ref.Collection.String()).
		Str("note_id", ref.NoteID).
		Str("reply_id", replyID).
		Msg("Reply added")
	return reply, Patch{Replies: ref, AppendReply: &reply}, nil
}

// DeleteReply removes reply replyID from note id and moves the note's updatedAt forward.
func (s *Service) DeleteReply(ctx context.Context, id, replyID string, c models.Collection) error {
	if id == "" || replyID == "" {
		return invalidArgument("note id and reply id are required")
	}
	c, err := s.resolve(c)
	if err != nil {
		return err
	}

	ref := store.ReplyRef(c, id, replyID)
	patch, err := s.deleteReply(ctx, ref)
	if err != nil {
		return err
	}
	s.cache.apply(patch)

	touch, err := s.touchNote(ctx, ref.Note())
	if err != nil {
		return err
	}
	s.cache.apply(touch)
	return nil
}

func (s *Service) deleteReply(ctx context.Context, ref store.Ref) (Patch, error) {
	existing, err := s.store.GetReply(ctx, ref)
	if err != nil {
		return Patch{}, persistenceError("read reply", err)
	}
	if existing == nil {
		return Patch{}, notFound("reply %s", ref)
	}

	if err := s.store.DeleteReply(ctx, ref); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Patch{}, notFound("reply %s", ref)
		}
		return Patch{}, persistenceError("delete reply", err)
	}

	s.logger.Info().
		Str("collection", ref.Collection.String()).
		Str("note_id", ref.NoteID).
		Str("reply_id", ref.ReplyID).
		Msg("Reply deleted")
	return Patch{Replies: ref.Note(), RemoveReply: ref.ReplyID}, nil
}

// touchNote writes a fresh updatedAt to the note and returns the matching cache patch.
// The new value is always later than the stored one.
func (s *Service) touchNote(ctx context.Context, ref store.Ref) (Patch, error) {
	note, err := s.store.GetNote(ctx, ref)
	if err != nil {
		s.logger.Error().Err(err).Str("note_id", ref.NoteID).Msg("Error reading note timestamp")
		return Patch{}, persistenceError("read note", err)
	}
	now := s.now()
	if note != nil {
		now = advance(now, note.CreatedAt, note.UpdatedAt)
	}
	if err := s.store.UpdateNote(ctx, ref, store.NoteUpdate{UpdatedAt: now}); err != nil {
		s.logger.Error().Err(err).Str("note_id", ref.NoteID).Msg("Error updating note timestamp")
		return Patch{}, persistenceError("update note timestamp", err)
	}
	return Patch{Collection: ref.Collection, TouchNote: ref.NoteID, TouchedAt: now}, nil
}
