package notes

import (
	"sync"
	"time"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

// Patch is the cache change that follows a successful store step.
//
// Note changes apply only when the notes cache holds Collection. Reply changes apply
// only when the reply cache holds Replies' note, or holds no note yet.
type Patch struct {
	Collection models.Collection

	// InsertNote replaces the cached note with the same id, or is prepended.
	InsertNote *models.Note
	// UpdateNote replaces the cached note with the same id, if there is one.
	UpdateNote *models.Note
	RemoveNote string
	// TouchNote sets the cached note's UpdatedAt to TouchedAt.
	TouchNote string
	TouchedAt time.Time

	Replies     store.Ref
	AppendReply *models.Reply
	RemoveReply string
	// ClearReplies empties the reply cache if it holds the Replies note.
	ClearReplies bool
}

func (p Patch) touchesNotes() bool {
	return p.InsertNote != nil || p.UpdateNote != nil || p.RemoveNote != "" || p.TouchNote != ""
}

func (p Patch) touchesReplies() bool {
	return p.AppendReply != nil || p.RemoveReply != "" || p.ClearReplies
}

// cache is the service's view of the active collection and the open note.
type cache struct {
	mu             sync.RWMutex
	collection     models.Collection
	notes          []models.Note
	loading        bool
	replyNote      store.Ref
	replies        []models.Reply
	loadingReplies bool
}

func (c *cache) apply(p Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.touchesNotes() && p.Collection == c.collection {
		c.applyNotes(p)
	}
	if p.touchesReplies() {
		c.applyReplies(p)
	}
}

func (c *cache) applyNotes(p Patch) {
	if n := p.InsertNote; n != nil {
		if i := c.noteIndex(n.ID); i >= 0 {
			c.notes[i] = *n
		} else {
			c.notes = append([]models.Note{*n}, c.notes...)
		}
	}
	if n := p.UpdateNote; n != nil {
		if i := c.noteIndex(n.ID); i >= 0 {
			c.notes[i] = *n
		}
	}
	if p.RemoveNote != "" {
		if i := c.noteIndex(p.RemoveNote); i >= 0 {
			c.notes = append(c.notes[:i:i], c.notes[i+1:]...)
		}
	}
	if p.TouchNote != "" {
		if i := c.noteIndex(p.TouchNote); i >= 0 {
			c.notes[i].UpdatedAt = p.TouchedAt
		}
	}
}

func (c *cache) applyReplies(p Patch) {
	if p.ClearReplies {
		if c.replyNote == p.Replies {
			c.replies = nil
		}
		return
	}
	switch c.replyNote {
	case p.Replies:
	case store.Ref{}:
		c.replyNote = p.Replies
	default:
		return
	}
	if r := p.AppendReply; r != nil {
		c.replies = append(c.replies, *r)
	}
	if p.RemoveReply != "" {
		for i, r := range c.replies {
			if r.ID == p.RemoveReply {
				c.replies = append(c.replies[:i:i], c.replies[i+1:]...)
				break
			}
		}
	}
}

func (c *cache) noteIndex(id string) int {
	for i, n := range c.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
