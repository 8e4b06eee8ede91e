package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/supportnotes/supportnotes/pkg/models"
)

const repliesSegment = "replies"

// Ref addresses a note, or a reply when ReplyID is set.
type Ref struct {
	Collection models.Collection
	NoteID     string
	ReplyID    string
}

// NoteRef addresses the note id in collection c.
func NoteRef(c models.Collection, id string) Ref {
	return Ref{Collection: c, NoteID: id}
}

// ReplyRef addresses reply replyID under note noteID.
func ReplyRef(c models.Collection, noteID, replyID string) Ref {
	return Ref{Collection: c, NoteID: noteID, ReplyID: replyID}
}

// Note returns the ref of the note that owns r.
func (r Ref) Note() Ref {
	return Ref{Collection: r.Collection, NoteID: r.NoteID}
}

// Reply returns a ref to reply id under the note addressed by r.
func (r Ref) Reply(id string) Ref {
	return Ref{Collection: r.Collection, NoteID: r.NoteID, ReplyID: id}
}

func (r Ref) IsReply() bool {
	return r.ReplyID != ""
}

func (r Ref) String() string {
	if r.IsReply() {
		return fmt.Sprintf("%s/%s/%s/%s", r.Collection, r.NoteID, repliesSegment, r.ReplyID)
	}
	return fmt.Sprintf("%s/%s", r.Collection, r.NoteID)
}

// Validate reports an error if a segment r needs is empty.
func (r Ref) Validate() error {
	if r.Collection == "" {
		return errors.New("collection is required")
	}
	if r.NoteID == "" {
		return errors.New("note id is required")
	}
	return nil
}

// ParseRef parses the path form produced by Ref.String.
func ParseRef(path string) (Ref, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return NoteRef(models.Collection(parts[0]), parts[1]), nil
	case len(parts) == 4 && parts[2] == repliesSegment && parts[0] != "" && parts[1] != "" && parts[3] != "":
		return ReplyRef(models.Collection(parts[0]), parts[1], parts[3]), nil
	default:
		return Ref{}, fmt.Errorf("invalid document path %q", path)
	}
}
