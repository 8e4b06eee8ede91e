package models

import (
	"strings"
	"time"
)

// AnonymousEmail is recorded as the creator of notes saved without a session.
const AnonymousEmail = "anonymous@example.com"

// Note is a short support note about a student, written for a teacher.
//
// ID is assigned by the store on creation and never changes. CreatedAt is set once;
// UpdatedAt moves forward on every edit of the note and whenever one of its replies is
// added or removed.
type Note struct {
	ID           string    `json:"id"`
	StudentName  string    `json:"studentName"`
	TeacherName  string    `json:"teacherName"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	CreatorEmail string    `json:"creatorEmail,omitempty"`
	CreatorName  string    `json:"creatorName,omitempty"`
}

// Reply is a comment on a note. Replies are created and deleted, never edited.
type Reply struct {
	ID           string    `json:"id"`
	NoteID       string    `json:"noteId"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	CreatorEmail string    `json:"creatorEmail"`
	CreatorName  string    `json:"creatorName"`
}

// NoteInput is what a caller submits to create or edit a note.
// An empty ID means create.
type NoteInput struct {
	ID          string `json:"id,omitempty"`
	StudentName string `json:"studentName" validate:"notblank"`
	TeacherName string `json:"teacherName" validate:"notblank"`
	Content     string `json:"content" validate:"notblank"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (in NoteInput) Trimmed() NoteInput {
	return NoteInput{
		ID:          strings.TrimSpace(in.ID),
		StudentName: strings.TrimSpace(in.StudentName),
		TeacherName: strings.TrimSpace(in.TeacherName),
		Content:     strings.TrimSpace(in.Content),
	}
}

// ReplyInput is the body of a new reply.
type ReplyInput struct {
	Content string `json:"content" validate:"notblank"`
}

// LocalPart returns the part of an email address before the '@'.
func LocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// DisplayName picks name when set and falls back to the local part of email.
func DisplayName(name, email string) string {
	if name != "" {
		return name
	}
	return LocalPart(email)
}
