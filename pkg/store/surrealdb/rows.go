package surrealdb

import (
	"fmt"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/supportnotes/supportnotes/pkg/store"
)

// Timestamps are read as any: records written by other clients may hold a datetime,
// a string or nothing at all.

type noteRow struct {
	ID           *models.RecordID `cbor:"id,omitempty"`
	StudentName  string           `cbor:"studentName"`
	TeacherName  string           `cbor:"teacherName"`
	Content      string           `cbor:"content"`
	CreatedAt    any              `cbor:"createdAt,omitempty"`
	UpdatedAt    any              `cbor:"updatedAt,omitempty"`
	CreatorEmail string           `cbor:"creatorEmail,omitempty"`
	CreatorName  string           `cbor:"creatorName,omitempty"`
}

func newNoteRow(doc store.NoteDocument) noteRow {
	return noteRow{
		StudentName:  doc.StudentName,
		TeacherName:  doc.TeacherName,
		Content:      doc.Content,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  doc.CreatorName,
	}
}

func (r noteRow) document() store.NoteDocument {
	return store.NoteDocument{
		ID:           recordKey(r.ID),
		StudentName:  r.StudentName,
		TeacherName:  r.TeacherName,
		Content:      r.Content,
		CreatedAt:    timeOf(r.CreatedAt),
		UpdatedAt:    timeOf(r.UpdatedAt),
		CreatorEmail: r.CreatorEmail,
		CreatorName:  r.CreatorName,
	}
}

type replyRow struct {
	ID           *models.RecordID `cbor:"id,omitempty"`
	Collection   string           `cbor:"collection"`
	Note         string           `cbor:"note"`
	Content      string           `cbor:"content"`
	CreatedAt    any              `cbor:"createdAt,omitempty"`
	CreatorEmail string           `cbor:"creatorEmail"`
	CreatorName  string           `cbor:"creatorName"`
}

func newReplyRow(ref store.Ref, doc store.ReplyDocument) replyRow {
	return replyRow{
		Collection:   string(ref.Collection),
		Note:         ref.NoteID,
		Content:      doc.Content,
		CreatedAt:    doc.CreatedAt,
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  doc.CreatorName,
	}
}

func (r replyRow) belongsTo(ref store.Ref) bool {
	return r.Collection == string(ref.Collection) && r.Note == ref.NoteID
}

func (r replyRow) document() store.ReplyDocument {
	return store.ReplyDocument{
		ID:           recordKey(r.ID),
		NoteID:       r.Note,
		Content:      r.Content,
		CreatedAt:    timeOf(r.CreatedAt),
		CreatorEmail: r.CreatorEmail,
		CreatorName:  r.CreatorName,
	}
}

type accountRow struct {
	ID           *models.RecordID `cbor:"id,omitempty"`
	DisplayName  string           `cbor:"displayName,omitempty"`
	PasswordHash []byte           `cbor:"passwordHash"`
	CreatedAt    any              `cbor:"createdAt,omitempty"`
	UpdatedAt    any              `cbor:"updatedAt,omitempty"`
}

func newAccountRow(doc store.AccountDocument) accountRow {
	return accountRow{
		DisplayName:  doc.DisplayName,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func (r accountRow) document() store.AccountDocument {
	return store.AccountDocument{
		Email:        recordKey(r.ID),
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		CreatedAt:    timeOf(r.CreatedAt),
		UpdatedAt:    timeOf(r.UpdatedAt),
	}
}

// recordKey returns the id part of a record id.
func recordKey(rid *models.RecordID) string {
	if rid == nil {
		return ""
	}
	if s, ok := rid.ID.(string); ok {
		return s
	}
	return fmt.Sprint(rid.ID)
}
