package mongo

import (
	"github.com/supportnotes/supportnotes/pkg/store"
)

// --- MongoDB document types ---

// Timestamps decode as any; BSON datetimes arrive as bson.DateTime and documents
// written by older clients may lack them entirely.

type noteDoc struct {
	ID           string `bson:"_id"`
	StudentName  string `bson:"studentName"`
	TeacherName  string `bson:"teacherName"`
	Content      string `bson:"content"`
	CreatedAt    any    `bson:"createdAt,omitempty"`
	UpdatedAt    any    `bson:"updatedAt,omitempty"`
	CreatorEmail string `bson:"creatorEmail,omitempty"`
	CreatorName  string `bson:"creatorName,omitempty"`
}

func newNoteDoc(id string, doc store.NoteDocument) noteDoc {
	return noteDoc{
		ID:           id,
		StudentName:  doc.StudentName,
		TeacherName:  doc.TeacherName,
		Content:      doc.Content,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  doc.CreatorName,
	}
}

func (d noteDoc) document() store.NoteDocument {
	return store.NoteDocument{
		ID:           d.ID,
		StudentName:  d.StudentName,
		TeacherName:  d.TeacherName,
		Content:      d.Content,
		CreatedAt:    store.NormalizeTime(d.CreatedAt),
		UpdatedAt:    store.NormalizeTime(d.UpdatedAt),
		CreatorEmail: d.CreatorEmail,
		CreatorName:  d.CreatorName,
	}
}

type replyDoc struct {
	ID           string `bson:"_id"`
	Collection   string `bson:"collection"`
	NoteID       string `bson:"note_id"`
	Content      string `bson:"content"`
	CreatedAt    any    `bson:"createdAt,omitempty"`
	CreatorEmail string `bson:"creatorEmail"`
	CreatorName  string `bson:"creatorName"`
}

func newReplyDoc(ref store.Ref, id string, doc store.ReplyDocument) replyDoc {
	return replyDoc{
		ID:           id,
		Collection:   string(ref.Collection),
		NoteID:       ref.NoteID,
		Content:      doc.Content,
		CreatedAt:    doc.CreatedAt,
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  doc.CreatorName,
	}
}

func (d replyDoc) document() store.ReplyDocument {
	return store.ReplyDocument{
		ID:           d.ID,
		NoteID:       d.NoteID,
		Content:      d.Content,
		CreatedAt:    store.NormalizeTime(d.CreatedAt),
		CreatorEmail: d.CreatorEmail,
		CreatorName:  d.CreatorName,
	}
}

type accountDoc struct {
	Email        string `bson:"_id"`
	DisplayName  string `bson:"displayName,omitempty"`
	PasswordHash []byte `bson:"passwordHash"`
	CreatedAt    any    `bson:"createdAt,omitempty"`
	UpdatedAt    any    `bson:"updatedAt,omitempty"`
}

func newAccountDoc(doc store.AccountDocument) accountDoc {
	return accountDoc{
		Email:        doc.Email,
		DisplayName:  doc.DisplayName,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func (d accountDoc) document() store.AccountDocument {
	return store.AccountDocument{
		Email:        d.Email,
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		CreatedAt:    store.NormalizeTime(d.CreatedAt),
		UpdatedAt:    store.NormalizeTime(d.UpdatedAt),
	}
}
