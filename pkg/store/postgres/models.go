package postgres

import (
	"time"

	"github.com/supportnotes/supportnotes/pkg/store"
)

type noteModel struct {
	Collection   string    `gorm:"primaryKey;size:64"`
	ID           string    `gorm:"primaryKey;size:64"`
	StudentName  string    `gorm:"not null"`
	TeacherName  string    `gorm:"not null"`
	Content      string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false;index"`
	CreatorEmail string
	CreatorName  string
}

func (noteModel) TableName() string { return "notes" }

func newNoteModel(ref store.Ref, doc store.NoteDocument) noteModel {
	return noteModel{
		Collection:   string(ref.Collection),
		ID:           ref.NoteID,
		StudentName:  doc.StudentName,
		TeacherName:  doc.TeacherName,
		Content:      doc.Content,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  doc.CreatorName,
	}
}

func (m noteModel) document() store.NoteDocument {
	return store.NoteDocument{
		ID:           m.ID,
		StudentName:  m.StudentName,
		TeacherName:  m.TeacherName,
		Content:      m.Content,
		CreatedAt:    store.NormalizeTime(m.CreatedAt),
		UpdatedAt:    store.NormalizeTime(m.UpdatedAt),
		CreatorEmail: m.CreatorEmail,
		CreatorName:  m.CreatorName,
	}
}

type replyModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Collection   string    `gorm:"size:64;index:idx_replies_note"`
	NoteID       string    `gorm:"size:64;index:idx_replies_note"`
	Content      string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	CreatorEmail string
	CreatorName  string
}

func (replyModel) TableName() string { return "replies" }

func newReplyModel(ref store.Ref, id string, doc store.ReplyDocument) replyModel {
	return replyModel{
		ID:           id,
		Collection:   string(ref.Collection),
		NoteID:       ref.NoteID,
		Content:      doc.Content,
		CreatedAt:    doc.CreatedAt,
		CreatorEmail: doc.CreatorEmail,
		CreatorName:  doc.CreatorName,
	}
}

func (m replyModel) document() store.ReplyDocument {
	return store.ReplyDocument{
		ID:           m.ID,
		NoteID:       m.NoteID,
		Content:      m.Content,
		CreatedAt:    store.NormalizeTime(m.CreatedAt),
		CreatorEmail: m.CreatorEmail,
		CreatorName:  m.CreatorName,
	}
}

// accountModel mirrors store.AccountDocument field for field.
type accountModel struct {
	Email        string `gorm:"primaryKey"`
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (accountModel) TableName() string { return "accounts" }

func (m accountModel) document() store.AccountDocument {
	return store.AccountDocument(m)
}
