package memory

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

// Timestamps keep nanoseconds and their tag so ordering survives a reload.
var snapshotEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type snapshot struct {
	Notes    map[string][]noteRecord  `cbor:"notes"`
	Replies  map[string][]replyRecord `cbor:"replies"`
	Accounts []accountRecord          `cbor:"accounts"`
}

type noteRecord struct {
	ID           string    `cbor:"id"`
	StudentName  string    `cbor:"studentName"`
	TeacherName  string    `cbor:"teacherName"`
	Content      string    `cbor:"content"`
	CreatedAt    time.Time `cbor:"createdAt"`
	UpdatedAt    time.Time `cbor:"updatedAt"`
	CreatorEmail string    `cbor:"creatorEmail,omitempty"`
	CreatorName  string    `cbor:"creatorName,omitempty"`
}

type replyRecord struct {
	ID           string    `cbor:"id"`
	NoteID       string    `cbor:"noteId"`
	Content      string    `cbor:"content"`
	CreatedAt    time.Time `cbor:"createdAt"`
	CreatorEmail string    `cbor:"creatorEmail"`
	CreatorName  string    `cbor:"creatorName"`
}

type accountRecord struct {
	Email        string    `cbor:"email"`
	DisplayName  string    `cbor:"displayName,omitempty"`
	PasswordHash []byte    `cbor:"passwordHash"`
	CreatedAt    time.Time `cbor:"createdAt"`
	UpdatedAt    time.Time `cbor:"updatedAt"`
}

func newSnapshot(s *Store) snapshot {
	snap := snapshot{
		Notes:   make(map[string][]noteRecord, len(s.notes)),
		Replies: make(map[string][]replyRecord, len(s.replies)),
	}
	for c, docs := range s.notes {
		for _, d := range docs {
			snap.Notes[string(c)] = append(snap.Notes[string(c)], noteRecord(d))
		}
	}
	for key, docs := range s.replies {
		for _, d := range docs {
			snap.Replies[key] = append(snap.Replies[key], replyRecord(d))
		}
	}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, accountRecord(a))
	}
	return snap
}

func (snap snapshot) restore(s *Store) {
	for c, recs := range snap.Notes {
		for _, r := range recs {
			s.notes[models.Collection(c)] = append(s.notes[models.Collection(c)], store.NoteDocument(r))
		}
	}
	for key, recs := range snap.Replies {
		for _, r := range recs {
			s.replies[key] = append(s.replies[key], store.ReplyDocument(r))
		}
	}
	for _, a := range snap.Accounts {
		s.accounts[a.Email] = store.AccountDocument(a)
	}
}
