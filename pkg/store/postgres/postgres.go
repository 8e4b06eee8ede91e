// Package postgres implements [store.Store] on PostgreSQL through GORM.
//
// Notes of every collection share the notes table and are keyed by (collection, id).
// Replies carry their note's collection and id as plain columns without a foreign key,
// so a note row can be removed while its replies remain, matching the other backends.
//
// Timestamps are stored as timestamptz with microsecond precision. GORM's automatic
// timestamp tracking is disabled since the caller owns createdAt and updatedAt.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New opens a connection pool for dsn.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) getDB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.getDB(ctx).AutoMigrate(&noteModel{}, &replyModel{}, &accountModel{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) AddNote(ctx context.Context, c models.Collection, doc store.NoteDocument) (string, error) {
	row := newNoteModel(store.NoteRef(c, uuid.NewString()), doc)
	if err := s.getDB(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

func (s *Store) GetNote(ctx context.Context, ref store.Ref) (*store.NoteDocument, error) {
	var row noteModel
	err := s.getDB(ctx).First(&row, "collection = ? AND id = ?", string(ref.Collection), ref.NoteID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) SetNote(ctx context.Context, ref store.Ref, doc store.NoteDocument) error {
	row := newNoteModel(ref, doc)
	return s.getDB(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *Store) UpdateNote(ctx context.Context, ref store.Ref, u store.NoteUpdate) error {
	values := map[string]any{"updated_at": u.UpdatedAt}
	if u.StudentName != nil {
		values["student_name"] = *u.StudentName
	}
	if u.TeacherName != nil {
		values["teacher_name"] = *u.TeacherName
	}
	if u.Content != nil {
		values["content"] = *u.Content
	}

	res := s.getDB(ctx).Model(&noteModel{}).
		Where("collection = ? AND id = ?", string(ref.Collection), ref.NoteID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListNotes(ctx context.Context, c models.Collection, q store.Query) ([]store.NoteDocument, error) {
	var rows []noteModel
	tx := applyQuery(s.getDB(ctx).Where("collection = ?", string(c)), q)
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]store.NoteDocument, len(rows))
	for i, row := range rows {
		docs[i] = row.document()
	}
	return docs, nil
}

func (s *Store) AddReply(ctx context.Context, ref store.Ref, doc store.ReplyDocument) (string, error) {
	row := newReplyModel(ref, uuid.NewString(), doc)
	if err := s.getDB(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

func (s *Store) GetReply(ctx context.Context, ref store.Ref) (*store.ReplyDocument, error) {
	var row replyModel
	err := s.getDB(ctx).First(&row, "id = ? AND collection = ? AND note_id = ?",
		ref.ReplyID, string(ref.Collection), ref.NoteID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) DeleteReply(ctx context.Context, ref store.Ref) error {
	res := s.getDB(ctx).Delete(&replyModel{}, "id = ? AND collection = ? AND note_id = ?",
		ref.ReplyID, string(ref.Collection), ref.NoteID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListReplies(ctx context.Context, ref store.Ref, q store.Query) ([]store.ReplyDocument, error) {
	var rows []replyModel
	tx := s.getDB(ctx).Where("collection = ? AND note_id = ?", string(ref.Collection), ref.NoteID)
	if err := applyQuery(tx, q).Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]store.ReplyDocument, len(rows))
	for i, row := range rows {
		docs[i] = row.document()
	}
	return docs, nil
}

// Commit deletes every reference of the batch in one database transaction.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}
	return s.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ref := range b.Deletes() {
			var err error
			if ref.IsReply() {
				err = tx.Delete(&replyModel{}, "id = ?", ref.ReplyID).Error
			} else {
				err = tx.Delete(&noteModel{}, "collection = ? AND id = ?", string(ref.Collection), ref.NoteID).Error
			}
			if err != nil {
				return fmt.Errorf("delete %s: %w", ref, err)
			}
		}
		return nil
	})
}

func (s *Store) GetAccount(ctx context.Context, email string) (*store.AccountDocument, error) {
	var row accountModel
	err := s.getDB(ctx).First(&row, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) PutAccount(ctx context.Context, doc store.AccountDocument) error {
	row := accountModel(doc)
	return s.getDB(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

var orderColumns = map[string]string{
	store.FieldCreatedAt: "created_at",
	store.FieldUpdatedAt: "updated_at",
}

func applyQuery(tx *gorm.DB, q store.Query) *gorm.DB {
	if col, ok := orderColumns[q.OrderBy]; ok {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: q.Descending})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}
