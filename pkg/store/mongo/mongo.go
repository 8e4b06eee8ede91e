// Package mongo implements [store.Store] on MongoDB with the official v2 driver.
//
// Each note collection maps to a MongoDB collection of the same name. Replies of every
// collection share the replies collection and are linked to their note by the collection
// and note_id fields. Accounts are stored in accounts with the email as _id.
//
// [Store.Commit] runs inside a multi-document transaction, which needs a replica set or
// a sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// New connects to uri and checks the server is reachable.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) notes(c models.Collection) *mongo.Collection { return s.db.Collection(string(c)) }
func (s *Store) replies() *mongo.Collection                  { return s.db.Collection("replies") }
func (s *Store) accounts() *mongo.Collection                 { return s.db.Collection("accounts") }

// Migrate creates the indexes used by list queries.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.replies(): {
			{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "note_id", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for _, c := range models.Collections() {
		indexes[s.notes(c)] = []mongo.IndexModel{
			{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		}
	}
	for coll, idx := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) AddNote(ctx context.Context, c models.Collection, doc store.NoteDocument) (string, error) {
	row := newNoteDoc(uuid.NewString(), doc)
	if _, err := s.notes(c).InsertOne(ctx, row); err != nil {
		return "", err
	}
	return row.ID, nil
}

func (s *Store) GetNote(ctx context.Context, ref store.Ref) (*store.NoteDocument, error) {
	var row noteDoc
	err := s.notes(ref.Collection).FindOne(ctx, bson.M{"_id": ref.NoteID}).Decode(&row)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) SetNote(ctx context.Context, ref store.Ref, doc store.NoteDocument) error {
	_, err := s.notes(ref.Collection).ReplaceOne(ctx,
		bson.M{"_id": ref.NoteID},
		newNoteDoc(ref.NoteID, doc),
		options.Replace().SetUpsert(true))
	return err
}

func (s *Store) UpdateNote(ctx context.Context, ref store.Ref, u store.NoteUpdate) error {
	set := bson.M{store.FieldUpdatedAt: u.UpdatedAt}
	if u.StudentName != nil {
		set["studentName"] = *u.StudentName
	}
	if u.TeacherName != nil {
		set["teacherName"] = *u.TeacherName
	}
	if u.Content != nil {
		set["content"] = *u.Content
	}

	res, err := s.notes(ref.Collection).UpdateOne(ctx, bson.M{"_id": ref.NoteID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListNotes(ctx context.Context, c models.Collection, q store.Query) ([]store.NoteDocument, error) {
	cursor, err := s.notes(c).Find(ctx, bson.M{}, findOptions(q))
	if err != nil {
		return nil, err
	}
	var rows []noteDoc
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	docs := make([]store.NoteDocument, len(rows))
	for i, row := range rows {
		docs[i] = row.document()
	}
	return docs, nil
}

func replyFilter(ref store.Ref) bson.M {
	f := bson.M{"collection": string(ref.Collection), "note_id": ref.NoteID}
	if ref.ReplyID != "" {
		f["_id"] = ref.ReplyID
	}
	return f
}

func (s *Store) AddReply(ctx context.Context, ref store.Ref, doc store.ReplyDocument) (string, error) {
	row := newReplyDoc(ref, uuid.NewString(), doc)
	if _, err := s.replies().InsertOne(ctx, row); err != nil {
		return "", err
	}
	return row.ID, nil
}

func (s *Store) GetReply(ctx context.Context, ref store.Ref) (*store.ReplyDocument, error) {
	var row replyDoc
	err := s.replies().FindOne(ctx, replyFilter(ref)).Decode(&row)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) DeleteReply(ctx context.Context, ref store.Ref) error {
	res, err := s.replies().DeleteOne(ctx, replyFilter(ref))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListReplies(ctx context.Context, ref store.Ref, q store.Query) ([]store.ReplyDocument, error) {
	cursor, err := s.replies().Find(ctx, replyFilter(ref.Note()), findOptions(q))
	if err != nil {
		return nil, err
	}
	var rows []replyDoc
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	docs := make([]store.ReplyDocument, len(rows))
	for i, row := range rows {
		docs[i] = row.document()
	}
	return docs, nil
}

// Commit deletes every reference of the batch in one transaction.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		for _, ref := range b.Deletes() {
			var err error
			if ref.IsReply() {
				_, err = s.replies().DeleteOne(ctx, bson.M{"_id": ref.ReplyID})
			} else {
				_, err = s.notes(ref.Collection).DeleteOne(ctx, bson.M{"_id": ref.NoteID})
			}
			if err != nil {
				return nil, fmt.Errorf("delete %s: %w", ref, err)
			}
		}
		return nil, nil
	})
	return err
}

func (s *Store) GetAccount(ctx context.Context, email string) (*store.AccountDocument, error) {
	var row accountDoc
	err := s.accounts().FindOne(ctx, bson.M{"_id": email}).Decode(&row)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) PutAccount(ctx context.Context, doc store.AccountDocument) error {
	_, err := s.accounts().ReplaceOne(ctx,
		bson.M{"_id": doc.Email},
		newAccountDoc(doc),
		options.Replace().SetUpsert(true))
	return err
}

func findOptions(q store.Query) *options.FindOptionsBuilder {
	opts := options.Find()
	switch q.OrderBy {
	case store.FieldCreatedAt, store.FieldUpdatedAt:
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}
