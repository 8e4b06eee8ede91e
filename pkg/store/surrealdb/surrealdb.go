// Package surrealdb implements [store.Store] on SurrealDB using native SurrealQL.
//
// Each note collection is a table of its own, named after the collection. Replies of
// every collection live in a single replies table and point back to their note with
// plain collection and note fields, so that deleting a note never removes its replies
// implicitly. Accounts are keyed by email in the accounts table.
//
// The connection is configured with the surrealcbor codec so that time.Time values
// round-trip as SurrealDB datetimes and record ids decode into [models.RecordID].
//
// # Usage
//
//	st, err := surrealdb.New(ctx, surrealdb.Config{
//		URL:       "ws://localhost:8000/rpc",
//		Namespace: "supportnotes",
//		Database:  "supportnotes",
//		Username:  "root",
//		Password:  "root",
//	})
//	if err != nil {
//		return err
//	}
//	defer st.Close()
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gws"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	notemodels "github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/store"
)

const (
	repliesTable  = "replies"
	accountsTable = "accounts"
)

// Transport names accepted by [Config].
const (
	TransportGorillaWS = "gorillaws"
	TransportGWS       = "gws"
)

// Config holds the connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	// Transport selects the WebSocket implementation, gorillaws when empty.
	Transport string
}

// Store implements [store.Store] on SurrealDB.
type Store struct {
	db *surrealdb.DB
}

var _ store.Store = (*Store)(nil)

// New connects, signs in when credentials are set and selects the namespace and database.
func New(ctx context.Context, cfg Config) (*Store, error) {
	u, err := url.ParseRequestURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	var db *surrealdb.DB
	switch cfg.Transport {
	case TransportGWS:
		db, err = surrealdb.FromConnection(ctx, gws.New(conf))
	case "", TransportGorillaWS:
		db, err = surrealdb.FromConnection(ctx, gorillaws.New(conf))
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, &surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate defines the tables and the reply lookup index. Tables stay schemaless.
func (s *Store) Migrate(ctx context.Context) error {
	var q strings.Builder
	for _, c := range notemodels.Collections() {
		fmt.Fprintf(&q, "DEFINE TABLE IF NOT EXISTS %s SCHEMALESS;\n", c)
	}
	q.WriteString("DEFINE TABLE IF NOT EXISTS replies SCHEMALESS;\n")
	q.WriteString("DEFINE INDEX IF NOT EXISTS replies_note ON TABLE replies FIELDS collection, note;\n")
	q.WriteString("DEFINE TABLE IF NOT EXISTS accounts SCHEMALESS;\n")

	if _, err := surrealdb.Query[any](ctx, s.db, q.String(), nil); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFoundCBOR turns the errors surrealcbor reports for a Select that matched no
// record into nil, so a missing note, reply or account reads as absent.
func handleNotFoundCBOR(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

func noteRecordID(ref store.Ref) models.RecordID {
	return models.NewRecordID(string(ref.Collection), ref.NoteID)
}

func replyRecordID(id string) models.RecordID {
	return models.NewRecordID(repliesTable, id)
}

// Note operations

func (s *Store) AddNote(ctx context.Context, c notemodels.Collection, doc store.NoteDocument) (string, error) {
	id := uuid.NewString()
	rid := models.NewRecordID(string(c), id)
	if _, err := surrealdb.Create[noteRow](ctx, s.db, rid, newNoteRow(doc)); err != nil {
		return "", fmt.Errorf("failed to create note: %w", err)
	}
	return id, nil
}

func (s *Store) GetNote(ctx context.Context, ref store.Ref) (*store.NoteDocument, error) {
	row, err := surrealdb.Select[noteRow](ctx, s.db, noteRecordID(ref))
	if err = handleNotFoundCBOR(err); err != nil {
		return nil, fmt.Errorf("failed to select note: %w", err)
	}
	if row == nil || row.ID == nil {
		return nil, nil
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) SetNote(ctx context.Context, ref store.Ref, doc store.NoteDocument) error {
	if _, err := surrealdb.Upsert[noteRow](ctx, s.db, noteRecordID(ref), newNoteRow(doc)); err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	return nil
}

func (s *Store) UpdateNote(ctx context.Context, ref store.Ref, u store.NoteUpdate) error {
	patch := map[string]any{store.FieldUpdatedAt: u.UpdatedAt}
	if u.StudentName != nil {
		patch["studentName"] = *u.StudentName
	}
	if u.TeacherName != nil {
		patch["teacherName"] = *u.TeacherName
	}
	if u.Content != nil {
		patch["content"] = *u.Content
	}

	// UPDATE on a missing record id returns no rows and creates nothing.
	res, err := surrealdb.Query[[]noteRow](ctx, s.db, "UPDATE $note MERGE $patch", map[string]any{
		"note":  noteRecordID(ref),
		"patch": patch,
	})
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListNotes(ctx context.Context, c notemodels.Collection, q store.Query) ([]store.NoteDocument, error) {
	query := "SELECT * FROM type::table($table)" + clauses(q)
	res, err := surrealdb.Query[[]noteRow](ctx, s.db, query, map[string]any{
		"table": string(c),
		"limit": q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	var docs []store.NoteDocument
	if res != nil && len(*res) > 0 {
		for _, row := range (*res)[0].Result {
			docs = append(docs, row.document())
		}
	}
	return docs, nil
}

// Reply operations

func (s *Store) AddReply(ctx context.Context, ref store.Ref, doc store.ReplyDocument) (string, error) {
	id := uuid.NewString()
	if _, err := surrealdb.Create[replyRow](ctx, s.db, replyRecordID(id), newReplyRow(ref, doc)); err != nil {
		return "", fmt.Errorf("failed to create reply: %w", err)
	}
	return id, nil
}

func (s *Store) GetReply(ctx context.Context, ref store.Ref) (*store.ReplyDocument, error) {
	row, err := surrealdb.Select[replyRow](ctx, s.db, replyRecordID(ref.ReplyID))
	if err = handleNotFoundCBOR(err); err != nil {
		return nil, fmt.Errorf("failed to select reply: %w", err)
	}
	if row == nil || row.ID == nil || !row.belongsTo(ref) {
		return nil, nil
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) DeleteReply(ctx context.Context, ref store.Ref) error {
	res, err := surrealdb.Query[[]replyRow](ctx, s.db,
		"DELETE $reply WHERE collection = $collection AND note = $note RETURN BEFORE",
		map[string]any{
			"reply":      replyRecordID(ref.ReplyID),
			"collection": string(ref.Collection),
			"note":       ref.NoteID,
		})
	if err != nil {
		return fmt.Errorf("failed to delete reply: %w", err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListReplies(ctx context.Context, ref store.Ref, q store.Query) ([]store.ReplyDocument, error) {
	query := "SELECT * FROM replies WHERE collection = $collection AND note = $note" + clauses(q)
	res, err := surrealdb.Query[[]replyRow](ctx, s.db, query, map[string]any{
		"collection": string(ref.Collection),
		"note":       ref.NoteID,
		"limit":      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}

	var docs []store.ReplyDocument
	if res != nil && len(*res) > 0 {
		for _, row := range (*res)[0].Result {
			docs = append(docs, row.document())
		}
	}
	return docs, nil
}

// Commit runs every delete of the batch inside one SurrealQL transaction.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}

	var q strings.Builder
	params := make(map[string]any, b.Len())
	q.WriteString("BEGIN TRANSACTION;\n")
	for i, ref := range b.Deletes() {
		name := fmt.Sprintf("r%d", i)
		if ref.IsReply() {
			params[name] = replyRecordID(ref.ReplyID)
		} else {
			params[name] = noteRecordID(ref)
		}
		fmt.Fprintf(&q, "DELETE $%s;\n", name)
	}
	q.WriteString("COMMIT TRANSACTION;")

	if _, err := surrealdb.Query[any](ctx, s.db, q.String(), params); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Account operations

func (s *Store) GetAccount(ctx context.Context, email string) (*store.AccountDocument, error) {
	row, err := surrealdb.Select[accountRow](ctx, s.db, models.NewRecordID(accountsTable, email))
	if err = handleNotFoundCBOR(err); err != nil {
		return nil, fmt.Errorf("failed to select account: %w", err)
	}
	if row == nil || row.ID == nil {
		return nil, nil
	}
	doc := row.document()
	return &doc, nil
}

func (s *Store) PutAccount(ctx context.Context, doc store.AccountDocument) error {
	rid := models.NewRecordID(accountsTable, doc.Email)
	if _, err := surrealdb.Upsert[accountRow](ctx, s.db, rid, newAccountRow(doc)); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// clauses renders ORDER BY and LIMIT. Only known timestamp fields are ordered on since
// identifiers cannot be bound as parameters.
func clauses(q store.Query) string {
	var b strings.Builder
	switch q.OrderBy {
	case store.FieldCreatedAt, store.FieldUpdatedAt:
		b.WriteString(" ORDER BY " + q.OrderBy)
		if q.Descending {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT $limit")
	}
	return b.String()
}

func timeOf(v any) time.Time {
	switch t := v.(type) {
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t == nil {
			return time.Time{}
		}
		return t.Time
	}
	return store.NormalizeTime(v)
}
