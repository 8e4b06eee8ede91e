package supportnotes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/supportnotes/supportnotes/pkg/models"
	"github.com/supportnotes/supportnotes/pkg/notes"
	"github.com/supportnotes/supportnotes/pkg/store"
)

// maxBodyBytes bounds request bodies; note content is short text.
const maxBodyBytes = 1 << 20

// NotesResponse is the body of a notes listing.
type NotesResponse struct {
	Collection models.Collection `json:"collection"`
	Notes      []models.Note     `json:"notes"`
}

// RepliesResponse is the body of a replies listing.
type RepliesResponse struct {
	NoteID  string         `json:"noteId"`
	Replies []models.Reply `json:"replies"`
}

// ReplyResponse is the body returned for a new reply. Warning is set when the reply was
// stored but its note's updatedAt could not be moved forward.
type ReplyResponse struct {
	Reply   models.Reply `json:"reply"`
	Warning string       `json:"warning,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string             `json:"error"`
	Fields []notes.FieldError `json:"fields,omitempty"`
}

type replyRequest struct {
	Content string `json:"content"`
}

func (a *App) handleListCollections(w http.ResponseWriter, r *http.Request) {
	type collection struct {
		Name  models.Collection `json:"name"`
		Title string            `json:"title"`
	}
	var out []collection
	for _, c := range models.Collections() {
		out = append(out, collection{Name: c, Title: c.Title()})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"collections": out,
		"default":     a.config.DefaultCollection,
	})
}

func (a *App) handleListNotes(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionVar(w, r)
	if !ok {
		return
	}
	svc := a.NotesService(*requestLogger(r))
	list := svc.FetchNotes(r.Context(), c)
	if list == nil {
		list = []models.Note{}
	}
	respondJSON(w, http.StatusOK, NotesResponse{Collection: c, Notes: list})
}

func (a *App) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	a.saveNote(w, r, "")
}

func (a *App) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	a.saveNote(w, r, mux.Vars(r)["id"])
}

func (a *App) saveNote(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := collectionVar(w, r)
	if !ok {
		return
	}
	var in models.NoteInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = id

	svc := a.NotesService(*requestLogger(r))
	note, err := svc.SaveNote(r.Context(), in, c)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	respondJSON(w, status, note)
}

func (a *App) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionVar(w, r)
	if !ok {
		return
	}
	svc := a.NotesService(*requestLogger(r))
	if err := svc.DeleteNote(r.Context(), mux.Vars(r)["id"], c); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleListReplies(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionVar(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	svc := a.NotesService(*requestLogger(r))
	replies := svc.FetchReplies(r.Context(), id, c)
	if replies == nil {
		replies = []models.Reply{}
	}
	respondJSON(w, http.StatusOK, RepliesResponse{NoteID: id, Replies: replies})
}

func (a *App) handleAddReply(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionVar(w, r)
	if !ok {
		return
	}
	var req replyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	svc := a.NotesService(*requestLogger(r))
	reply, err := svc.AddReply(r.Context(), mux.Vars(r)["id"], req.Content, c)
	if err != nil {
		if reply.ID != "" {
			respondJSON(w, http.StatusCreated, ReplyResponse{Reply: reply, Warning: err.Error()})
			return
		}
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ReplyResponse{Reply: reply})
}

func (a *App) handleDeleteReply(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionVar(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	svc := a.NotesService(*requestLogger(r))
	if err := svc.DeleteReply(r.Context(), vars["id"], vars["replyId"], c); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"backend":   a.config.Backend,
		"read_only": a.IsReadOnly(),
		"time":      time.Now().Unix(),
	})
}

// collectionVar parses the {collection} route variable. Unknown names are answered with 404.
func collectionVar(w http.ResponseWriter, r *http.Request) (models.Collection, bool) {
	c, err := models.ParseCollection(mux.Vars(r)["collection"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return c, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// respondServiceError maps notes error kinds to HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *notes.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, notes.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, notes.ErrAuthRequired):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, notes.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrReadOnly):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		requestLogger(r).Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
