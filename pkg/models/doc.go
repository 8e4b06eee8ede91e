// Package models defines the domain records of the support notes application.
//
// A [Note] lives in one [Collection] ("normalNotes", "stoppedStudents" or
// "permanentNotes") and owns any number of [Reply] records. The records here are the
// in-memory shapes used by the notes service and the HTTP API; each store backend keeps
// its own document types and converts at its boundary.
package models
