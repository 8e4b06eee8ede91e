package models

import "fmt"

// Collection names one of the note collections. A note belongs to exactly one
// collection for its whole life.
type Collection string

const (
	CollectionNormal          Collection = "normalNotes"
	CollectionStoppedStudents Collection = "stoppedStudents"
	CollectionPermanent       Collection = "permanentNotes"
)

// DefaultCollection is used when neither the caller nor the service names one.
const DefaultCollection = CollectionNormal

// Collections lists the known collections in display order.
func Collections() []Collection {
	return []Collection{CollectionNormal, CollectionStoppedStudents, CollectionPermanent}
}

// ParseCollection accepts only the known collection names.
func ParseCollection(s string) (Collection, error) {
	c := Collection(s)
	if !c.Known() {
		return "", fmt.Errorf("unknown collection %q", s)
	}
	return c, nil
}

func (c Collection) Known() bool {
	switch c {
	case CollectionNormal, CollectionStoppedStudents, CollectionPermanent:
		return true
	}
	return false
}

func (c Collection) String() string { return string(c) }

// Title is the heading shown for the collection.
func (c Collection) Title() string {
	switch c {
	case CollectionStoppedStudents:
		return "Stopped Students"
	case CollectionPermanent:
		return "Permanent Notes"
	default:
		return "Normal Notes"
	}
}
