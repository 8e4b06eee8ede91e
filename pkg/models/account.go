package models

import "time"

// Account is a sign-in identity. PasswordHash is a bcrypt hash and never leaves the server.
type Account struct {
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FormatDate renders a timestamp the way the notes list shows it, e.g.
// "Mar 4, 2025, 3:07 PM".
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006, 3:04 PM")
}
