package supportnotes

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/supportnotes/supportnotes/pkg/models"
)

// Migrate creates the store's tables, indexes or snapshot file.
func (a *App) Migrate(ctx context.Context) error {
	a.logger.Info().Str("backend", a.config.Backend).Msg("Running database migrations...")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.logger.Info().Msg("Migrations completed successfully")
	return nil
}

// AddUser creates the sign-in account for username, or resets its password.
func (a *App) AddUser(ctx context.Context, username, displayName, password string) error {
	session, err := a.accounts.Register(ctx, username, displayName, password)
	if err != nil {
		return err
	}
	a.logger.Info().Str("email", session.Email).Msg("Account saved")
	return nil
}

// ListNotes writes the notes of collection c as a table, most recently updated first.
func (a *App) ListNotes(ctx context.Context, w io.Writer, c models.Collection) error {
	if c == "" {
		c = a.config.DefaultCollection
	}
	if !c.Known() {
		return fmt.Errorf("unknown collection %q", c)
	}
	list := a.NotesService(a.logger).FetchNotes(ctx, c)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%d)\n", c.Title(), len(list))
	fmt.Fprintln(tw, "ID\tSTUDENT\tTEACHER\tUPDATED\tBY")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.StudentName, n.TeacherName, models.FormatDate(n.UpdatedAt), n.CreatorName)
	}
	return tw.Flush()
}
