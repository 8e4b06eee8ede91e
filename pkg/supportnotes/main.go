package supportnotes

import (
	"context"
)

// Main runs the supportnotes command line with args, which exclude the program name.
// It can be called directly from tests without building the binary; cancelling ctx
// shuts the server down gracefully.
//
//	supportnotes migrate
//	supportnotes adduser --username sara --password secret1
//	SUPPORTNOTES_BACKEND=postgres supportnotes run --port 8090
func Main(ctx context.Context, args []string) error {
	root, err := NewRootCommand()
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
