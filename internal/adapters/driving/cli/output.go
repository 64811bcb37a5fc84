package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google/photos"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// libraryClient is the part of photos.Library the commands use.
type libraryClient interface {
	Albums(ctx context.Context) iter.Seq2[domain.Album, error]
	Search(ctx context.Context, filter photos.SearchFilter) iter.Seq2[domain.MediaItem, error]
	GetMediaItem(ctx context.Context, id string) (*domain.MediaItem, error)
}

// mediaDownloader is the part of photos.Downloader the commands use.
type mediaDownloader interface {
	Download(ctx context.Context, baseURL string, w io.Writer, opts photos.DownloadOptions) (int64, error)
}

// isTerminal reports whether stdout is a terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// wantJSON is true with --json or when stdout is piped.
func wantJSON() bool {
	return jsonOutput || !isTerminal()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
