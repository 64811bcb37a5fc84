package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

var albumsLimit int

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "List albums created by this app",
	Args:  cobra.NoArgs,
	RunE:  runAlbums,
}

func init() {
	albumsCmd.Flags().IntVarP(&albumsLimit, "limit", "n", 0, "maximum number of albums (0 = all)")
	rootCmd.AddCommand(albumsCmd)
}

func runAlbums(cmd *cobra.Command, _ []string) error {
	if library == nil {
		return notConfigured("library client")
	}

	var albums []domain.Album
	for album, err := range library.Albums(commandContext(cmd)) {
		if err != nil {
			return fmt.Errorf("list albums: %w", err)
		}
		albums = append(albums, album)
		if albumsLimit > 0 && len(albums) >= albumsLimit {
			break
		}
	}

	if wantJSON() {
		return printJSON(cmd, albums)
	}
	if len(albums) == 0 {
		cmd.Println("No albums found.")
		return nil
	}
	for i, a := range albums {
		count := a.MediaItemsCount
		if count == "" {
			count = "0"
		}
		cmd.Printf("  [%d] %-40s %6s items  %s\n", i+1, truncate(a.Title, 40), count, a.ID)
	}
	return nil
}
