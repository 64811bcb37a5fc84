package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google/photos"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

var (
	downloadOut    string
	downloadVideo  bool
	downloadWidth  int
	downloadHeight int
)

var downloadCmd = &cobra.Command{
	Use:   "download [media-item-id]",
	Short: "Download a media item",
	Long: `Downloads the bytes of a media item created by this app.

The item is looked up in the Library API to get a fresh base URL. Videos
need --video; --width and --height request a resized image instead of the
original.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	flags := downloadCmd.Flags()
	flags.StringVarP(&downloadOut, "out", "o", "", "output file or directory (default the item's file name)")
	flags.BoolVar(&downloadVideo, "video", false, "download video bytes")
	flags.IntVar(&downloadWidth, "width", 0, "maximum width of a resized image")
	flags.IntVar(&downloadHeight, "height", 0, "maximum height of a resized image")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	if library == nil || downloader == nil {
		return notConfigured("library client")
	}
	ctx := commandContext(cmd)

	item, err := library.GetMediaItem(ctx, args[0])
	if err != nil {
		return err
	}

	opts := photos.DownloadOptions{Video: downloadVideo, Width: downloadWidth, Height: downloadHeight}
	if !cmd.Flags().Changed("video") && item.IsVideo() {
		opts.Video = true
	}

	path := outputPath(downloadOut, item.Filename, item.ID)
	n, err := downloadTo(ctx, path, item.BaseURL, opts)
	if err != nil {
		return err
	}
	cmd.Printf("Saved %s (%d bytes)\n", path, n)
	return nil
}

// downloadPicked saves every picked item into dir.
// It stops at the first failure; files already written are kept.
func downloadPicked(ctx context.Context, cmd *cobra.Command, items []domain.PickedMediaItem, dir string) error {
	if downloader == nil {
		return notConfigured("downloader")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	for i, item := range items {
		if item.MediaFile == nil || item.MediaFile.BaseURL == "" {
			logger.Warn("picked item %s has no media file, skipping", item.ID)
			continue
		}
		path := filepath.Join(dir, safeName(item.MediaFile.Filename, item.ID))
		n, err := downloadTo(ctx, path, item.MediaFile.BaseURL, photos.OptionsFor(item))
		if err != nil {
			return fmt.Errorf("download %s: %w", item.ID, err)
		}
		cmd.PrintErrf("[%d/%d] %s (%d bytes)\n", i+1, len(items), path, n)
	}
	return nil
}

// downloadTo writes to a temporary file next to path and renames it on success.
func downloadTo(ctx context.Context, path, baseURL string, opts photos.DownloadOptions) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := downloader.Download(ctx, baseURL, tmp, opts)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("save %s: %w", path, err)
	}
	return n, nil
}

// outputPath resolves --out: empty uses the item name, a directory gets the
// item name appended.
func outputPath(out, filename, id string) string {
	name := safeName(filename, id)
	if out == "" {
		return name
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, name)
	}
	if strings.HasSuffix(out, string(os.PathSeparator)) {
		return filepath.Join(out, name)
	}
	return out
}

// safeName returns a file name that cannot escape its directory.
func safeName(filename, id string) string {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || name == "" {
		name = id
	}
	return name
}
