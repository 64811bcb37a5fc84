package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
)

var (
	pickMediaTypes   []string
	pickFeatures     []string
	pickTimeout      time.Duration
	pickPollInterval time.Duration
	pickNoBrowser    bool
	pickKeepSession  bool
	pickOut          string
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick media in the Google Photos picker",
	Long: `Creates a Picker session, opens it in the browser and waits until the
selection is done. The picked items are printed, and downloaded when --out
is given. The session is deleted afterwards.

Examples:
  gphotos pick
  gphotos pick --media-type PHOTO --out ./photos
  gphotos pick --no-browser --timeout 10m`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	flags := pickCmd.Flags()
	flags.StringSliceVar(&pickMediaTypes, "media-type", nil, "restrict to PHOTO or VIDEO")
	flags.StringSliceVar(&pickFeatures, "feature", nil, "picker feature filter (e.g. MOTION)")
	flags.DurationVar(&pickTimeout, "timeout", 0, "how long to wait for the selection (default 5m or the server's suggestion)")
	flags.DurationVar(&pickPollInterval, "poll-interval", 0, "session poll interval (default 2s or the server's suggestion)")
	flags.BoolVar(&pickNoBrowser, "no-browser", false, "print the picker URL instead of opening a browser")
	flags.BoolVar(&pickKeepSession, "keep-session", false, "do not delete the session afterwards")
	flags.StringVarP(&pickOut, "out", "o", "", "download the picked items into this directory")
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, _ []string) error {
	if pickerService == nil {
		return notConfigured("picker service")
	}
	ctx := commandContext(cmd)

	result, err := pickerService.Pick(ctx, driving.PickOptions{
		Features:     pickFeatures,
		MediaTypes:   pickMediaTypes,
		Timeout:      pickTimeout,
		PollInterval: pickPollInterval,
		NoBrowser:    pickNoBrowser,
		KeepSession:  pickKeepSession,
		OnURL: func(url string) {
			cmd.PrintErrln("Pick your photos at:")
			cmd.PrintErrln()
			cmd.PrintErrln("  " + url)
			cmd.PrintErrln()
		},
	})
	if err != nil {
		return err
	}

	if pickOut != "" {
		if err := downloadPicked(ctx, cmd, result.Items, pickOut); err != nil {
			return err
		}
	}

	if wantJSON() {
		return printJSON(cmd, result)
	}
	return outputPickedTable(cmd, result.Items)
}

func outputPickedTable(cmd *cobra.Command, items []domain.PickedMediaItem) error {
	if len(items) == 0 {
		cmd.Println("Nothing was picked.")
		return nil
	}

	cmd.Printf("Picked %d items:\n\n", len(items))
	for i, item := range items {
		name, mime := "", ""
		if item.MediaFile != nil {
			name, mime = item.MediaFile.Filename, item.MediaFile.MimeType
		}
		cmd.Printf("  [%d] %-40s %-6s %-12s %s\n", i+1, truncate(name, 40), item.Type, mime, shortTime(item.CreateTime))
	}
	return nil
}

func shortTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
