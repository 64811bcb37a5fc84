package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google/photos"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

var (
	searchAlbum      string
	searchFrom       string
	searchTo         string
	searchOn         []string
	searchMediaType  string
	searchInclude    []string
	searchExclude    []string
	searchFeatures   []string
	searchArchived   bool
	searchOldestFirst bool
	searchLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search media items created by this app",
	Long: `Searches the Library API for media items this app uploaded.

Dates are YYYY-MM-DD; YYYY-MM and YYYY match a whole month or year.
--album cannot be combined with other filters.

Examples:
  gphotos search --from 2024-01-01 --to 2024-06-30 --media-type PHOTO
  gphotos search --on 2023-12 --category LANDSCAPES
  gphotos search --album ALBUM_ID -n 20`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

var itemCmd = &cobra.Command{
	Use:   "item [media-item-id]",
	Short: "Show one media item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItem,
}

func init() {
	flags := searchCmd.Flags()
	flags.StringVar(&searchAlbum, "album", "", "only items in this album")
	flags.StringVar(&searchFrom, "from", "", "start of a date range")
	flags.StringVar(&searchTo, "to", "", "end of a date range")
	flags.StringSliceVar(&searchOn, "on", nil, "items taken on these dates")
	flags.StringVar(&searchMediaType, "media-type", "", "ALL_MEDIA, PHOTO or VIDEO")
	flags.StringSliceVar(&searchInclude, "category", nil, "include content categories")
	flags.StringSliceVar(&searchExclude, "exclude-category", nil, "exclude content categories")
	flags.StringSliceVar(&searchFeatures, "feature", nil, "feature filter (e.g. FAVORITES)")
	flags.BoolVar(&searchArchived, "archived", false, "include archived items")
	flags.BoolVar(&searchOldestFirst, "oldest-first", false, "order by creation time, oldest first (needs a date filter)")
	flags.IntVarP(&searchLimit, "limit", "n", 50, "maximum number of items (0 = all)")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(itemCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	if library == nil {
		return notConfigured("library client")
	}

	filter, err := buildSearchFilter()
	if err != nil {
		return err
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	var items []domain.MediaItem
	for item, err := range library.Search(commandContext(cmd), filter) {
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		items = append(items, item)
		if searchLimit > 0 && len(items) >= searchLimit {
			break
		}
	}

	if wantJSON() {
		return printJSON(cmd, items)
	}
	return outputMediaTable(cmd, items)
}

func buildSearchFilter() (photos.SearchFilter, error) {
	filter := photos.SearchFilter{
		AlbumID:            searchAlbum,
		MediaType:          strings.ToUpper(searchMediaType),
		IncludedCategories: upper(searchInclude),
		ExcludedCategories: upper(searchExclude),
		Features:           upper(searchFeatures),
		IncludeArchived:    searchArchived,
	}
	if searchLimit > 0 && searchLimit < photos.MaxSearchPageSize {
		filter.PageSize = searchLimit
	}

	for _, raw := range searchOn {
		d, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.Dates = append(filter.Dates, d)
	}
	if searchFrom != "" || searchTo != "" {
		var r photos.DateRange
		var err error
		if r.Start, err = parseDateOr(searchFrom, photos.Date{Year: 1, Month: 1, Day: 1}); err != nil {
			return filter, err
		}
		if r.End, err = parseDateOr(searchTo, photos.DateOf(time.Now())); err != nil {
			return filter, err
		}
		filter.Ranges = append(filter.Ranges, r)
	}
	if searchOldestFirst {
		filter.OrderBy = "MediaMetadata.creation_time"
	}
	return filter, nil
}

// parseDate accepts YYYY-MM-DD, YYYY-MM and YYYY. Omitted parts are wildcards.
func parseDate(raw string) (photos.Date, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		d := photos.Date{Year: t.Year()}
		if len(layout) >= len("2006-01") {
			d.Month = int(t.Month())
		}
		if len(layout) == len("2006-01-02") {
			d.Day = t.Day()
		}
		return d, nil
	}
	return photos.Date{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD, YYYY-MM or YYYY", domain.ErrInvalidInput, raw)
}

func parseDateOr(raw string, fallback photos.Date) (photos.Date, error) {
	if raw == "" {
		return fallback, nil
	}
	return parseDate(raw)
}

func upper(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToUpper(strings.TrimSpace(v)))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func runItem(cmd *cobra.Command, args []string) error {
	if library == nil {
		return notConfigured("library client")
	}
	item, err := library.GetMediaItem(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd, item)
	}

	cmd.Printf("ID:        %s\n", item.ID)
	cmd.Printf("File:      %s\n", item.Filename)
	cmd.Printf("Type:      %s\n", item.MimeType)
	if item.MediaMetadata != nil {
		cmd.Printf("Created:   %s\n", shortTime(item.MediaMetadata.CreationTime))
		if item.MediaMetadata.Width != "" {
			cmd.Printf("Size:      %sx%s\n", item.MediaMetadata.Width, item.MediaMetadata.Height)
		}
	}
	if item.Description != "" {
		cmd.Printf("Caption:   %s\n", item.Description)
	}
	cmd.Printf("URL:       %s\n", item.ProductURL)
	return nil
}

func outputMediaTable(cmd *cobra.Command, items []domain.MediaItem) error {
	if len(items) == 0 {
		cmd.Println("No media items found.")
		return nil
	}

	for i := range items {
		created := ""
		if items[i].MediaMetadata != nil {
			created = shortTime(items[i].MediaMetadata.CreationTime)
		}
		cmd.Printf("  [%d] %-40s %-12s %-16s %s\n", i+1, truncate(items[i].Filename, 40), items[i].MimeType, created, items[i].ID)
	}
	return nil
}
