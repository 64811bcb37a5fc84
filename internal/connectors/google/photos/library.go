package photos

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"time"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// Library page size limits.
const (
	MaxAlbumPageSize  = 50
	MaxSearchPageSize = 100
)

// Date is a calendar date as the Library API expects it.
// Zero fields act as wildcards.
type Date struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// DateOf returns the calendar date of t.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// DateRange is an inclusive range of dates.
type DateRange struct {
	Start Date `json:"startDate"`
	End   Date `json:"endDate"`
}

// SearchFilter narrows a media item search. AlbumID cannot be combined with
// any other filter.
type SearchFilter struct {
	AlbumID string

	Dates  []Date
	Ranges []DateRange

	IncludedCategories []string
	ExcludedCategories []string

	// MediaType is one of domain.MediaTypeAll, MediaTypePhoto, MediaTypeVideo.
	MediaType string
	Features  []string

	IncludeArchived bool
	// OrderBy is "MediaMetadata.creation_time" or its "desc" variant;
	// only valid with date filters.
	OrderBy string

	PageSize int
}

func (f SearchFilter) hasFilters() bool {
	return len(f.Dates) > 0 || len(f.Ranges) > 0 ||
		len(f.IncludedCategories) > 0 || len(f.ExcludedCategories) > 0 ||
		f.MediaType != "" || len(f.Features) > 0 || f.IncludeArchived
}

// Validate checks the filter combination.
func (f SearchFilter) Validate() error {
	switch {
	case f.AlbumID != "" && f.hasFilters():
		return fmt.Errorf("%w: album id cannot be combined with other filters", ErrInvalidFilter)
	case f.OrderBy != "" && len(f.Dates) == 0 && len(f.Ranges) == 0:
		return fmt.Errorf("%w: ordering requires a date filter", ErrInvalidFilter)
	case f.PageSize < 0:
		return fmt.Errorf("%w: page size must not be negative", ErrInvalidFilter)
	}
	switch f.MediaType {
	case "", domain.MediaTypeAll, domain.MediaTypePhoto, domain.MediaTypeVideo:
	default:
		return fmt.Errorf("%w: unknown media type %q", ErrInvalidFilter, f.MediaType)
	}
	return nil
}

// request builds the mediaItems:search call.
func (f SearchFilter) request() domain.Request {
	pageSize := f.PageSize
	if pageSize <= 0 || pageSize > MaxSearchPageSize {
		pageSize = MaxSearchPageSize
	}
	req := domain.Post("mediaItems:search", domain.ScopeLibraryReadonlyAppCreated).
		WithBody("pageSize", pageSize)

	if f.AlbumID != "" {
		return req.WithBody("albumId", f.AlbumID)
	}

	filters := map[string]any{}
	if len(f.Dates) > 0 || len(f.Ranges) > 0 {
		date := map[string]any{}
		if len(f.Dates) > 0 {
			date["dates"] = f.Dates
		}
		if len(f.Ranges) > 0 {
			date["ranges"] = f.Ranges
		}
		filters["dateFilter"] = date
	}
	if len(f.IncludedCategories) > 0 || len(f.ExcludedCategories) > 0 {
		content := map[string]any{}
		if len(f.IncludedCategories) > 0 {
			content["includedContentCategories"] = f.IncludedCategories
		}
		if len(f.ExcludedCategories) > 0 {
			content["excludedContentCategories"] = f.ExcludedCategories
		}
		filters["contentFilter"] = content
	}
	if f.MediaType != "" {
		filters["mediaTypeFilter"] = map[string]any{"mediaTypes": []string{f.MediaType}}
	}
	if len(f.Features) > 0 {
		filters["featureFilter"] = map[string]any{"includedFeatures": f.Features}
	}
	if f.IncludeArchived {
		filters["includeArchivedMedia"] = true
	}
	if len(filters) > 0 {
		req = req.WithBody("filters", filters)
	}
	if f.OrderBy != "" {
		req = req.WithBody("orderBy", f.OrderBy)
	}
	return req
}

// Library is a Photos Library API client limited to app-created data.
type Library struct {
	dispatcher *google.Dispatcher
}

// NewLibrary creates a Library that sends requests through d.
func NewLibrary(d *google.Dispatcher) *Library {
	return &Library{dispatcher: d}
}

// Albums lazily lists the albums created by this app.
func (l *Library) Albums(ctx context.Context) iter.Seq2[domain.Album, error] {
	return flatten[domain.Album](l.dispatcher.Paginate(ctx, albumsRequest()), "albums")
}

// AlbumsPage fetches one page of albums, starting after cursor when it is not empty.
func (l *Library) AlbumsPage(ctx context.Context, cursor string) (*Page[domain.Album], error) {
	return onePage[domain.Album](ctx, l.dispatcher, albumsRequest(), cursor, "albums")
}

// GetAlbum returns one album.
func (l *Library) GetAlbum(ctx context.Context, id string) (*domain.Album, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: album id is required", domain.ErrInvalidInput)
	}
	var a domain.Album
	if err := l.get(ctx, "albums/"+url.PathEscape(id), &a); err != nil {
		return nil, fmt.Errorf("getting album: %w", err)
	}
	return &a, nil
}

// Search lazily lists media items matching filter.
func (l *Library) Search(ctx context.Context, filter SearchFilter) iter.Seq2[domain.MediaItem, error] {
	if err := filter.Validate(); err != nil {
		return func(yield func(domain.MediaItem, error) bool) {
			yield(domain.MediaItem{}, err)
		}
	}
	return flatten[domain.MediaItem](l.dispatcher.Paginate(ctx, filter.request()), "mediaItems")
}

// SearchPage fetches one page of matching media items, starting after cursor
// when it is not empty.
func (l *Library) SearchPage(ctx context.Context, filter SearchFilter, cursor string) (*Page[domain.MediaItem], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return onePage[domain.MediaItem](ctx, l.dispatcher, filter.request(), cursor, "mediaItems")
}

// GetMediaItem returns one media item. Its BaseURL is valid for about an hour.
func (l *Library) GetMediaItem(ctx context.Context, id string) (*domain.MediaItem, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: media item id is required", domain.ErrInvalidInput)
	}
	var m domain.MediaItem
	if err := l.get(ctx, "mediaItems/"+url.PathEscape(id), &m); err != nil {
		return nil, fmt.Errorf("getting media item: %w", err)
	}
	return &m, nil
}

func (l *Library) get(ctx context.Context, path string, v any) error {
	resp, err := l.dispatcher.Dispatch(ctx, domain.Get(path, domain.ScopeLibraryReadonlyAppCreated))
	if err != nil {
		return err
	}
	return resp.Decode(v)
}

func albumsRequest() domain.Request {
	return domain.Get("albums", domain.ScopeLibraryReadonlyAppCreated).
		WithQuery("pageSize", strconv.Itoa(MaxAlbumPageSize))
}
