package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// Page is one page of a listing plus the cursor to resume after it.
type Page[T any] struct {
	Items []T
	// Cursor is the encoded cursor for the next page, empty on the last page.
	Cursor string
}

// flatten decodes field from every page and yields its elements.
func flatten[T any](pages iter.Seq2[*domain.Response, error], field string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for resp, err := range pages {
			if err != nil {
				yield(zero, err)
				return
			}
			items, err := decodeField[T](resp, field)
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// onePage fetches a single page of req, or of the listing cursor points into.
func onePage[T any](ctx context.Context, d *google.Dispatcher, req domain.Request, cursor, field string) (*Page[T], error) {
	var seq iter.Seq2[*domain.Response, error]
	if cursor == "" {
		seq = d.Paginate(ctx, req)
	} else {
		c, err := domain.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		if c.Request.Path() != req.Path() {
			return nil, fmt.Errorf("%w: cursor belongs to %s", domain.ErrCursorInvalid, c.Request.Path())
		}
		seq = d.Resume(ctx, c)
	}

	for resp, err := range seq {
		if err != nil {
			return nil, err
		}
		items, err := decodeField[T](resp, field)
		if err != nil {
			return nil, err
		}
		return &Page[T]{Items: items, Cursor: resp.Cursor.Encode()}, nil
	}
	return &Page[T]{}, nil
}

func decodeField[T any](resp *domain.Response, field string) ([]T, error) {
	var body map[string]json.RawMessage
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	raw, ok := body[field]
	if !ok {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", field, err)
	}
	return items, nil
}
