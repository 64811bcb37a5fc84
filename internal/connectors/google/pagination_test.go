package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

type itemsPage struct {
	Items         []int  `json:"items,omitempty"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// pagedServer serves pages of one item each; page i links to page i+1
// until total pages have been served. The token is read from the query for
// GET and from the JSON body otherwise.
func pagedServer(t *testing.T, total int) (*httptest.Server, *atomic.Int32, *[]string) {
	t.Helper()
	var calls atomic.Int32
	var mu sync.Mutex
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		token := r.URL.Query().Get(domain.PageTokenParam)
		if r.Method == http.MethodPost {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			token, _ = body[domain.PageTokenParam].(string)
		}
		mu.Lock()
		seen = append(seen, token)
		mu.Unlock()

		page := 1
		if token != "" {
			_, _ = fmt.Sscanf(token, "p%d", &page)
		}
		resp := itemsPage{Items: []int{page}}
		if page < total {
			resp.NextPageToken = fmt.Sprintf("p%d", page+1)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, &seen
}

func collect(t *testing.T, seq func(func(*domain.Response, error) bool)) ([]int, error) {
	t.Helper()
	var items []int
	for resp, err := range seq {
		if err != nil {
			return items, err
		}
		var page itemsPage
		require.NoError(t, resp.Decode(&page))
		items = append(items, page.Items...)
	}
	return items, nil
}

func TestPaginate_YieldsEveryPageInOrder(t *testing.T) {
	srv, calls, seen := pagedServer(t, 4)
	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	items, err := collect(t, d.Paginate(context.Background(), domain.Get("mediaItems", "")))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []string{"", "p2", "p3", "p4"}, *seen)
}

func TestPaginate_PostCarriesTokenInBody(t *testing.T) {
	srv, _, seen := pagedServer(t, 3)
	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	req := domain.Post("mediaItems:search", "").WithBody("pageSize", 1)
	items, err := collect(t, d.Paginate(context.Background(), req))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, []string{"", "p2", "p3"}, *seen)
}

func TestPaginate_IsLazy(t *testing.T) {
	srv, calls, _ := pagedServer(t, 10)
	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	seq := d.Paginate(context.Background(), domain.Get("mediaItems", ""))
	assert.Equal(t, int32(0), calls.Load(), "nothing fetched before ranging")

	for resp, err := range seq {
		require.NoError(t, err)
		require.NotNil(t, resp.Cursor)
		break
	}
	assert.Equal(t, int32(1), calls.Load(), "breaking stops further fetches")
}

func TestPaginate_NotRestartable(t *testing.T) {
	srv, _, _ := pagedServer(t, 2)
	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	seq := d.Paginate(context.Background(), domain.Get("mediaItems", ""))
	_, err := collect(t, seq)
	require.NoError(t, err)

	_, err = collect(t, seq)
	assert.ErrorIs(t, err, domain.ErrSequenceConsumed)
}

func TestPaginate_FailureEndsSequence(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(itemsPage{Items: []int{1}, NextPageToken: "p2"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	var pages, failures int
	for resp, err := range d.Paginate(context.Background(), domain.Get("mediaItems", "")) {
		if err != nil {
			failures++
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, domain.ErrBadRequest)
			continue
		}
		pages++
	}
	assert.Equal(t, 1, pages)
	assert.Equal(t, 1, failures)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPaginate_FollowsEveryPageByDefault(t *testing.T) {
	srv, calls, _ := pagedServer(t, 150)
	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	items, err := collect(t, d.Paginate(context.Background(), domain.Get("mediaItems", "")))
	require.NoError(t, err)
	assert.Len(t, items, 150)
	assert.Equal(t, 150, items[149])
	assert.Equal(t, int32(150), calls.Load())
}

func TestPaginate_MaxPagesFails(t *testing.T) {
	srv, calls, _ := pagedServer(t, 1000)
	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider(), func(c *Config) { c.MaxPages = 3 })

	items, err := collect(t, d.Paginate(context.Background(), domain.Get("mediaItems", "")))
	require.ErrorIs(t, err, domain.ErrPageLimit)
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPaginate_MaxPagesNotHitOnLastPage(t *testing.T) {
	srv, _, _ := pagedServer(t, 3)
	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider(), func(c *Config) { c.MaxPages = 3 })

	items, err := collect(t, d.Paginate(context.Background(), domain.Get("mediaItems", "")))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
}

func TestPaginate_FollowsEmptyPageWithToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get(domain.PageTokenParam) {
		case "":
			_ = json.NewEncoder(w).Encode(itemsPage{Items: []int{1}, NextPageToken: "p2"})
		case "p2":
			_, _ = fmt.Fprint(w, `{"nextPageToken":"p3"}`)
		default:
			_ = json.NewEncoder(w).Encode(itemsPage{Items: []int{3}})
		}
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	var pages int
	var items []int
	for resp, err := range d.Paginate(context.Background(), domain.Get("mediaItems", "")) {
		require.NoError(t, err)
		pages++
		var page itemsPage
		require.NoError(t, resp.Decode(&page))
		items = append(items, page.Items...)
	}
	assert.Equal(t, 3, pages)
	assert.Equal(t, []int{1, 3}, items)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPaginate_RepeatedTokenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(itemsPage{Items: []int{1}, NextPageToken: "same"})
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, srv.URL, newFakeProvider())

	items, err := collect(t, d.Paginate(context.Background(), domain.Get("mediaItems", "")))
	require.ErrorIs(t, err, domain.ErrPageRepeated)
	assert.Equal(t, []int{1, 1}, items)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResume_ContinuesFromCursor(t *testing.T) {
	srv, _, seen := pagedServer(t, 3)
	p := newFakeProvider()
	d, _ := newTestDispatcher(t, srv.URL, p)

	var cursor *domain.PageCursor
	for resp, err := range d.Paginate(context.Background(), domain.Get("mediaItems", "")) {
		require.NoError(t, err)
		cursor = resp.Cursor
		break
	}
	require.NotNil(t, cursor)
	assert.Equal(t, "cred-1", cursor.CredentialID)

	// A cursor survives being stored as a string.
	restored, err := domain.DecodeCursor(cursor.Encode())
	require.NoError(t, err)

	items, err := collect(t, d.Resume(context.Background(), restored))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, items)
	assert.Equal(t, []string{"", "p2", "p3"}, *seen)
}

func TestResume_RejectsCursorFromPreviousCredential(t *testing.T) {
	srv, calls, _ := pagedServer(t, 3)
	p := newFakeProvider()
	d, _ := newTestDispatcher(t, srv.URL, p)

	var cursor *domain.PageCursor
	for resp, err := range d.Paginate(context.Background(), domain.Get("mediaItems", "")) {
		require.NoError(t, err)
		cursor = resp.Cursor
		break
	}
	require.NotNil(t, cursor)

	// The user authorised again.
	p.mu.Lock()
	p.credID = "cred-2"
	p.mu.Unlock()

	_, err := collect(t, d.Resume(context.Background(), cursor))
	assert.ErrorIs(t, err, domain.ErrCursorInvalid)
	assert.Equal(t, int32(1), calls.Load())

	_, err = collect(t, d.Resume(context.Background(), nil))
	assert.ErrorIs(t, err, domain.ErrCursorInvalid)
}
