package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// fakeClock advances only when the picker sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newTestPicker(t *testing.T, h http.HandlerFunc) (*Picker, *fakeClock) {
	t.Helper()
	srv := newServer(t, h)
	p := NewPicker(newDispatcher(t, srv.URL+"/v1/", google.ServicePicker))
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p, clock
}

func TestPicker_CreateSession(t *testing.T) {
	var gotBody map[string]any
	var gotPath, gotMethod string
	p, _ := newTestPicker(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"id":"sess-123456789","pickerUri":"https://photos.google.com/picker/x",
			"pollingConfig":{"pollInterval":"5s","timeoutIn":"1800s"},"mediaItemsSet":false}`)
	})

	s, err := p.CreateSession(context.Background(), domain.SessionOptions{
		Features:   []string{"FAVORITES"},
		MediaTypes: []string{domain.MediaTypePhoto},
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-123456789", s.ID)
	assert.Equal(t, "https://photos.google.com/picker/x", s.PickerURI)
	assert.Equal(t, 5*time.Second, s.PollingConfig.Interval())
	assert.Equal(t, 30*time.Minute, s.PollingConfig.Timeout())

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/sessions", gotPath)
	assert.Equal(t, map[string]any{"includedFeatures": []any{"FAVORITES"}}, gotBody["featureFilter"])
	assert.Equal(t, map[string]any{"mediaTypes": []any{"PHOTO"}}, gotBody["mediaTypeFilter"])
}

func TestPicker_CreateSession_InvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"pickerUri":"https://photos.google.com/picker/x"}`},
		{"missing picker uri", `{"id":"s1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := p.CreateSession(context.Background(), domain.SessionOptions{})
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestPicker_GetAndDeleteSession(t *testing.T) {
	var deleted atomic.Bool
	p, _ := newTestPicker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/s1", r.URL.Path)
		if r.Method == http.MethodDelete {
			deleted.Store(true)
			_, _ = io.WriteString(w, `{}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u","mediaItemsSet":true}`)
	})

	s, err := p.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, s.IsComplete())

	require.NoError(t, p.DeleteSession(context.Background(), "s1"))
	assert.True(t, deleted.Load())

	_, err = p.GetSession(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, p.DeleteSession(context.Background(), ""), domain.ErrInvalidInput)
}

func TestPicker_DeleteSession_NotFound(t *testing.T) {
	p, _ := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Session not found"}}`)
	})
	err := p.DeleteSession(context.Background(), "gone")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestPicker_WaitForSelection_Completes(t *testing.T) {
	var polls atomic.Int32
	p, clock := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u","status":"SESSION_STATUS_ACTIVE"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u","mediaItemsSet":true}`)
	})

	var seen int
	s, err := p.WaitForSelection(context.Background(), "s1", domain.WaitOptions{
		PollInterval: time.Second,
		OnPoll:       func(*domain.PickingSession) { seen++ },
	})
	require.NoError(t, err)
	assert.True(t, s.MediaItemsSet)
	assert.Equal(t, 3, seen)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.sleeps)
}

func TestPicker_WaitForSelection_CompleteStatus(t *testing.T) {
	p, _ := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u","status":"SESSION_STATUS_COMPLETE"}`)
	})
	s, err := p.WaitForSelection(context.Background(), "s1", domain.WaitOptions{})
	require.NoError(t, err)
	assert.True(t, s.IsComplete())
}

func TestPicker_WaitForSelection_Expired(t *testing.T) {
	p, _ := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u","status":"SESSION_STATUS_EXPIRED"}`)
	})
	_, err := p.WaitForSelection(context.Background(), "s1", domain.WaitOptions{})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestPicker_WaitForSelection_Timeout(t *testing.T) {
	var polls atomic.Int32
	p, _ := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		polls.Add(1)
		_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u","status":"SESSION_STATUS_ACTIVE"}`)
	})

	_, err := p.WaitForSelection(context.Background(), "s1", domain.WaitOptions{
		Timeout:      10 * time.Second,
		PollInterval: 2 * time.Second,
	})
	assert.ErrorIs(t, err, ErrSessionTimeout)
	assert.Equal(t, int32(5), polls.Load())
}

func TestPicker_WaitForSelection_UsesServerPollingConfig(t *testing.T) {
	var polls atomic.Int32
	p, clock := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		polls.Add(1)
		_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u",
			"pollingConfig":{"pollInterval":"3s","timeoutIn":"7s"}}`)
	})

	_, err := p.WaitForSelection(context.Background(), "s1", domain.WaitOptions{})
	assert.ErrorIs(t, err, ErrSessionTimeout)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, clock.sleeps)
}

func TestPicker_WaitForSelection_Canceled(t *testing.T) {
	p, _ := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":"s1","pickerUri":"u"}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	_, err := p.WaitForSelection(ctx, "s1", domain.WaitOptions{OnPoll: func(*domain.PickingSession) { cancel() }})
	assert.ErrorIs(t, err, context.Canceled)
}

// itemsHandler serves pages of picked items with two items per page.
func itemsHandler(t *testing.T, pages int, gotPageSize *string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mediaItems", r.URL.Path)
		assert.Equal(t, "s1", r.URL.Query().Get("sessionId"))
		if gotPageSize != nil {
			*gotPageSize = r.URL.Query().Get("pageSize")
		}

		page := 1
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			_, _ = fmt.Sscanf(tok, "p%d", &page)
		}
		body := map[string]any{
			"mediaItems": []map[string]any{
				{"id": fmt.Sprintf("m%d-a", page), "type": "PHOTO", "mediaFile": map[string]any{"baseUrl": "https://lh3/x", "filename": "a.jpg"}},
				{"id": fmt.Sprintf("m%d-b", page), "type": "VIDEO"},
			},
		}
		if page < pages {
			body["nextPageToken"] = fmt.Sprintf("p%d", page+1)
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestPicker_AllMediaItems(t *testing.T) {
	var pageSize string
	p, _ := newTestPicker(t, itemsHandler(t, 3, &pageSize))

	items, err := p.AllMediaItems(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, items, 6)
	assert.Equal(t, "m1-a", items[0].ID)
	assert.Equal(t, "m3-b", items[5].ID)
	assert.Equal(t, "a.jpg", items[0].MediaFile.Filename)
	assert.Equal(t, "100", pageSize)
}

func TestPicker_AllMediaItems_StopsOnEmptyPage(t *testing.T) {
	var calls atomic.Int32
	p, _ := newTestPicker(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = io.WriteString(w, `{"mediaItems":[{"id":"m1","type":"PHOTO"}],"nextPageToken":"p2"}`)
			return
		}
		_, _ = io.WriteString(w, `{"nextPageToken":"p3"}`)
	})

	items, err := p.AllMediaItems(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "m1", items[0].ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPicker_AllMediaItems_PageLimit(t *testing.T) {
	p, _ := newTestPicker(t, itemsHandler(t, 10, nil))
	p.maxPages = 3

	items, err := p.AllMediaItems(context.Background(), "s1")
	require.ErrorIs(t, err, domain.ErrPageLimit)
	assert.Len(t, items, 6)
}

func TestPicker_AllMediaItems_ExactlyMaxPages(t *testing.T) {
	p, _ := newTestPicker(t, itemsHandler(t, 3, nil))
	p.maxPages = 3

	items, err := p.AllMediaItems(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, items, 6)
}

func TestPicker_MediaItems_CapsPageSize(t *testing.T) {
	var pageSize string
	p, _ := newTestPicker(t, itemsHandler(t, 1, &pageSize))

	var n int
	for _, err := range p.MediaItems(context.Background(), "s1", 500) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, "100", pageSize)

	for _, err := range p.MediaItems(context.Background(), "s1", 25) {
		require.NoError(t, err)
	}
	assert.Equal(t, "25", pageSize)
}

func TestPicker_MediaItemsPage_Cursor(t *testing.T) {
	p, _ := newTestPicker(t, itemsHandler(t, 3, nil))

	first, err := p.MediaItemsPage(context.Background(), "s1", 2, "")
	require.NoError(t, err)
	assert.Equal(t, "m1-a", first.Items[0].ID)
	require.NotEmpty(t, first.Cursor)

	second, err := p.MediaItemsPage(context.Background(), "s1", 2, first.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "m2-a", second.Items[0].ID)

	third, err := p.MediaItemsPage(context.Background(), "s1", 2, second.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "m3-b", third.Items[1].ID)
	assert.Empty(t, third.Cursor)

	_, err = p.MediaItemsPage(context.Background(), "s1", 2, "not-a-cursor")
	assert.ErrorIs(t, err, domain.ErrCursorInvalid)
}

func TestPicker_MediaItems_Failure(t *testing.T) {
	p, _ := newTestPicker(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Session not ready"}}`)
	})
	items, err := p.AllMediaItems(context.Background(), "s1")
	assert.Empty(t, items)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
