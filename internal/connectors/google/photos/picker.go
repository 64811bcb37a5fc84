package photos

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

// Picker defaults.
const (
	// MaxPickerPageSize is the largest page the Picker API returns.
	MaxPickerPageSize = 100
	// MaxPickerPages bounds AllMediaItems. A session holds at most a few
	// thousand items, so more pages means the listing is not converging.
	MaxPickerPages = 100
	// DefaultWaitTimeout bounds WaitForSelection when neither the caller nor
	// the server supplies a timeout.
	DefaultWaitTimeout = 5 * time.Minute
	// DefaultPollInterval is used when neither the caller nor the server
	// supplies an interval.
	DefaultPollInterval = 2 * time.Second
)

// Picker is a Photos Picker API client.
type Picker struct {
	dispatcher *google.Dispatcher
	maxPages   int
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
}

// NewPicker creates a Picker that sends requests through d.
func NewPicker(d *google.Dispatcher) *Picker {
	return &Picker{
		dispatcher: d,
		maxPages:   MaxPickerPages,
		now:        time.Now,
		sleep:      sleep,
	}
}

// CreateSession starts a picking session. The user picks in a browser at
// the returned session's PickerURI.
func (p *Picker) CreateSession(ctx context.Context, opts domain.SessionOptions) (*domain.PickingSession, error) {
	req := domain.Post("sessions", domain.ScopePickerReadonly)
	if len(opts.Features) > 0 {
		req = req.WithBody("featureFilter", map[string]any{"includedFeatures": opts.Features})
	}
	if len(opts.MediaTypes) > 0 {
		req = req.WithBody("mediaTypeFilter", map[string]any{"mediaTypes": opts.MediaTypes})
	}

	resp, err := p.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating picker session: %w", err)
	}

	var s domain.PickingSession
	if err := resp.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding picker session: %w", err)
	}
	switch {
	case s.ID == "":
		return nil, fmt.Errorf("%w: missing id", ErrInvalidSession)
	case s.PickerURI == "":
		return nil, fmt.Errorf("%w: missing pickerUri", ErrInvalidSession)
	}

	logger.Debug("created picker session %s", shortID(s.ID))
	return &s, nil
}

// GetSession returns the current state of a session.
func (p *Picker) GetSession(ctx context.Context, sessionID string) (*domain.PickingSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}

	resp, err := p.dispatcher.Dispatch(ctx, domain.Get(sessionPath(sessionID), domain.ScopePickerReadonly))
	if err != nil {
		return nil, fmt.Errorf("getting picker session: %w", err)
	}

	var s domain.PickingSession
	if err := resp.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding picker session: %w", err)
	}
	return &s, nil
}

// DeleteSession deletes a session and the picked items it holds.
func (p *Picker) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}

	req := domain.NewRequest(http.MethodDelete, sessionPath(sessionID), domain.ScopePickerReadonly)
	if _, err := p.dispatcher.Dispatch(ctx, req); err != nil {
		return fmt.Errorf("deleting picker session: %w", err)
	}
	logger.Debug("deleted picker session %s", shortID(sessionID))
	return nil
}

// WaitForSelection polls a session until the user finished picking.
//
// Returns ErrSessionExpired if the session expires first and
// ErrSessionTimeout if the timeout elapses first.
func (p *Picker) WaitForSelection(ctx context.Context, sessionID string, opts domain.WaitOptions) (*domain.PickingSession, error) {
	start := p.now()
	var deadline time.Time

	for {
		s, err := p.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if opts.OnPoll != nil {
			opts.OnPoll(s)
		}

		switch {
		case s.IsComplete():
			return s, nil
		case s.IsExpired():
			return nil, ErrSessionExpired
		}

		interval := firstPositive(opts.PollInterval, s.PollingConfig.Interval(), DefaultPollInterval)
		if deadline.IsZero() {
			deadline = start.Add(firstPositive(opts.Timeout, s.PollingConfig.Timeout(), DefaultWaitTimeout))
		}
		if !p.now().Add(interval).Before(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrSessionTimeout, p.now().Sub(start).Round(time.Second))
		}

		if err := p.sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// MediaItems lazily lists the items picked in a session.
// pageSize is capped at MaxPickerPageSize; zero uses the maximum.
func (p *Picker) MediaItems(ctx context.Context, sessionID string, pageSize int) iter.Seq2[domain.PickedMediaItem, error] {
	return flatten[domain.PickedMediaItem](p.dispatcher.Paginate(ctx, p.itemsRequest(sessionID, pageSize)), "mediaItems")
}

// MediaItemsPage fetches one page of picked items, starting after cursor
// when it is not empty.
func (p *Picker) MediaItemsPage(ctx context.Context, sessionID string, pageSize int, cursor string) (*Page[domain.PickedMediaItem], error) {
	return onePage[domain.PickedMediaItem](ctx, p.dispatcher, p.itemsRequest(sessionID, pageSize), cursor, "mediaItems")
}

// AllMediaItems collects every item picked in a session.
//
// The Picker API may keep handing out a page token after the last item;
// an empty page ends the listing. More than MaxPickerPages pages fails with
// domain.ErrPageLimit, returning the items collected so far.
func (p *Picker) AllMediaItems(ctx context.Context, sessionID string) ([]domain.PickedMediaItem, error) {
	var items []domain.PickedMediaItem
	page := 0
	for resp, err := range p.dispatcher.Paginate(ctx, p.itemsRequest(sessionID, MaxPickerPageSize)) {
		if err != nil {
			return items, fmt.Errorf("listing picked media items: %w", err)
		}
		page++

		batch, err := decodeField[domain.PickedMediaItem](resp, "mediaItems")
		if err != nil {
			return items, fmt.Errorf("listing picked media items: %w", err)
		}
		items = append(items, batch...)

		if resp.Cursor == nil {
			break
		}
		if len(batch) == 0 {
			logger.Debug("session %s: empty page with continuation token after %d items", shortID(sessionID), len(items))
			break
		}
		if p.maxPages > 0 && page >= p.maxPages {
			return items, fmt.Errorf("listing picked media items: %w: more than %d pages", domain.ErrPageLimit, p.maxPages)
		}
	}
	return items, nil
}

func (p *Picker) itemsRequest(sessionID string, pageSize int) domain.Request {
	if pageSize <= 0 || pageSize > MaxPickerPageSize {
		pageSize = MaxPickerPageSize
	}
	return domain.Get("mediaItems", domain.ScopePickerReadonly).
		WithQuery("sessionId", sessionID).
		WithQuery("pageSize", strconv.Itoa(pageSize))
}

func sessionPath(id string) string {
	return "sessions/" + url.PathEscape(id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstPositive(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
