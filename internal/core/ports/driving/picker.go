package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// PickOptions tunes an interactive pick.
type PickOptions struct {
	Features   []string
	MediaTypes []string
	// Timeout overrides the server's suggested wait.
	Timeout time.Duration
	// PollInterval overrides the server's suggested interval.
	PollInterval time.Duration
	// NoBrowser skips launching a browser; the URL is only reported.
	NoBrowser bool
	// OnURL receives the picker URL once the session exists.
	OnURL func(url string)
	// KeepSession leaves the session on the server after collecting.
	KeepSession bool
}

// PickResult is the outcome of a pick.
type PickResult struct {
	SessionID string                   `json:"session_id"`
	Items     []domain.PickedMediaItem `json:"items"`
}

// PickerService runs Picker sessions end to end.
type PickerService interface {
	// Pick creates a session, waits for the user and returns what was picked.
	Pick(ctx context.Context, opts PickOptions) (*PickResult, error)
}
