package driven

import (
	"context"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// PickerClient is the Photos Picker API.
type PickerClient interface {
	CreateSession(ctx context.Context, opts domain.SessionOptions) (*domain.PickingSession, error)
	WaitForSelection(ctx context.Context, sessionID string, opts domain.WaitOptions) (*domain.PickingSession, error)
	AllMediaItems(ctx context.Context, sessionID string) ([]domain.PickedMediaItem, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
