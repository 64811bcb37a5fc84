package services

import (
	"context"
	"time"

	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driven"
	"github.com/custodia-labs/gphotos-cli/internal/core/ports/driving"
	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

// Ensure PickerService implements the interface.
var _ driving.PickerService = (*PickerService)(nil)

// cleanupTimeout bounds session deletion after the caller's context ended.
const cleanupTimeout = 10 * time.Second

// PickerService runs Picker sessions end to end.
type PickerService struct {
	client      driven.PickerClient
	openBrowser BrowserOpener
}

// NewPickerService creates a PickerService.
func NewPickerService(client driven.PickerClient, openBrowser BrowserOpener) *PickerService {
	return &PickerService{client: client, openBrowser: openBrowser}
}

// Pick creates a session, lets the user pick in the browser, waits for the
// selection and collects the picked items. The session is deleted afterwards
// unless KeepSession is set, also when picking fails or is cancelled.
func (s *PickerService) Pick(ctx context.Context, opts driving.PickOptions) (*driving.PickResult, error) {
	session, err := s.client.CreateSession(ctx, domain.SessionOptions{
		Features:   opts.Features,
		MediaTypes: opts.MediaTypes,
	})
	if err != nil {
		return nil, err
	}

	if !opts.KeepSession {
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			defer cancel()
			if derr := s.client.DeleteSession(cleanupCtx, session.ID); derr != nil {
				logger.Warn("could not delete picker session %s: %v", session.ID, derr)
			}
		}()
	}

	if opts.OnURL != nil {
		opts.OnURL(session.PickerURI)
	}
	if !opts.NoBrowser && s.openBrowser != nil {
		if err := s.openBrowser(session.PickerURI); err != nil {
			logger.Warn("could not open browser: %v", err)
		}
	}

	logger.Section("Waiting for selection")
	polls := 0
	_, err = s.client.WaitForSelection(ctx, session.ID, domain.WaitOptions{
		Timeout:      opts.Timeout,
		PollInterval: opts.PollInterval,
		OnPoll: func(*domain.PickingSession) {
			polls++
			logger.Debug("polled session %s (%d)", session.ID, polls)
		},
	})
	if err != nil {
		return nil, err
	}

	items, err := s.client.AllMediaItems(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	logger.Info("picked %d media items", len(items))

	return &driving.PickResult{SessionID: session.ID, Items: items}, nil
}
