package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/gphotos-cli/internal/logger"
)

// Watch reports credentials removed from the token directory by another
// process or by hand. It blocks until ctx is cancelled.
//
// A rename onto the target (how Save replaces a file) arrives as a Create
// and is not reported; only Remove, and a Rename away from the target, are.
func (s *CredentialStore) Watch(ctx context.Context, onRemove func(identity string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			identity, ok := identityFromFile(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			// A rename may be another writer replacing the file; only report
			// it if the credential is really gone.
			if _, err := os.Stat(ev.Name); err == nil {
				continue
			}
			logger.Debug("credential file removed: %s", ev.Name)
			onRemove(identity)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("credential watcher overflow, events may be lost")
				continue
			}
			logger.Warn("credential watcher: %v", err)
		}
	}
}
