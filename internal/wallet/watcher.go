package wallet

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/setavenger/zkwizard/internal/logging"
)

type keystoreWatcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

// watchKeystore calls onChange whenever the keystore file is written,
// replaced or removed. The directory is watched since editors and
// CreateKeystore may replace the file instead of writing in place.
func watchKeystore(path string, onChange func()) (*keystoreWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	kw := &keystoreWatcher{w: w, done: make(chan struct{})}
	target := filepath.Clean(path)

	go func() {
		defer close(kw.done)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.L.Warn().Err(err).Msg("keystore watcher error")
			}
		}
	}()

	return kw, nil
}

func (kw *keystoreWatcher) Close() error {
	err := kw.w.Close()
	<-kw.done
	return err
}
