package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/dittomds/internal/logger"
	"github.com/marmos91/dittomds/internal/session"
)

// Watcher re-reads configPath on every write event and applies the
// resulting session tunables to tun. Reloads that fail validation are
// logged and discarded; the previous tunables remain in effect, since a
// half-bad config file should never be able to wedge a running server
// that a prior good reload already configured.
type Watcher struct {
	v    *viper.Viper
	path string
	tun  *session.Tunables

	fsw *fsnotify.Watcher
}

// NewWatcher starts watching configPath's directory (fsnotify watches
// directories more reliably than single files across editors that
// replace-via-rename) and applies reloads to tun.
func NewWatcher(v *viper.Viper, path string, tun *session.Tunables) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{v: v, path: path, tun: tun, fsw: fsw}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", logger.Err(err))
		}
	}
}

func (w *Watcher) reload() {
	if err := w.v.ReadInConfig(); err != nil {
		logger.Warn("config reload failed to read file, keeping previous tunables", logger.Err(err))
		return
	}

	cfg, err := Unmarshal(w.v)
	if err != nil {
		logger.Warn("config reload failed validation, keeping previous tunables", logger.Err(err))
		return
	}

	tc, err := cfg.Session.ToTunablesConfig(cfg.Server.LoopCount)
	if err != nil {
		logger.Warn("config reload has unparseable session byte sizes, keeping previous tunables", logger.Err(err))
		return
	}

	w.tun.Update(tc)
	logger.Info("session tunables reloaded from config file")
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
