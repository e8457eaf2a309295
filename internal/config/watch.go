package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events editors emit on a
// single save into one reload.
const watchDebounce = 500 * time.Millisecond

// Watch reloads the config whenever the file at path changes and
// hands the result to onChange. Reload failures are logged and the
// previous config stays in effect. Returns a stop function.
func Watch(path string, onChange func(*Config)) (func(), error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	// Watch the directory, not the file: editors that rename-on-save
	// would otherwise drop the watch after the first write.
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching config dir: %w", err)
	}

	var mu sync.Mutex
	var pending *time.Timer

	reload := func() {
		cfg, err := Load(absPath)
		if err != nil {
			log.Printf("config reload failed: %v", err)
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	}

	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != absPath {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(watchDebounce, reload)
				mu.Unlock()
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Printf("config watch error: %v", err)
			}
		}
	}()

	return func() {
		mu.Lock()
		if pending != nil {
			pending.Stop()
		}
		mu.Unlock()
		fw.Close()
	}, nil
}
