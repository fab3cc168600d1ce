package workspace

import (
	"log"
	"time"

	"prodmon/config"
	"prodmon/kvstore"
)

// Autosaver periodically snapshots the editing form into the key-value
// draft slot so a browser crash or restart loses at most one interval
// of typing.
type Autosaver struct {
	cfg    config.AutosaveConfig
	ws     *Workspace
	kv     *kvstore.Store
	ticker *time.Ticker
	quit   chan struct{}
}

// NewAutosaver creates an autosaver for the given workspace.
func NewAutosaver(cfg config.AutosaveConfig, ws *Workspace, kv *kvstore.Store) *Autosaver {
	return &Autosaver{
		cfg:  cfg,
		ws:   ws,
		kv:   kv,
		quit: make(chan struct{}),
	}
}

// Start begins the autosave loop.
func (a *Autosaver) Start() {
	if !a.cfg.Enabled {
		log.Println("Draft autosave is disabled by config.")
		return
	}
	if a.kv == nil {
		log.Println("Draft autosave unavailable: no key-value store.")
		return
	}

	interval := time.Duration(a.cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	log.Printf("Starting draft autosave. Interval: %v\n", interval)
	a.ticker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-a.ticker.C:
				a.RunOnce()
			case <-a.quit:
				a.ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the autosave loop.
func (a *Autosaver) Stop() {
	if a.ticker != nil {
		close(a.quit)
	}
}

// RunOnce saves the draft immediately.
func (a *Autosaver) RunOnce() {
	saved, err := a.ws.SaveDraft(a.kv)
	if err != nil {
		log.Printf("[Autosave] Draft save failed: %v\n", err)
		return
	}
	if saved {
		log.Println("[Autosave] Draft saved.")
	}
}
