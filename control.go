package selector

// Config is a snapshot of the mutable, ready-state-only selector options
// (spec.md §4.6). It is the explicit configuration struct spec.md §9
// prescribes in place of a registered-property system.
type Config struct {
	SyncStreams  bool
	SyncMode     SyncMode
	CacheBuffers bool
}

// GetConfig returns the current configuration.
func (s *Selector) GetConfig() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Config{
		SyncStreams:  s.syncStreams,
		SyncMode:     s.syncMode,
		CacheBuffers: s.cacheBuffers,
	}
}

// SetConfig applies a new configuration. Per spec.md §4.6, sync-streams,
// sync-mode and cache-buffers are mutable only while the selector is in
// the ready state (i.e. not currently flushing/shutting down).
func (s *Selector) SetConfig(c Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushing {
		return ErrNotReadyState
	}
	s.syncStreams = c.SyncStreams
	s.syncMode = c.SyncMode
	s.cacheBuffers = c.CacheBuffers
	return nil
}

// SetAlwaysOK sets the per-input always-ok option (spec.md §4.6).
func (p *InputPort) SetAlwaysOK(on bool) {
	p.sel.mu.Lock()
	defer p.sel.mu.Unlock()
	p.alwaysOK = on
}

// AlwaysOK reads the per-input always-ok option.
func (p *InputPort) AlwaysOK() bool {
	p.sel.mu.Lock()
	defer p.sel.mu.Unlock()
	return p.alwaysOK
}

// TagsSnapshot returns the port's currently merged tags (read-only
// "tags" property, spec.md §4.6).
func (p *InputPort) TagsSnapshot() TagList {
	p.sel.mu.Lock()
	defer p.sel.mu.Unlock()
	return p.tags
}
