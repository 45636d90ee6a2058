package app

import (
	"context"
	"sync"

	"infradesk/internal/service"
)

// switchEmitter forwards to an EventEmitter that can be replaced after the
// services are built, e.g. once the MCP server exists.
type switchEmitter struct {
	mu     sync.RWMutex
	target service.EventEmitter
}

func (s *switchEmitter) set(e service.EventEmitter) {
	s.mu.Lock()
	s.target = e
	s.mu.Unlock()
}

func (s *switchEmitter) Emit(ctx context.Context, event string, data any) {
	s.mu.RLock()
	t := s.target
	s.mu.RUnlock()
	if t != nil {
		t.Emit(ctx, event, data)
	}
}
