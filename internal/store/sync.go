package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/kwgraph/internal/bus"
	"github.com/hurttlocker/kwgraph/internal/keyword"
)

// Start watches the medium and republishes changes written by other stores
// as Remote events. It returns once the watch is established; the watch ends
// when ctx is done.
func (s *KeywordStore) Start(ctx context.Context) error {
	changes, err := s.medium.Watch(ctx)
	if err != nil {
		return fmt.Errorf("starting sync: %w", err)
	}
	go func() {
		for c := range changes {
			s.apply(c)
		}
		s.logger.Debug("sync watch stopped")
	}()
	return nil
}

func (s *KeywordStore) apply(c Change) {
	prefix := s.ns + "."
	if !strings.HasPrefix(c.Key, prefix) {
		return
	}
	value := c.Value
	if c.Deleted {
		value = nil
	}
	if !s.observe(c.Key, value) {
		return
	}

	name := strings.TrimPrefix(c.Key, prefix)
	switch name {
	case KeyKeywords:
		var list []keyword.Keyword
		if !c.Deleted {
			var err error
			if list, err = decodeKeywords(value); err != nil {
				s.metrics.StoreReadError(c.Key)
				s.logger.Warn("remote keywords unreadable", "error", err, "revision", c.Revision)
			}
		}
		s.metrics.SyncChange(bus.TopicKeywords)
		s.bus.Publish(bus.Event{Topic: bus.TopicKeywords, Remote: true, Data: list})
	case KeyConnections:
		var list []keyword.Relation
		if !c.Deleted {
			var err error
			if list, err = decodeRelations(value); err != nil {
				s.metrics.StoreReadError(c.Key)
				s.logger.Warn("remote relations unreadable", "error", err, "revision", c.Revision)
			}
		}
		s.metrics.SyncChange(bus.TopicConnections)
		s.bus.Publish(bus.Event{Topic: bus.TopicConnections, Remote: true, Data: list})
	case KeyUsage, KeyAnalytics:
		s.metrics.SyncChange(bus.TopicUsage)
		s.bus.Publish(bus.Event{Topic: bus.TopicUsage, Remote: true, Data: name})
	default:
		s.logger.Debug("ignoring change to unknown key", "key", c.Key)
	}
}
