package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hurttlocker/kwgraph/internal/bus"
	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/metrics"
)

// DefaultNamespace prefixes every key the store writes.
const DefaultNamespace = "kwgraph"

// Key names under the namespace.
const (
	KeyKeywords    = "keywords"
	KeyConnections = "connections"
	KeyUsage       = "usage"
	KeyAnalytics   = "analytics"
)

var (
	ErrKeywordNotFound  = errors.New("keyword not found")
	ErrDuplicateKeyword = errors.New("keyword already exists")
	ErrInvalidKeyword   = errors.New("invalid keyword")
	ErrSelfRelation     = errors.New("keyword cannot relate to itself")
	// ErrCorrupt marks a stored value that could not be decoded.
	ErrCorrupt = errors.New("corrupt stored value")
)

// Config holds configuration for New.
type Config struct {
	Medium    Medium
	Namespace string
	Bus       *bus.Bus
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// KeywordStore is the single owner of the persisted keyword graph. Every
// mutation is a read-modify-write of whole collections, serialized by a
// mutex, and subscribers are notified only after the write has returned.
type KeywordStore struct {
	medium  Medium
	ns      string
	bus     *bus.Bus
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex

	knownMu sync.Mutex
	known   map[string]string // key -> hash of the last value written or seen
}

// New creates a store on cfg.Medium.
func New(cfg Config) (*KeywordStore, error) {
	if cfg.Medium == nil {
		return nil, errors.New("store: medium is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.New(cfg.Logger)
	}
	return &KeywordStore{
		medium:  cfg.Medium,
		ns:      cfg.Namespace,
		bus:     cfg.Bus,
		logger:  cfg.Logger.With("component", "keyword-store", "namespace", cfg.Namespace),
		metrics: cfg.Metrics,
		known:   make(map[string]string),
	}, nil
}

// Key returns the namespaced medium key for name.
func (s *KeywordStore) Key(name string) string { return s.ns + "." + name }

// Bus returns the bus the store publishes on.
func (s *KeywordStore) Bus() *bus.Bus { return s.bus }

// Subscribe registers fn for change notifications on topic.
func (s *KeywordStore) Subscribe(topic string, fn bus.Handler) func() {
	return s.bus.Subscribe(topic, fn)
}

// Keywords returns the stored keywords. Unreadable data yields an empty list.
func (s *KeywordStore) Keywords(ctx context.Context) []keyword.Keyword {
	list, err := s.readKeywords(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("reading keywords", "error", err)
	}
	if list == nil {
		list = []keyword.Keyword{}
	}
	return list
}

// Relations returns the stored relations. Unreadable data yields an empty list.
func (s *KeywordStore) Relations(ctx context.Context) []keyword.Relation {
	list, err := s.readRelations(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("reading relations", "error", err)
	}
	if list == nil {
		list = []keyword.Relation{}
	}
	return list
}

// Graph returns the stored graph with stale, duplicate and self relations
// removed.
func (s *KeywordStore) Graph(ctx context.Context) keyword.Graph {
	g, dropped := keyword.Graph{Keywords: s.Keywords(ctx), Relations: s.Relations(ctx)}.Clean()
	if dropped > 0 {
		s.logger.Debug("dropped unusable relations", "count", dropped)
	}
	return g
}

// Load returns the graph, seeding the default graph first when nothing has
// been stored yet or the stored keywords are unreadable.
func (s *KeywordStore) Load(ctx context.Context) (keyword.Graph, error) {
	s.mu.Lock()
	_, err := s.readKeywords(ctx)
	switch {
	case err == nil:
		s.mu.Unlock()
		return s.Graph(ctx), nil
	case errors.Is(err, ErrNotFound):
		s.logger.Info("empty storage, seeding default graph")
	case errors.Is(err, ErrCorrupt):
		s.logger.Warn("stored keywords unreadable, reseeding default graph", "error", err)
	default:
		s.mu.Unlock()
		return keyword.Graph{}, err
	}
	seed := keyword.Seed()
	err = s.writeGraph(ctx, seed, true, true)
	s.mu.Unlock()
	if err != nil {
		return keyword.Graph{}, err
	}
	s.notify(false, true, true, seed)
	return seed, nil
}

// Seed replaces the stored graph with the embedded default graph.
func (s *KeywordStore) Seed(ctx context.Context) error {
	return s.Replace(ctx, keyword.Seed())
}

// Replace overwrites the stored graph with g.
func (s *KeywordStore) Replace(ctx context.Context, g keyword.Graph) error {
	_, err := s.mutate(ctx, func(cur *keyword.Graph) (bool, bool, error) {
		*cur = g
		return true, true, nil
	})
	return err
}

// SaveKeywords overwrites the keyword collection.
func (s *KeywordStore) SaveKeywords(ctx context.Context, list []keyword.Keyword) error {
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		g.Keywords = list
		return true, false, nil
	})
	return err
}

// SaveRelations overwrites the relation collection.
func (s *KeywordStore) SaveRelations(ctx context.Context, list []keyword.Relation) error {
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		g.Relations = list
		return false, true, nil
	})
	return err
}

// AddKeyword creates a keyword. Names are unique case-insensitively.
func (s *KeywordStore) AddKeyword(ctx context.Context, name string, weight float64) (keyword.Keyword, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return keyword.Keyword{}, fmt.Errorf("%w: name is required", ErrInvalidKeyword)
	}
	k := keyword.New(name, weight)
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		if _, dup := g.FindByName(name); dup {
			return false, false, fmt.Errorf("%w: %q", ErrDuplicateKeyword, name)
		}
		g.Keywords = append(g.Keywords, k)
		return true, false, nil
	})
	if err != nil {
		return keyword.Keyword{}, err
	}
	return k, nil
}

// RemoveKeyword deletes a keyword by id or name together with every
// relation touching it.
func (s *KeywordStore) RemoveKeyword(ctx context.Context, ref string) (keyword.Keyword, error) {
	var removed keyword.Keyword
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		k, ok := g.Resolve(ref)
		if !ok {
			return false, false, fmt.Errorf("%w: %q", ErrKeywordNotFound, ref)
		}
		removed = k
		before := len(g.Relations)
		*g = g.Without(k.ID)
		return true, len(g.Relations) != before, nil
	})
	return removed, err
}

// UpdateKeyword applies fn to the keyword identified by ref and saves it.
func (s *KeywordStore) UpdateKeyword(ctx context.Context, ref string, fn func(*keyword.Keyword) error) (keyword.Keyword, error) {
	var updated keyword.Keyword
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		k, ok := g.Resolve(ref)
		if !ok {
			return false, false, fmt.Errorf("%w: %q", ErrKeywordNotFound, ref)
		}
		i := g.Index()[k.ID]
		if err := fn(&g.Keywords[i]); err != nil {
			return false, false, err
		}
		g.Keywords[i].ID = k.ID
		updated = g.Keywords[i]
		return true, false, nil
	})
	return updated, err
}

// RelabelKeyword renames a keyword. The id is unchanged, so relations
// survive the rename.
func (s *KeywordStore) RelabelKeyword(ctx context.Context, ref, name string) (keyword.Keyword, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return keyword.Keyword{}, fmt.Errorf("%w: name is required", ErrInvalidKeyword)
	}
	var updated keyword.Keyword
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		k, ok := g.Resolve(ref)
		if !ok {
			return false, false, fmt.Errorf("%w: %q", ErrKeywordNotFound, ref)
		}
		if other, dup := g.FindByName(name); dup && other.ID != k.ID {
			return false, false, fmt.Errorf("%w: %q", ErrDuplicateKeyword, name)
		}
		i := g.Index()[k.ID]
		g.Keywords[i].Name = name
		updated = g.Keywords[i]
		return true, false, nil
	})
	return updated, err
}

// SetRoleHint stores an administrator role override.
func (s *KeywordStore) SetRoleHint(ctx context.Context, ref string, role keyword.Role) (keyword.Keyword, error) {
	return s.UpdateKeyword(ctx, ref, func(k *keyword.Keyword) error {
		k.RoleHint = role
		return nil
	})
}

// SetWeight changes a keyword's weight.
func (s *KeywordStore) SetWeight(ctx context.Context, ref string, weight float64) (keyword.Keyword, error) {
	if weight <= 0 {
		return keyword.Keyword{}, fmt.Errorf("%w: weight must be positive", ErrInvalidKeyword)
	}
	return s.UpdateKeyword(ctx, ref, func(k *keyword.Keyword) error {
		k.Weight = weight
		return nil
	})
}

// AddRelation relates two keywords given by id or name. It reports false
// when the relation already exists in either direction.
func (s *KeywordStore) AddRelation(ctx context.Context, a, b string) (bool, error) {
	added := false
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		src, dst, err := resolvePair(g, a, b)
		if err != nil {
			return false, false, err
		}
		if g.HasRelation(src.ID, dst.ID) {
			return false, false, nil
		}
		g.Relations = append(g.Relations, keyword.Relation{Source: src.ID, Target: dst.ID})
		added = true
		return false, true, nil
	})
	return added, err
}

// RemoveRelation deletes the relation between a and b in either direction.
func (s *KeywordStore) RemoveRelation(ctx context.Context, a, b string) (bool, error) {
	removed := false
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		src, dst, err := resolvePair(g, a, b)
		if err != nil {
			return false, false, err
		}
		want := keyword.Relation{Source: src.ID, Target: dst.ID}.Key()
		kept := g.Relations[:0]
		for _, r := range g.Relations {
			if r.Key() == want {
				removed = true
				continue
			}
			kept = append(kept, r)
		}
		g.Relations = kept
		return false, removed, nil
	})
	return removed, err
}

// Clear empties both collections in one batch.
func (s *KeywordStore) Clear(ctx context.Context) error {
	_, err := s.mutate(ctx, func(g *keyword.Graph) (bool, bool, error) {
		*g = keyword.Graph{Keywords: []keyword.Keyword{}, Relations: []keyword.Relation{}}
		return true, true, nil
	})
	return err
}

// GetAux reads an auxiliary key such as usage or analytics.
func (s *KeywordStore) GetAux(ctx context.Context, name string) ([]byte, error) {
	return s.medium.Get(ctx, s.Key(name))
}

// PutAux writes an auxiliary key and publishes on the usage topic.
func (s *KeywordStore) PutAux(ctx context.Context, name string, data []byte) error {
	key := s.Key(name)
	s.remember(key, data)
	err := s.medium.Put(ctx, key, data)
	s.metrics.StoreWrite(key, err)
	if err != nil {
		return err
	}
	s.bus.Publish(bus.Event{Topic: bus.TopicUsage, Data: name})
	return nil
}

func resolvePair(g *keyword.Graph, a, b string) (keyword.Keyword, keyword.Keyword, error) {
	src, ok := g.Resolve(a)
	if !ok {
		return src, src, fmt.Errorf("%w: %q", ErrKeywordNotFound, a)
	}
	dst, ok := g.Resolve(b)
	if !ok {
		return src, dst, fmt.Errorf("%w: %q", ErrKeywordNotFound, b)
	}
	if src.ID == dst.ID {
		return src, dst, ErrSelfRelation
	}
	return src, dst, nil
}

// mutate runs fn on the current graph under the write lock, persists the
// collections fn reports as changed, then notifies subscribers.
func (s *KeywordStore) mutate(ctx context.Context, fn func(*keyword.Graph) (kw, rel bool, err error)) (keyword.Graph, error) {
	s.mu.Lock()
	g := keyword.Graph{Keywords: s.Keywords(ctx), Relations: s.Relations(ctx)}
	kw, rel, err := fn(&g)
	if err == nil && (kw || rel) {
		err = s.writeGraph(ctx, g, kw, rel)
	}
	s.mu.Unlock()
	if err != nil {
		return keyword.Graph{}, err
	}
	s.notify(false, kw, rel, g)
	return g, nil
}

// writeGraph persists the changed collections. Relations are written before
// keywords so that a reader between the two writes of a non-transactional
// medium never sees a keyword removed while its relations remain.
func (s *KeywordStore) writeGraph(ctx context.Context, g keyword.Graph, kw, rel bool) error {
	var entries []Entry
	if rel {
		cleaned, _ := keyword.Graph{Keywords: g.Keywords, Relations: g.Relations}.Clean()
		data, err := encodeRelations(cleaned.Relations)
		if err != nil {
			return fmt.Errorf("encoding relations: %w", err)
		}
		entries = append(entries, Entry{Key: s.Key(KeyConnections), Value: data})
	}
	if kw {
		data, err := encodeKeywords(g.Keywords)
		if err != nil {
			return fmt.Errorf("encoding keywords: %w", err)
		}
		entries = append(entries, Entry{Key: s.Key(KeyKeywords), Value: data})
	}
	for _, e := range entries {
		s.remember(e.Key, e.Value)
	}
	err := s.medium.PutBatch(ctx, entries)
	for _, e := range entries {
		s.metrics.StoreWrite(e.Key, err)
	}
	if err != nil {
		return fmt.Errorf("saving graph: %w", err)
	}
	return nil
}

func (s *KeywordStore) notify(remote, kw, rel bool, g keyword.Graph) {
	if rel {
		s.bus.Publish(bus.Event{Topic: bus.TopicConnections, Remote: remote, Data: g.Relations})
	}
	if kw {
		s.bus.Publish(bus.Event{Topic: bus.TopicKeywords, Remote: remote, Data: g.Keywords})
	}
}

func (s *KeywordStore) readKeywords(ctx context.Context) ([]keyword.Keyword, error) {
	key := s.Key(KeyKeywords)
	data, err := s.medium.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	list, err := decodeKeywords(data)
	if err != nil {
		s.metrics.StoreReadError(key)
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return list, nil
}

func (s *KeywordStore) readRelations(ctx context.Context) ([]keyword.Relation, error) {
	key := s.Key(KeyConnections)
	data, err := s.medium.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	list, err := decodeRelations(data)
	if err != nil {
		s.metrics.StoreReadError(key)
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return list, nil
}

func (s *KeywordStore) remember(key string, value []byte) {
	s.knownMu.Lock()
	s.known[key] = hashValue(key, value)
	s.knownMu.Unlock()
}

// observe records a value seen in the medium and reports whether it differs
// from the last value this store wrote or saw for the key.
func (s *KeywordStore) observe(key string, value []byte) bool {
	h := hashValue(key, value)
	s.knownMu.Lock()
	defer s.knownMu.Unlock()
	if s.known[key] == h {
		return false
	}
	s.known[key] = h
	return true
}
