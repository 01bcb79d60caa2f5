package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/kwgraph/internal/keyword"
)

// storedKeyword accepts both the current record shape and the legacy one,
// which carried "value" instead of "weight", a numeric "group" level, and
// camel-cased timestamps.
type storedKeyword struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Weight    float64    `json:"weight"`
	RoleHint  string     `json:"role_hint"`
	Uses      int        `json:"uses"`
	LastUsed  *time.Time `json:"last_used"`
	CreatedAt time.Time  `json:"created_at"`

	Value          float64         `json:"value"`
	Group          json.RawMessage `json:"group"`
	LegacyLastUsed *time.Time      `json:"lastUsed"`
	LegacyCreated  *time.Time      `json:"createdAt"`
}

func (r storedKeyword) keyword() (keyword.Keyword, bool) {
	id := strings.TrimSpace(r.ID)
	name := strings.TrimSpace(r.Name)
	if id == "" && name == "" {
		return keyword.Keyword{}, false
	}
	if id == "" {
		id = name
	}
	if name == "" {
		name = id
	}

	k := keyword.Keyword{
		ID:        id,
		Name:      name,
		Weight:    r.Weight,
		Uses:      r.Uses,
		LastUsed:  r.LastUsed,
		CreatedAt: r.CreatedAt,
	}
	if k.Weight <= 0 {
		k.Weight = r.Value
	}
	if k.Weight <= 0 {
		k.Weight = keyword.DefaultWeight
	}
	if k.LastUsed == nil {
		k.LastUsed = r.LegacyLastUsed
	}
	if k.CreatedAt.IsZero() && r.LegacyCreated != nil {
		k.CreatedAt = *r.LegacyCreated
	}

	hint := r.RoleHint
	if hint == "" && len(r.Group) > 0 {
		hint = groupLevel(r.Group)
	}
	if role, err := keyword.ParseRole(hint); err == nil {
		k.RoleHint = role
	}
	return k, true
}

// groupLevel reads a legacy group that may be a number or a string.
func groupLevel(raw json.RawMessage) string {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.Itoa(int(n))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeKeywords(data []byte) ([]keyword.Keyword, error) {
	var records []storedKeyword
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	out := make([]keyword.Keyword, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		k, ok := r.keyword()
		if !ok || seen[k.ID] {
			continue
		}
		seen[k.ID] = true
		out = append(out, k)
	}
	return out, nil
}

func encodeKeywords(list []keyword.Keyword) ([]byte, error) {
	if list == nil {
		list = []keyword.Keyword{}
	}
	return json.Marshal(list)
}

func decodeRelations(data []byte) ([]keyword.Relation, error) {
	var list []keyword.Relation
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func encodeRelations(list []keyword.Relation) ([]byte, error) {
	if list == nil {
		list = []keyword.Relation{}
	}
	return json.Marshal(list)
}
