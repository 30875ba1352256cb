package testmap

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ScopeTest marks a payload that replaces the whole map.
const ScopeTest = "test"

var errNoParts = errors.New("testmap: payload has no parts")

// Parse decodes a map payload. Full-scope payloads (and payloads with no
// scope, treated as full) are reindexed immediately; patch payloads keep
// their declared positions so Apply can merge them relative to the
// existing map before reindexing.
func Parse(payload []byte) (*TestMap, error) {
	var m TestMap
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("testmap: bad payload: %w", err)
	}
	if len(m.Parts) == 0 {
		return nil, errNoParts
	}
	if m.Scope == "" {
		m.Scope = ScopeTest
	}
	if m.Scope == ScopeTest {
		m.Reindex()
	}
	return &m, nil
}

// Apply merges an incoming payload into the current map and returns the
// authoritative map reference. A "test"-scope payload replaces the map
// wholesale; any other scope patches only the branches it carries,
// preserving untouched parts, sections and items. Callers must use the
// returned map from then on.
func Apply(current *TestMap, incoming *TestMap) *TestMap {
	if current == nil || incoming.Scope == ScopeTest {
		incoming.Reindex()
		return incoming
	}
	for id, np := range incoming.Parts {
		p, ok := current.Parts[id]
		if !ok {
			current.Parts[id] = np
			continue
		}
		p.Position = np.Position
		p.IsLinear = np.IsLinear
		if np.TimeLimitSec != 0 {
			p.TimeLimitSec = np.TimeLimitSec
		}
		for sid, ns := range np.Sections {
			s, ok := p.Sections[sid]
			if !ok {
				p.Sections[sid] = ns
				continue
			}
			s.Position = ns.Position
			s.Label = ns.Label
			if ns.TimeLimitSec != 0 {
				s.TimeLimitSec = ns.TimeLimitSec
			}
			for iid, ni := range ns.Items {
				s.Items[iid] = ni
			}
		}
	}
	current.Reindex()
	return current
}
