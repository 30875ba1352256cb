package testmap

import (
	"fmt"
	"sort"

	"github.com/mind-engage/testnav/internal/qti"
)

// TestMap is the delivery structure of a running test: parts containing
// sections containing items, plus aggregate progress statistics. One map is
// owned per test session; it is replaced wholesale by "test"-scope payloads
// and merged in place by narrower patches.
type TestMap struct {
	Scope string           `json:"scope,omitempty"` // "test" for full replace
	Parts map[string]*Part `json:"parts"`
	Stats Stats            `json:"stats"`
}

type Part struct {
	ID           string              `json:"id"`
	Position     int                 `json:"position"`
	IsLinear     bool                `json:"isLinear"`
	TimeLimitSec int                 `json:"timeLimitSec,omitempty"`
	Sections     map[string]*Section `json:"sections"`
	Stats        Stats               `json:"stats"`
}

type Section struct {
	ID           string           `json:"id"`
	Label        string           `json:"label"`
	Position     int              `json:"position"`
	TimeLimitSec int              `json:"timeLimitSec,omitempty"`
	Items        map[string]*Item `json:"items"`
	Stats        Stats            `json:"stats"`
}

type Item struct {
	ID                string           `json:"id"`
	URI               string           `json:"uri,omitempty"`
	Position          int              `json:"position"`
	PositionInPart    int              `json:"positionInPart"`
	PositionInSection int              `json:"positionInSection"`
	RemainingAttempts int              `json:"remainingAttempts"` // -1 = unlimited
	TimeLimitSec      int              `json:"timeLimitSec,omitempty"`
	Answered          bool             `json:"answered"`
	Flagged           bool             `json:"flagged"`
	Viewed            bool             `json:"viewed"`
	Informational     bool             `json:"informational"`
	Categories        []string         `json:"categories,omitempty"`
	BranchRules       []qti.BranchRule `json:"branchRules,omitempty"`
}

// Stats are the viewed/answered aggregates shown by progress indicators.
type Stats struct {
	Questions int `json:"questions"`
	Answered  int `json:"answered"`
	Flagged   int `json:"flagged"`
	Viewed    int `json:"viewed"`
	Total     int `json:"total"`
}

// Ref addresses one item in flattened traversal order.
type Ref struct {
	Part     string
	Section  string
	Item     string
	Position int
}

// New returns an empty map ready to be patched.
func New() *TestMap {
	return &TestMap{Parts: map[string]*Part{}}
}

/* ----------------------------- Ordering ----------------------------- */

// Flatten returns the canonical part→section→item depth-first order. The
// slice index of each ref equals its global item position after Reindex.
func (m *TestMap) Flatten() []Ref {
	var out []Ref
	for _, p := range m.sortedParts() {
		for _, s := range p.sortedSections() {
			for _, it := range s.sortedItems() {
				out = append(out, Ref{Part: p.ID, Section: s.ID, Item: it.ID, Position: it.Position})
			}
		}
	}
	return out
}

// Reindex recomputes global and scoped positions after a patch so that
// positions are contiguous and strictly increasing across the flattened
// order. It also rolls aggregate stats up from the items.
func (m *TestMap) Reindex() {
	pos := 0
	m.Stats = Stats{}
	for _, p := range m.sortedParts() {
		p.Stats = Stats{}
		inPart := 0
		for _, s := range p.sortedSections() {
			s.Stats = Stats{}
			inSection := 0
			for _, it := range s.sortedItems() {
				it.Position = pos
				it.PositionInPart = inPart
				it.PositionInSection = inSection
				pos++
				inPart++
				inSection++
				s.Stats.add(it)
			}
			p.Stats.accumulate(s.Stats)
		}
		m.Stats.accumulate(p.Stats)
	}
}

// Size is the number of items in flattened order.
func (m *TestMap) Size() int {
	n := 0
	for _, p := range m.Parts {
		for _, s := range p.Sections {
			n += len(s.Items)
		}
	}
	return n
}

// ItemAt resolves the item at a global position.
func (m *TestMap) ItemAt(position int) (Ref, bool) {
	for _, p := range m.Parts {
		for _, s := range p.Sections {
			for _, it := range s.Items {
				if it.Position == position {
					return Ref{Part: p.ID, Section: s.ID, Item: it.ID, Position: position}, true
				}
			}
		}
	}
	return Ref{}, false
}

// Locate finds an item by identifier, returning its full address.
func (m *TestMap) Locate(itemID string) (Ref, bool) {
	for _, p := range m.Parts {
		for _, s := range p.Sections {
			if it, ok := s.Items[itemID]; ok {
				return Ref{Part: p.ID, Section: s.ID, Item: it.ID, Position: it.Position}, true
			}
		}
	}
	return Ref{}, false
}

// Resolve returns the part, section and item records for a ref.
func (m *TestMap) Resolve(ref Ref) (*Part, *Section, *Item, error) {
	p, ok := m.Parts[ref.Part]
	if !ok {
		return nil, nil, nil, fmt.Errorf("testmap: unknown part %q", ref.Part)
	}
	s, ok := p.Sections[ref.Section]
	if !ok {
		return nil, nil, nil, fmt.Errorf("testmap: unknown section %q in part %q", ref.Section, ref.Part)
	}
	it, ok := s.Items[ref.Item]
	if !ok {
		return nil, nil, nil, fmt.Errorf("testmap: unknown item %q in section %q", ref.Item, ref.Section)
	}
	return p, s, it, nil
}

// Clone returns a deep copy. Maps are mutated in place by stats updates, so
// anything handing one map to several owners must clone first.
func (m *TestMap) Clone() *TestMap {
	out := &TestMap{Scope: m.Scope, Parts: make(map[string]*Part, len(m.Parts)), Stats: m.Stats}
	for id, p := range m.Parts {
		np := &Part{ID: p.ID, Position: p.Position, IsLinear: p.IsLinear, TimeLimitSec: p.TimeLimitSec, Sections: make(map[string]*Section, len(p.Sections)), Stats: p.Stats}
		for sid, s := range p.Sections {
			ns := &Section{ID: s.ID, Label: s.Label, Position: s.Position, TimeLimitSec: s.TimeLimitSec, Items: make(map[string]*Item, len(s.Items)), Stats: s.Stats}
			for iid, it := range s.Items {
				ni := *it
				ni.Categories = append([]string(nil), it.Categories...)
				ni.BranchRules = append([]qti.BranchRule(nil), it.BranchRules...)
				ns.Items[iid] = &ni
			}
			np.Sections[sid] = ns
		}
		out.Parts[id] = np
	}
	return out
}

/* ----------------------------- Helpers ----------------------------- */

func (m *TestMap) sortedParts() []*Part {
	out := make([]*Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (p *Part) sortedSections() []*Section {
	out := make([]*Section, 0, len(p.Sections))
	for _, s := range p.Sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (s *Section) sortedItems() []*Item {
	out := make([]*Item, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (st *Stats) add(it *Item) {
	st.Total++
	if !it.Informational {
		st.Questions++
	}
	if it.Answered {
		st.Answered++
	}
	if it.Flagged {
		st.Flagged++
	}
	if it.Viewed {
		st.Viewed++
	}
}

func (st *Stats) accumulate(other Stats) {
	st.Questions += other.Questions
	st.Answered += other.Answered
	st.Flagged += other.Flagged
	st.Viewed += other.Viewed
	st.Total += other.Total
}
