package testmap

import "fmt"

// MarkViewed flags an item as presented and refreshes the aggregates.
func (m *TestMap) MarkViewed(itemID string) error {
	return m.mutate(itemID, func(it *Item) { it.Viewed = true })
}

// MarkAnswered flags an item as answered (and viewed) and refreshes the
// aggregates.
func (m *TestMap) MarkAnswered(itemID string) error {
	return m.mutate(itemID, func(it *Item) {
		it.Viewed = true
		it.Answered = true
	})
}

// MarkFlagged toggles the review flag on an item.
func (m *TestMap) MarkFlagged(itemID string, flagged bool) error {
	return m.mutate(itemID, func(it *Item) { it.Flagged = flagged })
}

func (m *TestMap) mutate(itemID string, fn func(*Item)) error {
	ref, ok := m.Locate(itemID)
	if !ok {
		return fmt.Errorf("testmap: unknown item %q", itemID)
	}
	_, _, it, err := m.Resolve(ref)
	if err != nil {
		return err
	}
	fn(it)
	m.rollup()
	return nil
}

// rollup recomputes stats without touching positions.
func (m *TestMap) rollup() {
	m.Stats = Stats{}
	for _, p := range m.Parts {
		p.Stats = Stats{}
		for _, s := range p.Sections {
			s.Stats = Stats{}
			for _, it := range s.Items {
				s.Stats.add(it)
			}
			p.Stats.accumulate(s.Stats)
		}
		m.Stats.accumulate(p.Stats)
	}
}
