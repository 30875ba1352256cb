package jump

// Entry is one recorded navigation decision: where the test-taker landed.
// Position is the item's global map position, which can diverge from the
// entry's index in the table when a branch skips items.
type Entry struct {
	Part     string `json:"part"`
	Section  string `json:"section"`
	Item     string `json:"item"`
	Position int    `json:"position"`
}

// table is the append-only navigation log plus a pointer to the entry that
// represents "where we are now". The pointer moves backward on previous-item
// replay and via JumpTo without removing history.
type table struct {
	entries []Entry
	cursor  int // index into entries, -1 when empty
}

func newTable() table {
	return table{cursor: -1}
}

func (t *table) append(e Entry) {
	t.entries = append(t.entries, e)
	t.cursor = len(t.entries) - 1
}

func (t *table) last() (Entry, bool) {
	if t.cursor < 0 || t.cursor >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[t.cursor], true
}

func (t *table) len() int { return len(t.entries) }

func (t *table) clear() {
	t.entries = nil
	t.cursor = -1
}

func (t *table) snapshot() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
