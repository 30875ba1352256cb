package jump

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mind-engage/testnav/internal/qti"
	"github.com/mind-engage/testnav/internal/testmap"
)

var (
	// ErrEndOfTest signals that no further item exists in flattened order.
	// Callers must treat this as a terminal outcome, not a failure.
	ErrEndOfTest = errors.New("jump: end of test")
	// ErrNoHistory signals a previous-item request with nothing behind the
	// cursor.
	ErrNoHistory = errors.New("jump: no previous entry")
	// ErrOutOfRange signals a JumpTo index outside the table. The cursor is
	// left unchanged.
	ErrOutOfRange = errors.New("jump: index out of range")
	// ErrBackwardBranch signals a branch rule targeting already-delivered
	// content, which is not permitted.
	ErrBackwardBranch = errors.New("jump: branch rule targets earlier item")
	// ErrNoTestMap signals resolution before SetTestMap.
	ErrNoTestMap = errors.New("jump: no test map")
)

// Service maintains the ordered navigation log and resolves next/previous/
// skip/section targets against the current test map. All methods take a
// context for symmetry with persistence-backed callers; the core logic is
// synchronous. Service is not safe for concurrent navigation — the session
// layer serializes access — but guards its internals for defensive reads.
type Service struct {
	mu    sync.Mutex
	m     *testmap.TestMap
	table table
}

func NewService() *Service {
	return &Service{table: newTable()}
}

// SetTestMap swaps the map used for subsequent resolutions. The jump table
// is untouched: history remains valid across map patches.
func (s *Service) SetTestMap(m *testmap.TestMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = m
}

// Init primes the cursor from an existing position, typically on resume.
// If the table's current entry already matches, only the cursor moves;
// otherwise the position is recorded as a new entry. The table is never
// cleared here.
func (s *Service) Init(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.table.last(); ok && last == e {
		return nil
	}
	for i := len(s.table.entries) - 1; i >= 0; i-- {
		if s.table.entries[i] == e {
			s.table.cursor = i
			return nil
		}
	}
	s.table.append(e)
	return nil
}

// Clear empties the log. Reset flows only.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.clear()
}

// AddJump appends an entry. A negative position defaults to the table's
// current length (plain append semantics). No validation against the map
// happens here; the caller owns position correctness.
func (s *Service) AddJump(ctx context.Context, part, section, item string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position < 0 {
		position = s.table.len()
	}
	s.table.append(Entry{Part: part, Section: section, Item: item, Position: position})
	return nil
}

// JumpTo moves the cursor to the entry at the given table index (not global
// item position). Out-of-range indices are a hard error and leave the
// cursor unchanged.
func (s *Service) JumpTo(ctx context.Context, index int) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= s.table.len() {
		return Entry{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, s.table.len())
	}
	s.table.cursor = index
	return s.table.entries[index], nil
}

// NextItem resolves the next delivery target. Branch rules on the current
// item are evaluated against the responses in declaration order; the first
// satisfied rule routes to its target, which may live in another section or
// part but never behind the current position. Without a satisfied rule the
// target is simply the next item in flattened order. The resolved entry is
// appended with the target's global map position.
func (s *Service) NextItem(ctx context.Context, resp qti.ResponseSet) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		return Entry{}, ErrNoTestMap
	}

	last, ok := s.table.last()
	if !ok {
		// Empty table: the next item is the first one.
		return s.appendAt(0)
	}

	_, _, cur, err := s.m.Resolve(testmap.Ref{Part: last.Part, Section: last.Section, Item: last.Item})
	if err != nil {
		return Entry{}, err
	}

	if target, matched := qti.ResolveBranch(cur.BranchRules, resp); matched {
		ref, found := s.m.Locate(target)
		if !found {
			return Entry{}, fmt.Errorf("jump: branch target %q not in test map", target)
		}
		if ref.Position <= cur.Position {
			return Entry{}, fmt.Errorf("%w: %q at %d from %d", ErrBackwardBranch, target, ref.Position, cur.Position)
		}
		return s.appendRef(ref)
	}

	return s.appendAt(cur.Position + 1)
}

// PreviousItem replays history: the cursor moves back one entry. Branch
// rules are never consulted on the way back.
func (s *Service) PreviousItem(ctx context.Context) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table.cursor <= 0 {
		return Entry{}, ErrNoHistory
	}
	s.table.cursor--
	return s.table.entries[s.table.cursor], nil
}

// SkipItem advances strictly by map order, bypassing any branch rule on the
// current item.
func (s *Service) SkipItem(ctx context.Context) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		return Entry{}, ErrNoTestMap
	}
	pos := 0
	if last, ok := s.table.last(); ok {
		pos = last.Position + 1
	}
	return s.appendAt(pos)
}

// NextSection advances to the first item whose section differs from the
// current one, in flattened order.
func (s *Service) NextSection(ctx context.Context) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		return Entry{}, ErrNoTestMap
	}
	last, ok := s.table.last()
	if !ok {
		return s.appendAt(0)
	}
	for pos := last.Position + 1; pos < s.m.Size(); pos++ {
		ref, found := s.m.ItemAt(pos)
		if !found {
			break
		}
		if ref.Section != last.Section {
			return s.appendRef(ref)
		}
	}
	return Entry{}, ErrEndOfTest
}

// Entries returns a defensive copy of the log in append order.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.snapshot()
}

// LastJump returns the entry at the cursor, if any.
func (s *Service) LastJump() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.last()
}

// Len is the number of recorded entries.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.len()
}

/* ----------------------------- internals ----------------------------- */

// appendAt records the item at a global map position. Callers hold s.mu.
func (s *Service) appendAt(position int) (Entry, error) {
	if position >= s.m.Size() {
		return Entry{}, ErrEndOfTest
	}
	ref, found := s.m.ItemAt(position)
	if !found {
		return Entry{}, fmt.Errorf("jump: no item at position %d", position)
	}
	return s.appendRef(ref)
}

func (s *Service) appendRef(ref testmap.Ref) (Entry, error) {
	e := Entry{Part: ref.Part, Section: ref.Section, Item: ref.Item, Position: ref.Position}
	s.table.append(e)
	return e, nil
}
