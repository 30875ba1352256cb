package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mind-engage/testnav/internal/itemstore"
	"github.com/mind-engage/testnav/internal/jump"
	"github.com/mind-engage/testnav/internal/qti"
	"github.com/mind-engage/testnav/internal/testctx"
	"github.com/mind-engage/testnav/internal/testmap"
)

// Direction and Scope form the navigation action space. The pair resolves
// through an explicit table below; there is no name-composition dispatch,
// so an unsupported pair can only fail with InvalidActionError.
type Direction string

type Scope string

const (
	DirNext     Direction = "next"
	DirPrevious Direction = "previous"
	DirSkip     Direction = "skip"
	DirJump     Direction = "jump"

	ScopeItem    Scope = "item"
	ScopeSection Scope = "section"
)

// Request is one navigation action from the UI.
type Request struct {
	Direction Direction       `json:"direction"`
	Scope     Scope           `json:"scope"`
	Position  int             `json:"position,omitempty"` // jump/item: table index
	Responses qti.ResponseSet `json:"itemResponse,omitempty"`
	Flag      *bool           `json:"flag,omitempty"` // optional review-flag toggle on the current item
}

type action struct {
	Direction Direction
	Scope     Scope
}

// Navigator is the public navigation façade for one test session: it maps
// requests onto jump-table operations, reconciles attempt counters with the
// item store and produces the fresh test context. Navigate calls are
// serialized; two concurrent calls against the same session never interleave
// between jump resolution and attempt persistence.
type Navigator struct {
	mu    sync.Mutex
	jumps *jump.Service
	store itemstore.Store
	m     *testmap.TestMap
	cur   testctx.TestContext

	// observer, if set, is told about every applied jump (event logging).
	observer func(ctx context.Context, e jump.Entry, tc testctx.TestContext)
}

func New(jumps *jump.Service, store itemstore.Store, m *testmap.TestMap) *Navigator {
	jumps.SetTestMap(m)
	return &Navigator{jumps: jumps, store: store, m: m}
}

// SetObserver registers a callback invoked after each successful navigation,
// once the attempt counter is durably recorded.
func (n *Navigator) SetObserver(fn func(ctx context.Context, e jump.Entry, tc testctx.TestContext)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observer = fn
}

// UpdateTestMap installs a patched map as the authoritative structure.
func (n *Navigator) UpdateTestMap(m *testmap.TestMap) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m = m
	n.jumps.SetTestMap(m)
}

// Context returns the most recently built context.
func (n *Navigator) Context() testctx.TestContext {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cur
}

// Init primes the navigator on the given item at session start or resume.
// Landing counts as a visit, so the item's attempt counter advances.
func (n *Navigator) Init(ctx context.Context, itemID string) (testctx.TestContext, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ref, ok := n.m.Locate(itemID)
	if !ok {
		return testctx.TestContext{}, fmt.Errorf("navigator: unknown item %q", itemID)
	}
	if err := n.jumps.Init(ctx, jump.Entry{Part: ref.Part, Section: ref.Section, Item: ref.Item, Position: ref.Position}); err != nil {
		return testctx.TestContext{}, err
	}
	return n.land(ctx, ref)
}

// Navigate resolves one navigation action and returns the new context. The
// context is returned only after the incremented attempt counter has been
// persisted to the item store.
func (n *Navigator) Navigate(ctx context.Context, req Request) (testctx.TestContext, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Flag != nil {
		if last, ok := n.jumps.LastJump(); ok {
			if err := n.m.MarkFlagged(last.Item, *req.Flag); err != nil {
				return testctx.TestContext{}, err
			}
		}
	}

	entry, err := n.resolve(ctx, req)
	if err != nil {
		return testctx.TestContext{}, err
	}
	return n.land(ctx, testmap.Ref{Part: entry.Part, Section: entry.Section, Item: entry.Item, Position: entry.Position})
}

// resolve dispatches the action through the finite mapping. Callers hold
// n.mu.
func (n *Navigator) resolve(ctx context.Context, req Request) (jump.Entry, error) {
	switch (action{req.Direction, req.Scope}) {
	case action{DirNext, ScopeItem}:
		e, err := n.jumps.NextItem(ctx, req.Responses)
		return e, n.mapErr(err)
	case action{DirPrevious, ScopeItem}:
		if n.cur.IsLinear {
			return jump.Entry{}, &BlockedError{Reason: "backward navigation is disabled in a linear part"}
		}
		e, err := n.jumps.PreviousItem(ctx)
		return e, n.mapErr(err)
	case action{DirSkip, ScopeItem}:
		e, err := n.jumps.SkipItem(ctx)
		return e, n.mapErr(err)
	case action{DirNext, ScopeSection}:
		e, err := n.jumps.NextSection(ctx)
		return e, n.mapErr(err)
	case action{DirJump, ScopeItem}:
		e, err := n.jumps.JumpTo(ctx, req.Position)
		return e, n.mapErr(err)
	default:
		return jump.Entry{}, &InvalidActionError{Direction: req.Direction, Scope: req.Scope}
	}
}

func (n *Navigator) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jump.ErrEndOfTest):
		return ErrEndOfTest
	case errors.Is(err, jump.ErrNoHistory):
		return &BlockedError{Reason: "no previous item in the navigation history", Err: err}
	case errors.Is(err, jump.ErrBackwardBranch):
		return &BlockedError{Reason: "branch rule targets already-delivered content", Err: err}
	default:
		return err
	}
}

// land performs the post-jump bookkeeping: mark the item viewed, bump its
// attempt counter through the store, build the new context. Callers hold
// n.mu.
func (n *Navigator) land(ctx context.Context, ref testmap.Ref) (testctx.TestContext, error) {
	if err := n.m.MarkViewed(ref.Item); err != nil {
		return testctx.TestContext{}, err
	}

	prev, _, err := n.store.Get(ctx, ref.Item)
	if err != nil {
		return testctx.TestContext{}, err
	}
	attempt := prev.Attempt + 1

	tc, err := testctx.Build(n.cur, n.m, ref, attempt)
	if err != nil {
		return testctx.TestContext{}, err
	}

	// Persist before returning: the UI must never observe a context whose
	// attempt count is not durably recorded.
	prev.Identifier = ref.Item
	prev.Attempt = attempt
	if err := n.store.Set(ctx, prev); err != nil {
		return testctx.TestContext{}, err
	}

	n.cur = tc
	if n.observer != nil {
		if last, ok := n.jumps.LastJump(); ok {
			n.observer(ctx, last, tc)
		}
	}
	return tc, nil
}
