package testctx

import (
	"github.com/mind-engage/testnav/internal/testmap"
)

// Build derives the context for landing on an item. It is a pure function
// of the map, the target address, the visit's attempt number and the
// previous context (for scope-change detection and option carry-over).
func Build(old TestContext, m *testmap.TestMap, ref testmap.Ref, attempt int) (TestContext, error) {
	part, section, item, err := m.Resolve(ref)
	if err != nil {
		return TestContext{}, err
	}

	next := TestContext{
		ItemIdentifier:  item.ID,
		ItemPosition:    item.Position,
		Attempt:         attempt,
		NumberPresented: m.Stats.Viewed,
		NumberCompleted: m.Stats.Answered,
		SectionID:       section.ID,
		SectionTitle:    section.Label,
		TestPartID:      part.ID,
		IsLinear:        part.IsLinear,
	}

	// Linear parts count presentation as completion for progress purposes.
	next.ItemAnswered = item.Answered || part.IsLinear

	// -1 encodes unlimited and never decrements; finite counts floor at -1.
	if item.RemainingAttempts < 0 {
		next.RemainingAttempts = -1
	} else {
		next.RemainingAttempts = item.RemainingAttempts - 1
		if next.RemainingAttempts < -1 {
			next.RemainingAttempts = -1
		}
	}

	// Map topology, not navigation history.
	next.IsLast = item.Position == m.Size()-1
	next.CanMoveBackward = !part.IsLinear && item.Position > 0

	// Rubric blocks are section-scoped; entering a new section resets them
	// so they get refetched.
	if old.SectionID == section.ID {
		next.NumberRubrics = old.NumberRubrics
		next.Rubrics = old.Rubrics
	}

	next.TimeConstraints = rebuildConstraints(old, part, section, item)
	next.Options = buildOptions(old.Options, item.Categories)
	return next, nil
}

// rebuildConstraints applies the nested-timer rule: item constraints are
// always dropped and rebuilt; section and part constraints survive until
// their scope is left, at which point the new scope's constraint (if any)
// replaces them.
func rebuildConstraints(old TestContext, part *testmap.Part, section *testmap.Section, item *testmap.Item) []TimeConstraint {
	var out []TimeConstraint

	if old.TestPartID == part.ID {
		for _, tc := range old.TimeConstraints {
			if tc.Scope == ScopePart {
				out = append(out, tc)
			}
		}
	} else if part.TimeLimitSec > 0 {
		out = append(out, TimeConstraint{Source: part.ID, Scope: ScopePart, Seconds: part.TimeLimitSec})
	}

	if old.SectionID == section.ID {
		for _, tc := range old.TimeConstraints {
			if tc.Scope == ScopeSection {
				out = append(out, tc)
			}
		}
	} else if section.TimeLimitSec > 0 {
		out = append(out, TimeConstraint{Source: section.ID, Scope: ScopeSection, Seconds: section.TimeLimitSec})
	}

	if item.TimeLimitSec > 0 {
		out = append(out, TimeConstraint{Source: item.ID, Scope: ScopeItem, Seconds: item.TimeLimitSec})
	}
	return out
}
