package testctx

import (
	"testing"

	"github.com/mind-engage/testnav/internal/testmap"
)

const timedPayload = `{
  "scope": "test",
  "parts": {
    "P01": {
      "id": "P01", "position": 0, "isLinear": false, "timeLimitSec": 3600,
      "sections": {
        "S01": {
          "id": "S01", "label": "Section One", "position": 0, "timeLimitSec": 600,
          "items": {
            "Q01": {"id": "Q01", "position": 0, "remainingAttempts": -1, "timeLimitSec": 60,
              "categories": ["option/allow-comment", "option/answerMasking", "content/math"]},
            "Q02": {"id": "Q02", "position": 1, "remainingAttempts": 2}
          }
        },
        "S02": {
          "id": "S02", "label": "Section Two", "position": 1, "timeLimitSec": 300,
          "items": {
            "Q03": {"id": "Q03", "position": 2, "remainingAttempts": -1}
          }
        }
      }
    },
    "P02": {
      "id": "P02", "position": 1, "isLinear": true,
      "sections": {
        "S03": {
          "id": "S03", "label": "Section Three", "position": 0,
          "items": {
            "Q04": {"id": "Q04", "position": 3, "remainingAttempts": -1}
          }
        }
      }
    }
  }
}`

func parseTimed(t *testing.T) *testmap.TestMap {
	t.Helper()
	m, err := testmap.Parse([]byte(timedPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func buildAt(t *testing.T, old TestContext, m *testmap.TestMap, itemID string, attempt int) TestContext {
	t.Helper()
	ref, ok := m.Locate(itemID)
	if !ok {
		t.Fatalf("item %s not in map", itemID)
	}
	tc, err := Build(old, m, ref, attempt)
	if err != nil {
		t.Fatalf("build %s: %v", itemID, err)
	}
	return tc
}

func TestLinearPartCountsAsAnswered(t *testing.T) {
	m := parseTimed(t)

	tc := buildAt(t, TestContext{}, m, "Q01", 1)
	if tc.ItemAnswered {
		t.Fatal("unanswered item in non-linear part reported answered")
	}
	if tc.CanMoveBackward {
		t.Fatal("position 0 never allows backward")
	}

	tc = buildAt(t, TestContext{}, m, "Q04", 1)
	if !tc.ItemAnswered {
		t.Fatal("linear part must report presentation as answered")
	}
	if !tc.IsLinear || tc.CanMoveBackward {
		t.Fatalf("linear part flags wrong: linear=%v back=%v", tc.IsLinear, tc.CanMoveBackward)
	}
	if !tc.IsLast {
		t.Fatal("Q04 is the last item")
	}
}

func TestRemainingAttemptsFloor(t *testing.T) {
	m := parseTimed(t)

	// Unlimited stays unlimited, whatever the visit count.
	tc := buildAt(t, TestContext{}, m, "Q01", 7)
	if tc.RemainingAttempts != -1 {
		t.Fatalf("unlimited: got %d, want -1", tc.RemainingAttempts)
	}

	// Finite counts decrement, flooring at the -1 sentinel.
	tc = buildAt(t, TestContext{}, m, "Q02", 1)
	if tc.RemainingAttempts != 1 {
		t.Fatalf("finite: got %d, want 1", tc.RemainingAttempts)
	}
	ref, _ := m.Locate("Q02")
	_, _, it, err := m.Resolve(ref)
	if err != nil {
		t.Fatal(err)
	}
	it.RemainingAttempts = 0
	tc = buildAt(t, TestContext{}, m, "Q02", 3)
	if tc.RemainingAttempts != -1 {
		t.Fatalf("exhausted: got %d, want floor -1", tc.RemainingAttempts)
	}
}

func TestSectionChangeResetsRubrics(t *testing.T) {
	m := parseTimed(t)

	old := buildAt(t, TestContext{}, m, "Q01", 1)
	old.NumberRubrics = 2
	old.Rubrics = "<div>rubric</div>"

	// Same section: rubric fields survive.
	tc := buildAt(t, old, m, "Q02", 1)
	if tc.NumberRubrics != 2 || tc.Rubrics == "" {
		t.Fatalf("same section dropped rubrics: %d %q", tc.NumberRubrics, tc.Rubrics)
	}

	// New section: reset so they get refetched.
	tc = buildAt(t, old, m, "Q03", 1)
	if tc.NumberRubrics != 0 || tc.Rubrics != "" {
		t.Fatalf("section change kept rubrics: %d %q", tc.NumberRubrics, tc.Rubrics)
	}
}

func TestTimeConstraintScopes(t *testing.T) {
	m := parseTimed(t)

	first := buildAt(t, TestContext{}, m, "Q01", 1)
	scopes := map[string]TimeConstraint{}
	for _, tc := range first.TimeConstraints {
		scopes[tc.Scope] = tc
	}
	if len(scopes) != 3 {
		t.Fatalf("entering the test should instate part+section+item timers, got %+v", first.TimeConstraints)
	}
	if scopes[ScopePart].Source != "P01" || scopes[ScopeSection].Source != "S01" || scopes[ScopeItem].Source != "Q01" {
		t.Fatalf("wrong constraint sources: %+v", scopes)
	}

	// Moving within the section: part and section timers carry over, item
	// timer is rebuilt (Q02 declares none).
	second := buildAt(t, first, m, "Q02", 1)
	scopes = map[string]TimeConstraint{}
	for _, tc := range second.TimeConstraints {
		scopes[tc.Scope] = tc
	}
	if _, ok := scopes[ScopeItem]; ok {
		t.Fatal("item timer must be dropped when the new item declares none")
	}
	if scopes[ScopeSection].Source != "S01" || scopes[ScopePart].Source != "P01" {
		t.Fatalf("surviving timers wrong: %+v", scopes)
	}

	// Leaving the section rebuilds the section timer for the new scope.
	third := buildAt(t, second, m, "Q03", 1)
	scopes = map[string]TimeConstraint{}
	for _, tc := range third.TimeConstraints {
		scopes[tc.Scope] = tc
	}
	if scopes[ScopeSection].Source != "S02" || scopes[ScopeSection].Seconds != 300 {
		t.Fatalf("section timer not rebuilt on boundary: %+v", scopes)
	}
	if scopes[ScopePart].Source != "P01" {
		t.Fatal("part timer should survive while staying in P01")
	}

	// Leaving the part drops its timer; P02 declares none.
	fourth := buildAt(t, third, m, "Q04", 1)
	for _, tc := range fourth.TimeConstraints {
		if tc.Scope == ScopePart {
			t.Fatalf("stale part timer carried into P02: %+v", tc)
		}
	}
}

func TestOptionsFromCategories(t *testing.T) {
	m := parseTimed(t)

	tc := buildAt(t, TestContext{}, m, "Q01", 1)
	if !tc.Options["allowComment"] {
		t.Fatal("option/allow-comment should yield allowComment=true")
	}
	if !tc.Options["answerMasking"] {
		t.Fatal("option/answerMasking should keep its camel casing")
	}
	if _, ok := tc.Options["content/math"]; ok {
		t.Fatal("non-option categories must not leak into options")
	}

	// Carry-over defaults: Q02 declares nothing, so allowComment persists
	// from the previous context; unrelated flags do not.
	next := buildAt(t, tc, m, "Q02", 1)
	if !next.Options["allowComment"] {
		t.Fatal("allowComment should carry over when not redeclared")
	}
	if next.Options["answerMasking"] {
		t.Fatal("answerMasking is not a carry-over option")
	}
}

func TestProgressCounters(t *testing.T) {
	m := parseTimed(t)
	if err := m.MarkViewed("Q01"); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkAnswered("Q02"); err != nil {
		t.Fatal(err)
	}
	tc := buildAt(t, TestContext{}, m, "Q03", 1)
	if tc.NumberPresented != 2 || tc.NumberCompleted != 1 {
		t.Fatalf("presented=%d completed=%d, want 2/1", tc.NumberPresented, tc.NumberCompleted)
	}
}

func TestCamelCase(t *testing.T) {
	cases := map[string]string{
		"allow-comment":  "allowComment",
		"allow_skipping": "allowSkipping",
		"exitButton":     "exitButton",
		"Logout-Button":  "logoutButton",
	}
	for in, want := range cases {
		if got := camelCase(in); got != want {
			t.Errorf("camelCase(%q) = %q, want %q", in, got, want)
		}
	}
}
