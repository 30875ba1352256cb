package testctx

// TestContext is the externally consumed snapshot the rendering layer uses
// to decide what to show and which tools to enable. It is rebuilt fresh on
// every navigation and never persisted; only a handful of option defaults
// carry over from the previous context.
type TestContext struct {
	ItemIdentifier    string           `json:"itemIdentifier"`
	ItemPosition      int              `json:"itemPosition"`
	ItemAnswered      bool             `json:"itemAnswered"`
	Attempt           int              `json:"attempt"`
	NumberPresented   int              `json:"numberPresented"`
	NumberCompleted   int              `json:"numberCompleted"`
	RemainingAttempts int              `json:"remainingAttempts"`
	SectionID         string           `json:"sectionId"`
	SectionTitle      string           `json:"sectionTitle"`
	TestPartID        string           `json:"testPartId"`
	IsLinear          bool             `json:"isLinear"`
	IsLast            bool             `json:"isLast"`
	CanMoveBackward   bool             `json:"canMoveBackward"`
	NumberRubrics     int              `json:"numberRubrics"`
	Rubrics           string           `json:"rubrics"`
	TimeConstraints   []TimeConstraint `json:"timeConstraints"`
	Options           map[string]bool  `json:"options"`
}

// TimeConstraint is one active timer. Source names the scope owner (item,
// section or part identifier); Scope says which nesting level it guards.
type TimeConstraint struct {
	Source  string `json:"source"`
	Scope   string `json:"qtiClassName"` // assessmentItemRef|assessmentSection|testPart
	Seconds int    `json:"seconds"`
}

const (
	ScopeItem    = "assessmentItemRef"
	ScopeSection = "assessmentSection"
	ScopePart    = "testPart"
)
