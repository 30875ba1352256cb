package qti

// BranchRule is a conditional navigation rule attached to an item. When its
// conditions hold for the submitted responses, delivery continues at Target
// instead of the next sequential item.
type BranchRule struct {
	Target     string      `json:"target"`
	Conditions []Condition `json:"conditions"`
}

// Condition matches one response variable against a literal. A rule with
// several conditions requires all of them (QTI "and"); "or" is expressed as
// separate rules with the same target.
type Condition struct {
	Variable string `json:"variable"`
	Match    string `json:"match"`
	Negate   bool   `json:"negate,omitempty"`
}

// Satisfied evaluates the rule against the responses. A condition whose
// variable is absent or empty is not satisfied (negated or not): missing
// response data must degrade to sequential progression, never route.
func (r BranchRule) Satisfied(resp ResponseSet) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		v, ok := resp[c.Variable]
		if !ok || v.Empty() {
			return false
		}
		if v.Contains(c.Match) == c.Negate {
			return false
		}
	}
	return true
}

// ResolveBranch returns the target of the first rule, in declaration order,
// satisfied by the responses. Declaration order is the QTI precedence rule:
// when several rules match, the first one declared wins.
func ResolveBranch(rules []BranchRule, resp ResponseSet) (target string, ok bool) {
	for _, r := range rules {
		if r.Satisfied(resp) {
			return r.Target, true
		}
	}
	return "", false
}
