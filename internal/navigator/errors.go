package navigator

import (
	"errors"
	"fmt"
)

// ErrEndOfTest is re-exported so callers can branch on the terminal outcome
// without importing the jump package.
var ErrEndOfTest = errors.New("navigator: end of test")

// InvalidActionError reports an unsupported direction/scope combination.
// The UI distinguishes this from rule-blocked navigation and from store
// failures, so it is a dedicated type rather than a plain sentinel.
type InvalidActionError struct {
	Direction Direction
	Scope     Scope
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("navigator: invalid navigation action %s/%s", e.Direction, e.Scope)
}

// IsInvalidAction reports whether err is an InvalidActionError.
func IsInvalidAction(err error) bool {
	var ia *InvalidActionError
	return errors.As(err, &ia)
}

// BlockedError reports navigation refused by a rule (no history to go back
// to, backward branch, linear-part restriction).
type BlockedError struct {
	Reason string
	Err    error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("navigator: navigation blocked: %s", e.Reason)
}

func (e *BlockedError) Unwrap() error { return e.Err }
