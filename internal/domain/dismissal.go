package domain

import "fmt"

// DismissalPolicy decides whether a dismissed hazard alerts again after the
// driver leaves and re-enters its radius.
type DismissalPolicy string

const (
	// DismissSticky keeps a dismissal until the user clears it.
	DismissSticky DismissalPolicy = "sticky"
	// DismissResetOnExit forgets a dismissal once the hazard leaves the alert radius.
	DismissResetOnExit DismissalPolicy = "reset_on_exit"
)

// ParseDismissalPolicy accepts a policy name. Empty selects DismissSticky.
func ParseDismissalPolicy(s string) (DismissalPolicy, error) {
	switch DismissalPolicy(s) {
	case "", DismissSticky:
		return DismissSticky, nil
	case DismissResetOnExit:
		return DismissResetOnExit, nil
	default:
		return "", fmt.Errorf("unknown dismissal policy %q", s)
	}
}
