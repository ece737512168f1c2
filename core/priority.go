package core

import (
	"fmt"
	"strings"
)

// Priority expresses how urgently submitted work should run relative to
// other work on the same backend. A task's priority is fixed when it is
// spawned; every resumption of that task is submitted at the same
// level.
//
// Backends with fewer native levels may collapse adjacent values, but
// must preserve the relative order. The built-in pool keeps all five
// levels distinct.
type Priority int8

const (
	// PriorityBackground is for maintenance work the user never waits
	// on: prefetching, cleanup, indexing.
	PriorityBackground Priority = iota

	// PriorityUtility is for long-running work with visible progress,
	// such as downloads or imports.
	PriorityUtility

	// PriorityDefault is the implicit priority wherever none is given.
	PriorityDefault

	// PriorityUserInitiated is for work the user asked for and is
	// actively waiting on.
	PriorityUserInitiated

	// PriorityUserInteractive is for work gating the next frame or an
	// immediate interaction.
	PriorityUserInteractive
)

func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityUtility:
		return "utility"
	case PriorityDefault:
		return "default"
	case PriorityUserInitiated:
		return "user_initiated"
	case PriorityUserInteractive:
		return "user_interactive"
	default:
		return fmt.Sprintf("priority(%d)", int8(p))
	}
}

// ParsePriority is the inverse of String, for priorities arriving as
// strings from config or flags. An empty string means PriorityDefault.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "background":
		return PriorityBackground, nil
	case "utility":
		return PriorityUtility, nil
	case "", "default":
		return PriorityDefault, nil
	case "user_initiated":
		return PriorityUserInitiated, nil
	case "user_interactive":
		return PriorityUserInteractive, nil
	default:
		return PriorityDefault, fmt.Errorf("nexec: unknown priority %q", s)
	}
}
