package core

import "testing"

// TestPriority_String tests the log label for every level
// Main test items:
// 1. Each defined priority has a stable snake_case label
// 2. Undefined values render with their numeric form
func TestPriority_String(t *testing.T) {
	cases := []struct {
		pri  Priority
		want string
	}{
		{PriorityBackground, "background"},
		{PriorityUtility, "utility"},
		{PriorityDefault, "default"},
		{PriorityUserInitiated, "user_initiated"},
		{PriorityUserInteractive, "user_interactive"},
		{Priority(42), "priority(42)"},
	}
	for _, c := range cases {
		if got := c.pri.String(); got != c.want {
			t.Errorf("String(%d): expected %q, got %q", int8(c.pri), c.want, got)
		}
	}
}

// TestParsePriority tests the string form round-trip
// Main test items:
// 1. Every String() label parses back to its priority
// 2. Case and surrounding whitespace are tolerated
// 3. Empty means default, unknown strings report an error
func TestParsePriority(t *testing.T) {
	for _, pri := range []Priority{
		PriorityBackground,
		PriorityUtility,
		PriorityDefault,
		PriorityUserInitiated,
		PriorityUserInteractive,
	} {
		got, err := ParsePriority(pri.String())
		if err != nil {
			t.Errorf("ParsePriority(%q) failed: %v", pri.String(), err)
			continue
		}
		if got != pri {
			t.Errorf("ParsePriority(%q): expected %v, got %v", pri.String(), pri, got)
		}
	}

	if got, err := ParsePriority("  Background "); err != nil || got != PriorityBackground {
		t.Errorf("expected tolerant parse to background, got %v, %v", got, err)
	}
	if got, err := ParsePriority(""); err != nil || got != PriorityDefault {
		t.Errorf("expected empty string to parse as default, got %v, %v", got, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("expected an error for an unknown priority")
	}
}

// TestPriority_Order tests the urgency ordering of the levels
// Main test items:
// 1. The five levels are strictly increasing in urgency
func TestPriority_Order(t *testing.T) {
	order := []Priority{
		PriorityBackground,
		PriorityUtility,
		PriorityDefault,
		PriorityUserInitiated,
		PriorityUserInteractive,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("expected %v < %v", order[i-1], order[i])
		}
	}
}
