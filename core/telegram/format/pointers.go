package format

import "github.com/AlekSi/pointer"

// Placeholder is shown for values that were never filled in.
const Placeholder = "-"

// OrPlaceholder dereferences s, returning Placeholder when s is nil or empty.
func OrPlaceholder(s *string) string {
	if v := pointer.GetString(s); v != "" {
		return v
	}
	return Placeholder
}

// OptionalString returns nil for an empty string and a pointer to s otherwise.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return pointer.ToString(s)
}
