package testutil

import "testing"

// Given, When and Then nest subtests so a scenario reads as one sentence in
// the test output, e.g. "Given_a_roster/When_tax-id_is_chosen/Then_...".
func Given(t *testing.T, context string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+context, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+action, fn)
}

func Then(t *testing.T, expectation string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+expectation, fn)
}
