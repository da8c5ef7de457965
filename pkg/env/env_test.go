package env

import "testing"

func TestFirstSkipsBlankValues(t *testing.T) {
	t.Setenv("MENUBOARD_TEST_A", "  ")
	t.Setenv("MENUBOARD_TEST_B", "b")
	if got := First("MENUBOARD_TEST_MISSING", "MENUBOARD_TEST_A", "MENUBOARD_TEST_B"); got != "b" {
		t.Fatalf("First = %q, want b", got)
	}
	if got := Get("MENUBOARD_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("Get = %q, want fallback", got)
	}
}
