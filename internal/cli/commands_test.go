package cli

import (
	"testing"
)

func TestParseDoseID(t *testing.T) {
	if id := parseDoseID([]string{"42"}, "take"); id != 42 {
		t.Errorf("parseDoseID(42) = %d, want 42", id)
	}
	if id := parseDoseID([]string{"1", "extra"}, "skip"); id != 1 {
		t.Errorf("parseDoseID with trailing args = %d, want 1", id)
	}
}

func TestPrintExtendedHelp(t *testing.T) {
	PrintExtendedHelp()
}
