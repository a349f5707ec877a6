package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError(t *testing.T) {
	err := New("MED_999", "something went wrong")

	if err.Code != "MED_999" {
		t.Errorf("expected code MED_999, got %s", err.Code)
	}
	if err.Message != "something went wrong" {
		t.Errorf("expected message 'something went wrong', got %s", err.Message)
	}
	if !strings.Contains(err.Error(), "[MED_999]") {
		t.Errorf("expected error string to contain code, got %s", err.Error())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, "DOSE_002", "failed to mark dose")

	if err.Cause != cause {
		t.Error("expected cause to be set")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected error string to contain cause, got %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to match cause via errors.Is")
	}
}

func TestSentinelCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		code string
	}{
		{ErrMedicationNotFound, "MED_001"},
		{ErrEmptyName, "MED_003"},
		{ErrNoReminderTimes, "MED_005"},
		{ErrDoseNotFound, "DOSE_001"},
		{ErrDoseFinalized, "DOSE_002"},
		{ErrChannelNotConfigured, "NOTIF_001"},
	}

	for _, tc := range cases {
		if got := GetCode(tc.err); got != tc.code {
			t.Errorf("expected code %s, got %s", tc.code, got)
		}
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(ErrDoseFinalized) {
		t.Error("expected IsAppError to return true for a sentinel")
	}
	if IsAppError(fmt.Errorf("plain error")) {
		t.Error("expected IsAppError to return false for a standard error")
	}
	if GetCode(fmt.Errorf("plain error")) != "UNKNOWN" {
		t.Error("expected UNKNOWN code for a standard error")
	}
}
