package engine

import (
	"errors"
	"testing"
)

func TestApplicationTransitionTable(t *testing.T) {
	allowed := [][2]string{
		{"pending_review", "approved_meet_greet"},
		{"pending_review", "info_requested"},
		{"info_requested", "pending_review"},
		{"approved_meet_greet", "meet_greet_success"},
		{"meet_greet_success", "home_check_pending"},
		{"meet_greet_success", "ready_for_adoption"},
		{"home_check_pending", "home_check_passed"},
		{"home_check_passed", "trial_period"},
		{"home_check_passed", "ready_for_adoption"},
		{"trial_period", "return_requested"},
		{"ready_for_adoption", "adopted"},
		{"adopted", "adoption_completed"},
		{"adoption_completed", "return_requested"},
		{"return_requested", "returned"},
	}
	for _, tr := range allowed {
		if err := ensureApplicationTransition(tr[0], tr[1]); err != nil {
			t.Errorf("%s -> %s should be allowed: %v", tr[0], tr[1], err)
		}
	}

	forbidden := [][2]string{
		{"pending_review", "adopted"},
		{"pending_review", "meet_greet_success"},
		{"rejected", "pending_review"},
		{"withdrawn", "pending_review"},
		{"returned", "adopted"},
		{"adopted", "rejected"},
	}
	for _, tr := range forbidden {
		err := ensureApplicationTransition(tr[0], tr[1])
		var terr InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Errorf("%s -> %s should be rejected", tr[0], tr[1])
		}
	}
}

func TestListingTransitionTable(t *testing.T) {
	if err := ensureListingTransition("pending_review", "active"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ensureListingTransition("rejected", "active"); err == nil {
		t.Fatal("rejected should be terminal")
	}
	if err := ensureListingTransition("rehomed", "active"); err == nil {
		t.Fatal("rehomed should be terminal")
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []string{"rejected", "withdrawn", "returned"} {
		if !applicationTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []string{"pending_review", "trial_period", "adopted"} {
		if applicationTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []string{"rehomed", "closed", "rejected"} {
		if !listingTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := ensureRequestTransition("cancelled", "confirmed")
	var terr InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v", err)
	}
	if terr.Entity != "request" || terr.From != "cancelled" || terr.To != "confirmed" {
		t.Fatalf("unexpected fields: %+v", terr)
	}
}
