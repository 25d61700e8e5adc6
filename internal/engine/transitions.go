package engine

// Every status write goes through these tables. A missing key means the
// status is terminal.

var requestTransitions = map[string][]string{
	"draft":          {"cooling_period", "confirmed", "cancelled", "expired"},
	"cooling_period": {"confirmed", "cancelled", "expired"},
}

var listingTransitions = map[string][]string{
	"pending_review": {"active", "rejected"},
	"active":         {"paused", "under_review", "closed", "rehomed"},
	"paused":         {"active", "closed"},
	"under_review":   {"active", "rehomed", "closed"},
}

var applicationTransitions = map[string][]string{
	"pending_review":      {"info_requested", "rejected", "approved_meet_greet"},
	"info_requested":      {"pending_review", "rejected"},
	"approved_meet_greet": {"meet_greet_success", "rejected"},
	"meet_greet_success":  {"home_check_pending", "trial_period", "ready_for_adoption"},
	"home_check_pending":  {"home_check_passed", "rejected"},
	"home_check_passed":   {"trial_period", "ready_for_adoption"},
	"trial_period":        {"ready_for_adoption", "return_requested"},
	"ready_for_adoption":  {"adopted"},
	"adopted":             {"adoption_completed"},
	"adoption_completed":  {"return_requested"},
	"return_requested":    {"returned"},
}

func allowedTransition(table map[string][]string, from, to string) bool {
	for _, t := range table[from] {
		if t == to {
			return true
		}
	}
	return false
}

func ensureRequestTransition(from, to string) error {
	if !allowedTransition(requestTransitions, from, to) {
		return InvalidTransitionError{Entity: "request", From: from, To: to}
	}
	return nil
}

func ensureListingTransition(from, to string) error {
	if !allowedTransition(listingTransitions, from, to) {
		return InvalidTransitionError{Entity: "listing", From: from, To: to}
	}
	return nil
}

func ensureApplicationTransition(from, to string) error {
	if !allowedTransition(applicationTransitions, from, to) {
		return InvalidTransitionError{Entity: "application", From: from, To: to}
	}
	return nil
}

// applicationTerminal reports whether no further transitions exist for the
// status. withdrawn never appears as a table key; it is reachable from any
// non-terminal state via WithdrawApplication.
func applicationTerminal(status string) bool {
	switch status {
	case "rejected", "withdrawn", "returned":
		return true
	}
	return false
}

func listingTerminal(status string) bool {
	switch status {
	case "rehomed", "closed", "rejected":
		return true
	}
	return false
}
