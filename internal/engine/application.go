package engine

import (
	"context"
	"fmt"
	"time"

	"homeward/internal/domain"
	"homeward/internal/events"
	"homeward/internal/repo"
)

type ApplicationSubmitOptions struct {
	ListingID   string
	ApplicantID string
	Message     string
}

// SubmitApplication opens a bid on an active listing. The applicant's
// readiness score is snapshotted as the match score; later profile edits do
// not touch a pending bid.
func (e Engine) SubmitApplication(ctx context.Context, opts ApplicationSubmitOptions) (domain.AdoptionApplication, error) {
	l, err := e.Repo.GetListing(ctx, opts.ListingID)
	if err != nil {
		return domain.AdoptionApplication{}, err
	}
	if l.OwnerID == opts.ApplicantID {
		return domain.AdoptionApplication{}, deniedf("you cannot apply to adopt your own pet")
	}
	if l.Status != "active" {
		return domain.AdoptionApplication{}, preconditionf("listing %s is %s; applications require an active listing", l.ID, l.Status)
	}
	exists, err := e.Repo.ApplicationExists(ctx, opts.ListingID, opts.ApplicantID)
	if err != nil {
		return domain.AdoptionApplication{}, err
	}
	if exists {
		return domain.AdoptionApplication{}, conflictf("you have already applied for this pet")
	}
	profile, err := e.Repo.GetProfile(ctx, opts.ApplicantID)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.AdoptionApplication{}, validationf("an adopter profile is required before applying")
		}
		return domain.AdoptionApplication{}, err
	}

	ts := e.nowRFC3339()
	a := domain.AdoptionApplication{
		ID:          newID(),
		ListingID:   l.ID,
		ApplicantID: opts.ApplicantID,
		Message:     opts.Message,
		MatchScore:  profile.ReadinessScore,
		Status:      "pending_review",
		Version:     1,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AdoptionApplication{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertApplicationTx(ctx, tx, a); err != nil {
		return domain.AdoptionApplication{}, fmt.Errorf("insert application: %w", err)
	}
	if err := e.Repo.IncrementListingInquiriesTx(ctx, tx, l.ID); err != nil {
		return domain.AdoptionApplication{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.submitted", "application", a.ID, opts.ApplicantID, events.EventPayload{
		"listing_id":  l.ID,
		"match_score": a.MatchScore,
	}); err != nil {
		return domain.AdoptionApplication{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AdoptionApplication{}, err
	}
	return a, nil
}

// AdvanceApplication moves an application along the vetting state machine.
// Only the listing owner may advance; adopted is reserved for finalization.
func (e Engine) AdvanceApplication(ctx context.Context, id, target, reason, actorID string) (domain.AdoptionApplication, error) {
	if target == "adopted" {
		return domain.AdoptionApplication{}, validationf("adopted is set by finalizing an application")
	}
	a, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return a, err
	}
	l, err := e.Repo.GetListing(ctx, a.ListingID)
	if err != nil {
		return a, err
	}
	if l.OwnerID != actorID {
		return a, deniedf("only the listing owner can advance application %s", id)
	}
	return e.transitionApplication(ctx, a, target, reason, actorID)
}

// WithdrawApplication is applicant-initiated and allowed from any
// non-terminal state.
func (e Engine) WithdrawApplication(ctx context.Context, id, actorID string) (domain.AdoptionApplication, error) {
	a, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return a, err
	}
	if a.ApplicantID != actorID {
		return a, deniedf("only the applicant can withdraw application %s", id)
	}
	if applicationTerminal(a.Status) || a.Status == "adopted" || a.Status == "adoption_completed" {
		return a, InvalidTransitionError{Entity: "application", From: a.Status, To: "withdrawn"}
	}
	ts := e.nowRFC3339()
	a.Status = "withdrawn"
	a.UpdatedAt = ts

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
		if err == repo.ErrVersionConflict {
			return a, conflictf("application %s was modified concurrently", id)
		}
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "application.withdrawn", "application", a.ID, actorID, nil); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Version++
	return a, nil
}

func (e Engine) transitionApplication(ctx context.Context, a domain.AdoptionApplication, target, reason, actorID string) (domain.AdoptionApplication, error) {
	if err := ensureApplicationTransition(a.Status, target); err != nil {
		return a, err
	}
	ts := e.nowRFC3339()
	a.Status = target
	if target == "rejected" {
		a.RejectionReason = reason
	}
	a.UpdatedAt = ts

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
		if err == repo.ErrVersionConflict {
			return a, conflictf("application %s was modified concurrently", a.ID)
		}
		return a, err
	}
	payload := events.EventPayload{"status": target}
	if reason != "" {
		payload["reason"] = reason
	}
	if err := e.Events.Append(ctx, tx, "application.advanced", "application", a.ID, actorID, payload); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Version++
	return a, nil
}

// applicationParties resolves the listing owner for an application.
func (e Engine) applicationParties(ctx context.Context, a domain.AdoptionApplication) (ownerID string, err error) {
	l, err := e.Repo.GetListing(ctx, a.ListingID)
	if err != nil {
		return "", err
	}
	return l.OwnerID, nil
}

// --- meet & greets ---

type MeetGreetScheduleOptions struct {
	ApplicationID   string
	ScheduledAt     string
	DurationMinutes int
	LocationType    string
	LocationDetails string
	ActorID         string
}

func (e Engine) ScheduleMeetGreet(ctx context.Context, opts MeetGreetScheduleOptions) (domain.MeetGreetSchedule, error) {
	if _, err := time.Parse(time.RFC3339, opts.ScheduledAt); err != nil {
		return domain.MeetGreetSchedule{}, validationf("scheduled_at must be RFC3339")
	}
	switch opts.LocationType {
	case "owner_home", "public_place", "adopter_home", "other":
	case "":
		opts.LocationType = "public_place"
	default:
		return domain.MeetGreetSchedule{}, validationf("location_type must be one of owner_home, public_place, adopter_home, other")
	}
	a, err := e.Repo.GetApplication(ctx, opts.ApplicationID)
	if err != nil {
		return domain.MeetGreetSchedule{}, err
	}
	ownerID, err := e.applicationParties(ctx, a)
	if err != nil {
		return domain.MeetGreetSchedule{}, err
	}
	if opts.ActorID != ownerID && opts.ActorID != a.ApplicantID {
		return domain.MeetGreetSchedule{}, deniedf("only the owner or applicant can schedule a meet & greet")
	}
	if a.Status != "approved_meet_greet" {
		return domain.MeetGreetSchedule{}, preconditionf("application %s is %s; meet & greet requires approved_meet_greet", a.ID, a.Status)
	}
	ts := e.nowRFC3339()
	m := domain.MeetGreetSchedule{
		ID:              newID(),
		ApplicationID:   a.ID,
		ScheduledAt:     opts.ScheduledAt,
		DurationMinutes: opts.DurationMinutes,
		LocationType:    opts.LocationType,
		LocationDetails: opts.LocationDetails,
		Status:          "pending",
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if m.DurationMinutes == 0 {
		m.DurationMinutes = 60
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertMeetGreetTx(ctx, tx, m); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "meet_greet.scheduled", "meet_greet", m.ID, opts.ActorID, events.EventPayload{
		"application_id": a.ID,
		"scheduled_at":   m.ScheduledAt,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	return m, nil
}

// ConfirmMeetGreet records one party's confirmation. Once both sides have
// confirmed, the schedule moves to confirmed.
func (e Engine) ConfirmMeetGreet(ctx context.Context, id, actorID string) (domain.MeetGreetSchedule, error) {
	m, err := e.Repo.GetMeetGreet(ctx, id)
	if err != nil {
		return m, err
	}
	if m.CompletedAt != nil {
		return m, conflictf("meet & greet %s is already completed", id)
	}
	a, err := e.Repo.GetApplication(ctx, m.ApplicationID)
	if err != nil {
		return m, err
	}
	ownerID, err := e.applicationParties(ctx, a)
	if err != nil {
		return m, err
	}
	switch actorID {
	case ownerID:
		m.ConfirmedByOwner = true
	case a.ApplicantID:
		m.ConfirmedByAdopter = true
	default:
		return m, deniedf("only the owner or applicant can confirm meet & greet %s", id)
	}
	if m.ConfirmedByOwner && m.ConfirmedByAdopter {
		m.Status = "confirmed"
	}
	m.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateMeetGreetTx(ctx, tx, m); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "meet_greet.confirmed", "meet_greet", m.ID, actorID, events.EventPayload{"status": m.Status}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	return m, nil
}

// CompleteMeetGreet closes out the meeting with an outcome. A success
// outcome advances the application; not_a_match rejects it. The record is
// immutable afterwards.
func (e Engine) CompleteMeetGreet(ctx context.Context, id, outcome, ownerNotes, adopterNotes, actorID string) (domain.MeetGreetSchedule, error) {
	switch outcome {
	case "success", "concerns", "not_a_match":
	default:
		return domain.MeetGreetSchedule{}, validationf("outcome must be one of success, concerns, not_a_match")
	}
	m, err := e.Repo.GetMeetGreet(ctx, id)
	if err != nil {
		return m, err
	}
	if m.CompletedAt != nil {
		return m, conflictf("meet & greet %s is already completed", id)
	}
	a, err := e.Repo.GetApplication(ctx, m.ApplicationID)
	if err != nil {
		return m, err
	}
	ownerID, err := e.applicationParties(ctx, a)
	if err != nil {
		return m, err
	}
	if actorID != ownerID {
		return m, deniedf("only the listing owner can complete meet & greet %s", id)
	}

	ts := e.nowRFC3339()
	m.Status = "completed"
	m.Outcome = outcome
	m.OwnerNotes = ownerNotes
	m.AdopterNotes = adopterNotes
	m.CompletedAt = &ts
	m.UpdatedAt = ts

	var target, reason string
	switch outcome {
	case "success":
		target = "meet_greet_success"
	case "not_a_match":
		target = "rejected"
		reason = "meet & greet outcome: not a match"
	}
	if target != "" {
		if err := ensureApplicationTransition(a.Status, target); err != nil {
			return m, err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateMeetGreetTx(ctx, tx, m); err != nil {
		return m, err
	}
	if target != "" {
		a.Status = target
		if reason != "" {
			a.RejectionReason = reason
		}
		a.UpdatedAt = ts
		if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
			if err == repo.ErrVersionConflict {
				return m, conflictf("application %s was modified concurrently", a.ID)
			}
			return m, err
		}
	}
	if err := e.Events.Append(ctx, tx, "meet_greet.completed", "meet_greet", m.ID, actorID, events.EventPayload{
		"outcome":        outcome,
		"application_id": a.ID,
	}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	return m, nil
}

// --- home checks ---

type HomeCheckScheduleOptions struct {
	ApplicationID string
	ScheduledAt   string
	PerformedBy   string
	ActorID       string
}

// ScheduleHomeCheck books a visit. An application still in
// meet_greet_success moves to home_check_pending as part of the booking.
func (e Engine) ScheduleHomeCheck(ctx context.Context, opts HomeCheckScheduleOptions) (domain.HomeCheck, error) {
	if _, err := time.Parse(time.RFC3339, opts.ScheduledAt); err != nil {
		return domain.HomeCheck{}, validationf("scheduled_at must be RFC3339")
	}
	a, err := e.Repo.GetApplication(ctx, opts.ApplicationID)
	if err != nil {
		return domain.HomeCheck{}, err
	}
	ownerID, err := e.applicationParties(ctx, a)
	if err != nil {
		return domain.HomeCheck{}, err
	}
	if opts.ActorID != ownerID {
		return domain.HomeCheck{}, deniedf("only the listing owner can schedule a home check")
	}
	switch a.Status {
	case "meet_greet_success", "home_check_pending":
	default:
		return domain.HomeCheck{}, preconditionf("application %s is %s; home check requires meet_greet_success", a.ID, a.Status)
	}

	ts := e.nowRFC3339()
	h := domain.HomeCheck{
		ID:            newID(),
		ApplicationID: a.ID,
		ScheduledAt:   opts.ScheduledAt,
		PerformedBy:   opts.PerformedBy,
		Status:        "scheduled",
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return h, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertHomeCheckTx(ctx, tx, h); err != nil {
		return h, err
	}
	if a.Status == "meet_greet_success" {
		if err := ensureApplicationTransition(a.Status, "home_check_pending"); err != nil {
			return h, err
		}
		a.Status = "home_check_pending"
		a.UpdatedAt = ts
		if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
			if err == repo.ErrVersionConflict {
				return h, conflictf("application %s was modified concurrently", a.ID)
			}
			return h, err
		}
	}
	if err := e.Events.Append(ctx, tx, "home_check.scheduled", "home_check", h.ID, opts.ActorID, events.EventPayload{
		"application_id": a.ID,
		"scheduled_at":   h.ScheduledAt,
	}); err != nil {
		return h, err
	}
	if err := tx.Commit(); err != nil {
		return h, err
	}
	return h, nil
}

// ComputeHomeCheckScore is the passing fraction of all checklist items,
// across categories, as a 0-100 integer.
func ComputeHomeCheckScore(checklist map[string]map[string]bool) int {
	total, passed := 0, 0
	for _, items := range checklist {
		for _, ok := range items {
			total++
			if ok {
				passed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return passed * 100 / total
}

// CompleteHomeCheck records the visit results. The caller decides pass or
// fail; a pass advances the application and a fail rejects it.
func (e Engine) CompleteHomeCheck(ctx context.Context, id string, checklist map[string]map[string]bool, passed bool, notes, actorID string) (domain.HomeCheck, error) {
	h, err := e.Repo.GetHomeCheck(ctx, id)
	if err != nil {
		return h, err
	}
	if h.CompletedAt != nil {
		return h, conflictf("home check %s is already completed", id)
	}
	a, err := e.Repo.GetApplication(ctx, h.ApplicationID)
	if err != nil {
		return h, err
	}
	ownerID, err := e.applicationParties(ctx, a)
	if err != nil {
		return h, err
	}
	if actorID != ownerID && actorID != h.PerformedBy {
		return h, deniedf("only the listing owner or assigned checker can complete home check %s", id)
	}

	target := "home_check_passed"
	reason := ""
	if !passed {
		target = "rejected"
		reason = "home check failed"
	}
	if err := ensureApplicationTransition(a.Status, target); err != nil {
		return h, err
	}

	ts := e.nowRFC3339()
	score := ComputeHomeCheckScore(checklist)
	h.Checklist = checklist
	h.OverallScore = &score
	h.Passed = &passed
	h.Notes = notes
	h.CompletedAt = &ts
	h.UpdatedAt = ts
	if passed {
		h.Status = "passed"
	} else {
		h.Status = "failed"
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return h, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateHomeCheckTx(ctx, tx, h); err != nil {
		return h, err
	}
	a.Status = target
	if reason != "" {
		a.RejectionReason = reason
	}
	a.UpdatedAt = ts
	if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
		if err == repo.ErrVersionConflict {
			return h, conflictf("application %s was modified concurrently", a.ID)
		}
		return h, err
	}
	if err := e.Events.Append(ctx, tx, "home_check.completed", "home_check", h.ID, actorID, events.EventPayload{
		"application_id": a.ID,
		"passed":         passed,
		"score":          score,
	}); err != nil {
		return h, err
	}
	if err := tx.Commit(); err != nil {
		return h, err
	}
	return h, nil
}

// --- visit notes ---

type VisitNoteOptions struct {
	ApplicationID string
	VisitType     string
	VisitDate     string
	Note          string
	ActorID       string
}

func (e Engine) AddVisitNote(ctx context.Context, opts VisitNoteOptions) (domain.VisitNote, error) {
	switch opts.VisitType {
	case "meet_greet", "home_check", "follow_up", "trial_period", "final_handoff", "other":
	default:
		return domain.VisitNote{}, validationf("visit_type must be one of meet_greet, home_check, follow_up, trial_period, final_handoff, other")
	}
	if opts.Note == "" {
		return domain.VisitNote{}, validationf("note is required")
	}
	a, err := e.Repo.GetApplication(ctx, opts.ApplicationID)
	if err != nil {
		return domain.VisitNote{}, err
	}
	ownerID, err := e.applicationParties(ctx, a)
	if err != nil {
		return domain.VisitNote{}, err
	}
	if opts.ActorID != ownerID && opts.ActorID != a.ApplicantID {
		return domain.VisitNote{}, deniedf("only the owner or applicant can add visit notes")
	}
	ts := e.nowRFC3339()
	visitDate := opts.VisitDate
	if visitDate == "" {
		visitDate = ts
	} else if _, err := time.Parse(time.RFC3339, visitDate); err != nil {
		return domain.VisitNote{}, validationf("visit_date must be RFC3339")
	}
	v := domain.VisitNote{
		ID:            newID(),
		ApplicationID: a.ID,
		VisitType:     opts.VisitType,
		VisitDate:     visitDate,
		Note:          opts.Note,
		CreatedBy:     opts.ActorID,
		CreatedAt:     ts,
	}
	if err := e.Repo.InsertVisitNote(ctx, v); err != nil {
		return domain.VisitNote{}, fmt.Errorf("insert visit note: %w", err)
	}
	return v, nil
}
