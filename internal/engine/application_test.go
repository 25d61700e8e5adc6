package engine

import (
	"errors"
	"testing"
	"time"

	"homeward/internal/domain"
)

// adopter creates a verified user with a saved adopter profile.
func (env *testEnv) adopter(t *testing.T, name string) domain.User {
	t.Helper()
	u := env.user(t, name, true)
	if _, err := env.Engine.UpsertAdopterProfile(env.Ctx, ProfileUpsertOptions{
		UserID:          u.ID,
		HousingType:     "house_with_yard",
		AdultsCount:     2,
		ExperienceYears: 5,
		ReferencesCount: 2,
	}); err != nil {
		t.Fatalf("upsert profile for %s: %v", name, err)
	}
	return u
}

func (env *testEnv) application(t *testing.T, listingID, applicantID string) domain.AdoptionApplication {
	t.Helper()
	a, err := env.Engine.SubmitApplication(env.Ctx, ApplicationSubmitOptions{
		ListingID:   listingID,
		ApplicantID: applicantID,
		Message:     "we would love to give Biscuit a home",
	})
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}
	return a
}

// readyApplication walks an application through meet & greet and home check
// to ready_for_adoption.
func (env *testEnv) readyApplication(t *testing.T, a domain.AdoptionApplication, ownerID string) domain.AdoptionApplication {
	t.Helper()
	a, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "approved_meet_greet", "", ownerID)
	if err != nil {
		t.Fatalf("approve meet greet: %v", err)
	}
	m, err := env.Engine.ScheduleMeetGreet(env.Ctx, MeetGreetScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       ownerID,
	})
	if err != nil {
		t.Fatalf("schedule meet greet: %v", err)
	}
	if _, err := env.Engine.CompleteMeetGreet(env.Ctx, m.ID, "success", "went well", "", ownerID); err != nil {
		t.Fatalf("complete meet greet: %v", err)
	}
	h, err := env.Engine.ScheduleHomeCheck(env.Ctx, HomeCheckScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       ownerID,
	})
	if err != nil {
		t.Fatalf("schedule home check: %v", err)
	}
	checklist := map[string]map[string]bool{
		"safety": {"fenced_yard": true, "no_hazards": true},
	}
	if _, err := env.Engine.CompleteHomeCheck(env.Ctx, h.ID, checklist, true, "", ownerID); err != nil {
		t.Fatalf("complete home check: %v", err)
	}
	a, err = env.Engine.AdvanceApplication(env.Ctx, a.ID, "ready_for_adoption", "", ownerID)
	if err != nil {
		t.Fatalf("advance to ready: %v", err)
	}
	return a
}

func TestSubmitApplication(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")

	a := env.application(t, l.ID, adopter.ID)
	if a.Status != "pending_review" {
		t.Fatalf("status = %s, want pending_review", a.Status)
	}
	// match score snapshots the profile readiness score
	p, err := env.Engine.Repo.GetProfile(env.Ctx, adopter.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if a.MatchScore != p.ReadinessScore {
		t.Fatalf("match score = %d, profile readiness = %d", a.MatchScore, p.ReadinessScore)
	}

	got, err := env.Engine.Repo.GetListing(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.InquiryCount != 1 {
		t.Fatalf("inquiry count = %d, want 1", got.InquiryCount)
	}
}

func TestSubmitApplicationMatchScoreIsSnapshot(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")

	a := env.application(t, l.ID, adopter.ID)
	before := a.MatchScore

	// upgrading the profile must not touch the submitted application
	if _, err := env.Engine.UpsertAdopterProfile(env.Ctx, ProfileUpsertOptions{
		UserID:               adopter.ID,
		HousingType:          "house_with_yard",
		AdultsCount:          2,
		ExperienceYears:      10,
		DailyExerciseMinutes: 180,
		ReferencesCount:      5,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := env.Engine.Repo.GetApplication(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MatchScore != before {
		t.Fatalf("match score changed from %d to %d after profile edit", before, got.MatchScore)
	}
}

func TestSubmitApplicationGuards(t *testing.T) {
	env := newTestEnv(t)
	owner := env.adopter(t, "owner")
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")

	// owner cannot apply to their own listing
	_, err := env.Engine.SubmitApplication(env.Ctx, ApplicationSubmitOptions{ListingID: l.ID, ApplicantID: owner.ID})
	var derr PermissionDeniedError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}

	// no profile, no application
	stranger := env.user(t, "stranger", true)
	_, err = env.Engine.SubmitApplication(env.Ctx, ApplicationSubmitOptions{ListingID: l.ID, ApplicantID: stranger.ID})
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	// duplicates conflict
	env.application(t, l.ID, adopter.ID)
	_, err = env.Engine.SubmitApplication(env.Ctx, ApplicationSubmitOptions{ListingID: l.ID, ApplicantID: adopter.ID})
	var cerr ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}

	// paused listing refuses applications
	if _, err := env.Engine.UpdateListingStatus(env.Ctx, l.ID, "paused", owner.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	adopter2 := env.adopter(t, "adopter2")
	_, err = env.Engine.SubmitApplication(env.Ctx, ApplicationSubmitOptions{ListingID: l.ID, ApplicantID: adopter2.ID})
	var perr PreconditionNotMetError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionNotMetError", err)
	}
}

func TestAdvanceApplicationOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	_, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "approved_meet_greet", "", adopter.ID)
	var derr PermissionDeniedError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
}

func TestAdvanceApplicationBlocksAdopted(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)
	a = env.readyApplication(t, a, owner.ID)

	_, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "adopted", "", owner.ID)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestAdvanceApplicationInfoLoop(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	a, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "info_requested", "", owner.ID)
	if err != nil {
		t.Fatalf("request info: %v", err)
	}
	a, err = env.Engine.AdvanceApplication(env.Ctx, a.ID, "pending_review", "", owner.ID)
	if err != nil {
		t.Fatalf("back to review: %v", err)
	}

	// skipping straight to home_check_pending is not allowed
	_, err = env.Engine.AdvanceApplication(env.Ctx, a.ID, "home_check_pending", "", owner.ID)
	var terr InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestRejectApplicationRecordsReason(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	a, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "rejected", "household not a fit", owner.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if a.RejectionReason != "household not a fit" {
		t.Fatalf("reason = %q", a.RejectionReason)
	}
}

func TestWithdrawApplication(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	// owner cannot withdraw on the applicant's behalf
	_, err := env.Engine.WithdrawApplication(env.Ctx, a.ID, owner.ID)
	var derr PermissionDeniedError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}

	a, err = env.Engine.WithdrawApplication(env.Ctx, a.ID, adopter.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if a.Status != "withdrawn" {
		t.Fatalf("status = %s, want withdrawn", a.Status)
	}

	// withdrawn is terminal
	_, err = env.Engine.WithdrawApplication(env.Ctx, a.ID, adopter.ID)
	var terr InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestMeetGreetFlow(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	// cannot schedule before approval
	_, err := env.Engine.ScheduleMeetGreet(env.Ctx, MeetGreetScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       owner.ID,
	})
	var perr PreconditionNotMetError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionNotMetError", err)
	}

	if _, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "approved_meet_greet", "", owner.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	m, err := env.Engine.ScheduleMeetGreet(env.Ctx, MeetGreetScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       adopter.ID,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if m.LocationType != "public_place" || m.DurationMinutes != 60 {
		t.Fatalf("defaults not applied: %+v", m)
	}

	m, err = env.Engine.ConfirmMeetGreet(env.Ctx, m.ID, owner.ID)
	if err != nil {
		t.Fatalf("owner confirm: %v", err)
	}
	if m.Status == "confirmed" {
		t.Fatal("one-sided confirmation should not confirm the schedule")
	}
	m, err = env.Engine.ConfirmMeetGreet(env.Ctx, m.ID, adopter.ID)
	if err != nil {
		t.Fatalf("adopter confirm: %v", err)
	}
	if m.Status != "confirmed" {
		t.Fatalf("status = %s, want confirmed", m.Status)
	}

	// only the owner can complete
	_, err = env.Engine.CompleteMeetGreet(env.Ctx, m.ID, "success", "", "", adopter.ID)
	var derr PermissionDeniedError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}

	m, err = env.Engine.CompleteMeetGreet(env.Ctx, m.ID, "success", "lovely visit", "", owner.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := env.Engine.Repo.GetApplication(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if got.Status != "meet_greet_success" {
		t.Fatalf("application status = %s, want meet_greet_success", got.Status)
	}

	// completed records are immutable
	_, err = env.Engine.CompleteMeetGreet(env.Ctx, m.ID, "concerns", "", "", owner.ID)
	var cerr ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestMeetGreetNotAMatchRejects(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	if _, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "approved_meet_greet", "", owner.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	m, err := env.Engine.ScheduleMeetGreet(env.Ctx, MeetGreetScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       owner.ID,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := env.Engine.CompleteMeetGreet(env.Ctx, m.ID, "not_a_match", "", "", owner.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := env.Engine.Repo.GetApplication(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "rejected" {
		t.Fatalf("status = %s, want rejected", got.Status)
	}
	if got.RejectionReason == "" {
		t.Fatal("rejection reason should be recorded")
	}
}

func TestHomeCheckFlow(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	if _, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "approved_meet_greet", "", owner.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	m, err := env.Engine.ScheduleMeetGreet(env.Ctx, MeetGreetScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       owner.ID,
	})
	if err != nil {
		t.Fatalf("schedule meet greet: %v", err)
	}
	if _, err := env.Engine.CompleteMeetGreet(env.Ctx, m.ID, "success", "", "", owner.ID); err != nil {
		t.Fatalf("complete meet greet: %v", err)
	}

	h, err := env.Engine.ScheduleHomeCheck(env.Ctx, HomeCheckScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       owner.ID,
	})
	if err != nil {
		t.Fatalf("schedule home check: %v", err)
	}
	// booking auto-advances the application
	got, err := env.Engine.Repo.GetApplication(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "home_check_pending" {
		t.Fatalf("status = %s, want home_check_pending", got.Status)
	}

	checklist := map[string]map[string]bool{
		"safety":  {"fenced_yard": true, "no_hazards": true, "secure_windows": false},
		"comfort": {"sleeping_area": true},
	}
	h, err = env.Engine.CompleteHomeCheck(env.Ctx, h.ID, checklist, true, "minor fixes needed", owner.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if h.Status != "passed" {
		t.Fatalf("home check status = %s, want passed", h.Status)
	}
	if h.OverallScore == nil || *h.OverallScore != 75 {
		t.Fatalf("overall score = %v, want 75", h.OverallScore)
	}
	got, err = env.Engine.Repo.GetApplication(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "home_check_passed" {
		t.Fatalf("status = %s, want home_check_passed", got.Status)
	}
}

func TestHomeCheckFailureRejects(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	if _, err := env.Engine.AdvanceApplication(env.Ctx, a.ID, "approved_meet_greet", "", owner.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	m, err := env.Engine.ScheduleMeetGreet(env.Ctx, MeetGreetScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       owner.ID,
	})
	if err != nil {
		t.Fatalf("schedule meet greet: %v", err)
	}
	if _, err := env.Engine.CompleteMeetGreet(env.Ctx, m.ID, "success", "", "", owner.ID); err != nil {
		t.Fatalf("complete meet greet: %v", err)
	}
	h, err := env.Engine.ScheduleHomeCheck(env.Ctx, HomeCheckScheduleOptions{
		ApplicationID: a.ID,
		ScheduledAt:   env.now.Format(time.RFC3339),
		ActorID:       owner.ID,
	})
	if err != nil {
		t.Fatalf("schedule home check: %v", err)
	}

	h, err = env.Engine.CompleteHomeCheck(env.Ctx, h.ID, map[string]map[string]bool{
		"safety": {"fenced_yard": false},
	}, false, "unsafe balcony", owner.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if h.Status != "failed" {
		t.Fatalf("home check status = %s, want failed", h.Status)
	}
	got, err := env.Engine.Repo.GetApplication(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "rejected" || got.RejectionReason != "home check failed" {
		t.Fatalf("application = %s / %q", got.Status, got.RejectionReason)
	}
}

func TestAddVisitNote(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	v, err := env.Engine.AddVisitNote(env.Ctx, VisitNoteOptions{
		ApplicationID: a.ID,
		VisitType:     "follow_up",
		Note:          "settled in nicely",
		ActorID:       adopter.ID,
	})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if v.CreatedBy != adopter.ID {
		t.Fatalf("created_by = %s", v.CreatedBy)
	}

	stranger := env.user(t, "stranger", true)
	_, err = env.Engine.AddVisitNote(env.Ctx, VisitNoteOptions{
		ApplicationID: a.ID,
		VisitType:     "follow_up",
		Note:          "nope",
		ActorID:       stranger.ID,
	})
	var derr PermissionDeniedError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
}
