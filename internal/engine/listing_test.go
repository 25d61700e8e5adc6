package engine

import (
	"errors"
	"strings"
	"testing"
	"time"

	"homeward/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func (env *testEnv) listingOptions(requestID, ownerID string) ListingCreateOptions {
	return ListingCreateOptions{
		RequestID:           requestID,
		RehomingStory:       strings.Repeat("Biscuit is a gentle beagle who loves long walks. ", 25),
		Medical:             domain.MedicalProfile{Vaccinated: true, VaccinationRecordRef: "doc-123", SpayedNeutered: true},
		Behavioral:          domain.BehavioralProfile{GoodWithChildren: boolPtr(true), EnergyLevel: "medium", HouseTrained: true},
		AggressionDisclosed: boolPtr(false),
		AdoptionFee:         120,
		Photos:              []string{"p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg", "p5.jpg"},
		ActorID:             ownerID,
	}
}

// activeListing drives one pet through the full path to an active listing.
func (env *testEnv) activeListing(t *testing.T, ownerID string) domain.RehomingListing {
	t.Helper()
	pet := env.pet(t, ownerID)
	env.readyOwner(t, ownerID)
	req := env.confirmedRequest(t, ownerID, pet.ID)
	l, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, ownerID))
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	l, err = env.Engine.DecideListing(env.Ctx, l.ID, "approved", "moderator")
	if err != nil {
		t.Fatalf("approve listing: %v", err)
	}
	return l
}

func TestCreateListingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	pet := env.pet(t, owner.ID)
	env.readyOwner(t, owner.ID)
	req := env.confirmedRequest(t, owner.ID, pet.ID)

	l, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != "pending_review" {
		t.Fatalf("status = %s, want pending_review", l.Status)
	}
	if l.PetName != "Biscuit" || l.Species != "dog" {
		t.Fatalf("pet snapshot not copied: %+v", l)
	}
	if l.PublishedAt == nil || l.ExpiresAt == nil {
		t.Fatal("published_at and expires_at should be set")
	}
	pub, _ := time.Parse(time.RFC3339, *l.PublishedAt)
	exp, _ := time.Parse(time.RFC3339, *l.ExpiresAt)
	if exp.Sub(pub) != 90*24*time.Hour {
		t.Fatalf("expiry window = %v, want 90 days", exp.Sub(pub))
	}

	got, err := env.Engine.Repo.GetPet(env.Ctx, pet.ID)
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	if got.Status != "rehoming" {
		t.Fatalf("pet status = %s, want rehoming", got.Status)
	}

	// review is created alongside
	rev, err := env.Engine.Repo.GetReviewByListing(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if rev.Decision != "pending" {
		t.Fatalf("decision = %s, want pending", rev.Decision)
	}
	if rev.QualityScore < 0 || rev.QualityScore > 100 {
		t.Fatalf("quality score out of range: %d", rev.QualityScore)
	}
}

func TestCreateListingFeeOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	pet := env.pet(t, owner.ID)
	env.readyOwner(t, owner.ID)
	req := env.confirmedRequest(t, owner.ID, pet.ID)

	opts := env.listingOptions(req.ID, owner.ID)
	opts.AdoptionFee = 350
	_, err := env.Engine.CreateListing(env.Ctx, opts)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestCreateListingRequiresConfirmedRequest(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	pet := env.pet(t, owner.ID)
	env.readyOwner(t, owner.ID)

	req, err := env.Engine.CreateRequest(env.Ctx, RequestCreateOptions{
		PetID:         pet.ID,
		OwnerID:       owner.ID,
		Urgency:       "immediate",
		TermsAccepted: true,
		ActorID:       owner.ID,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	_, err = env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID))
	var perr PreconditionNotMetError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionNotMetError", err)
	}
}

func TestCreateListingBlockedByCoolingOff(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	pet := env.pet(t, owner.ID)

	iv, err := env.Engine.StartIntervention(env.Ctx, owner.ID, "moving", "", "soon", owner.ID)
	if err != nil {
		t.Fatalf("start intervention: %v", err)
	}
	if _, err := env.Engine.AcknowledgeIntervention(env.Ctx, iv.ID, owner.ID); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	req := env.confirmedRequest(t, owner.ID, pet.ID)

	_, err = env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID))
	var perr PreconditionNotMetError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionNotMetError", err)
	}
	if perr.SecondsRemaining <= 0 {
		t.Fatalf("SecondsRemaining = %d, want > 0", perr.SecondsRemaining)
	}

	env.advance(49 * time.Hour)
	if _, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID)); err != nil {
		t.Fatalf("create after cooling: %v", err)
	}
}

func TestCreateListingDuplicateConflicts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	pet := env.pet(t, owner.ID)
	env.readyOwner(t, owner.ID)
	req := env.confirmedRequest(t, owner.ID, pet.ID)

	if _, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID)); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID))
	var cerr ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestOneActiveListingPerPet(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	pet := env.pet(t, owner.ID)
	env.readyOwner(t, owner.ID)
	req := env.confirmedRequest(t, owner.ID, pet.ID)

	if _, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// second confirmed request for the same pet
	req2 := env.confirmedRequest(t, owner.ID, pet.ID)
	_, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req2.ID, owner.ID))
	var cerr ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestDecideListing(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	pet := env.pet(t, owner.ID)
	env.readyOwner(t, owner.ID)
	req := env.confirmedRequest(t, owner.ID, pet.ID)
	l, err := env.Engine.CreateListing(env.Ctx, env.listingOptions(req.ID, owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	l, err = env.Engine.DecideListing(env.Ctx, l.ID, "approved", "moderator")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if l.Status != "active" {
		t.Fatalf("status = %s, want active", l.Status)
	}
	rev, err := env.Engine.Repo.GetReviewByListing(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if rev.Decision != "approved" || rev.ReviewerID != "moderator" || rev.DecidedAt == nil {
		t.Fatalf("review not updated: %+v", rev)
	}

	// deciding twice is an invalid transition
	_, err = env.Engine.DecideListing(env.Ctx, l.ID, "rejected", "moderator")
	var terr InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestListingStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)

	l, err := env.Engine.UpdateListingStatus(env.Ctx, l.ID, "paused", owner.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if l.Status != "paused" || l.PausedAt == nil {
		t.Fatalf("pause not recorded: %+v", l)
	}

	l, err = env.Engine.UpdateListingStatus(env.Ctx, l.ID, "active", owner.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	// paused cannot go under_review
	if _, err := env.Engine.UpdateListingStatus(env.Ctx, l.ID, "paused", owner.ID); err != nil {
		t.Fatalf("pause again: %v", err)
	}
	_, err = env.Engine.UpdateListingStatus(env.Ctx, l.ID, "under_review", owner.ID)
	var terr InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}

	l, err = env.Engine.UpdateListingStatus(env.Ctx, l.ID, "closed", owner.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	// closed is terminal
	_, err = env.Engine.UpdateListingStatus(env.Ctx, l.ID, "active", owner.ID)
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestExpireStaleClosesListings(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)

	env.advance(91 * 24 * time.Hour)
	res, err := env.Engine.ExpireStale(env.Ctx, "sweeper")
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if res.ClosedListings != 1 {
		t.Fatalf("ClosedListings = %d, want 1", res.ClosedListings)
	}
	got, err := env.Engine.Repo.GetListing(env.Ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "closed" {
		t.Fatalf("status = %s, want closed", got.Status)
	}
}
