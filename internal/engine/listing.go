package engine

import (
	"context"
	"fmt"
	"time"

	"homeward/internal/domain"
	"homeward/internal/events"
	"homeward/internal/repo"
)

type ListingCreateOptions struct {
	RequestID           string
	RehomingStory       string
	Medical             domain.MedicalProfile
	Behavioral          domain.BehavioralProfile
	AggressionDisclosed *bool
	AdoptionFee         int
	Photos              []string
	ActorID             string
}

// CreateListing materializes a listing from a confirmed request. The owner's
// latest intervention must permit it, the request must be confirmed, and the
// pet must not already have a live listing.
func (e Engine) CreateListing(ctx context.Context, opts ListingCreateOptions) (domain.RehomingListing, error) {
	req, err := e.Repo.GetRequest(ctx, opts.RequestID)
	if err != nil {
		return domain.RehomingListing{}, err
	}
	if req.OwnerID != opts.ActorID {
		return domain.RehomingListing{}, deniedf("only the owner can create a listing for request %s", req.ID)
	}
	if req.Status != "confirmed" {
		return domain.RehomingListing{}, preconditionf("request %s is %s; it must be confirmed before listing", req.ID, req.Status)
	}
	maxFee := e.Config.Listing.MaxAdoptionFee
	if maxFee == 0 {
		maxFee = 300
	}
	if opts.AdoptionFee < 0 || opts.AdoptionFee > maxFee {
		return domain.RehomingListing{}, validationf("adoption_fee must be between 0 and %d", maxFee)
	}

	iv, err := e.Repo.LatestInterventionForOwner(ctx, req.OwnerID)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.RehomingListing{}, preconditionf("owner %s has not completed the rehoming intervention", req.OwnerID)
		}
		return domain.RehomingListing{}, err
	}
	if ok, remaining := e.CanProceedToListing(iv); !ok {
		if remaining > 0 {
			return domain.RehomingListing{}, PreconditionNotMetError{
				Msg:              "cooling-off period has not elapsed",
				SecondsRemaining: remaining,
			}
		}
		return domain.RehomingListing{}, preconditionf("intervention %s has not been acknowledged", iv.ID)
	}

	if _, err := e.Repo.GetListingByRequest(ctx, req.ID); err == nil {
		return domain.RehomingListing{}, conflictf("a listing already exists for request %s", req.ID)
	} else if err != repo.ErrNotFound {
		return domain.RehomingListing{}, err
	}
	exists, err := e.Repo.ActiveListingExistsForPet(ctx, req.PetID)
	if err != nil {
		return domain.RehomingListing{}, err
	}
	if exists {
		return domain.RehomingListing{}, conflictf("pet %s already has an active listing", req.PetID)
	}

	pet, err := e.Repo.GetPet(ctx, req.PetID)
	if err != nil {
		return domain.RehomingListing{}, err
	}
	owner, err := e.Repo.GetUser(ctx, req.OwnerID)
	if err != nil {
		return domain.RehomingListing{}, err
	}

	now := e.now().UTC()
	ts := now.Format(time.RFC3339)
	days := e.Config.Listing.DurationDays
	if days == 0 {
		days = 90
	}
	expires := now.Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	status := "active"
	if e.Config.ModerationEnabled() {
		status = "pending_review"
	}
	l := domain.RehomingListing{
		ID:                  newID(),
		RequestID:           req.ID,
		PetID:               pet.ID,
		OwnerID:             req.OwnerID,
		PetName:             pet.Name,
		Species:             pet.Species,
		Breed:               pet.Breed,
		AgeYears:            pet.AgeYears,
		Gender:              pet.Gender,
		RehomingStory:       opts.RehomingStory,
		Medical:             opts.Medical,
		Behavioral:          opts.Behavioral,
		AggressionDisclosed: opts.AggressionDisclosed,
		AdoptionFee:         opts.AdoptionFee,
		Photos:              opts.Photos,
		LocationCity:        req.LocationCity,
		LocationState:       req.LocationState,
		LocationZip:         req.LocationZip,
		Status:              status,
		PublishedAt:         &ts,
		ExpiresAt:           &expires,
		Version:             1,
		CreatedAt:           ts,
		UpdatedAt:           ts,
	}

	checks, redFlags := e.RunAutomatedChecks(l, owner)
	rev := domain.ListingReview{
		ID:           newID(),
		ListingID:    l.ID,
		Checks:       checks,
		RedFlags:     redFlags,
		QualityScore: ComputeQualityScore(checks, redFlags),
		Decision:     "pending",
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RehomingListing{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertListingTx(ctx, tx, l); err != nil {
		return domain.RehomingListing{}, fmt.Errorf("insert listing: %w", err)
	}
	if err := e.Repo.UpsertReviewTx(ctx, tx, rev); err != nil {
		return domain.RehomingListing{}, fmt.Errorf("insert review: %w", err)
	}
	if pet.Status != "rehoming" {
		if err := e.Repo.UpdatePetStatusTx(ctx, tx, pet.ID, "rehoming", ts); err != nil {
			return domain.RehomingListing{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "listing.created", "listing", l.ID, opts.ActorID, events.EventPayload{
		"request_id":    req.ID,
		"pet_id":        pet.ID,
		"status":        l.Status,
		"quality_score": rev.QualityScore,
	}); err != nil {
		return domain.RehomingListing{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RehomingListing{}, err
	}
	return l, nil
}

// RunModeration reruns the automated checks and refreshes the review record.
// Advisory only; it never changes the listing status.
func (e Engine) RunModeration(ctx context.Context, listingID, actorID string) (domain.ListingReview, error) {
	l, err := e.Repo.GetListing(ctx, listingID)
	if err != nil {
		return domain.ListingReview{}, err
	}
	owner, err := e.Repo.GetUser(ctx, l.OwnerID)
	if err != nil {
		return domain.ListingReview{}, err
	}
	checks, redFlags := e.RunAutomatedChecks(l, owner)
	ts := e.nowRFC3339()
	rev := domain.ListingReview{
		ID:           newID(),
		ListingID:    l.ID,
		Checks:       checks,
		RedFlags:     redFlags,
		QualityScore: ComputeQualityScore(checks, redFlags),
		Decision:     "pending",
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if existing, err := e.Repo.GetReviewByListing(ctx, l.ID); err == nil {
		rev.ID = existing.ID
		rev.Decision = existing.Decision
		rev.DecidedAt = existing.DecidedAt
		rev.ReviewerID = existing.ReviewerID
		rev.CreatedAt = existing.CreatedAt
	} else if err != repo.ErrNotFound {
		return domain.ListingReview{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ListingReview{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpsertReviewTx(ctx, tx, rev); err != nil {
		return domain.ListingReview{}, err
	}
	if err := e.Events.Append(ctx, tx, "listing.moderated", "review", rev.ID, actorID, events.EventPayload{
		"listing_id":    l.ID,
		"quality_score": rev.QualityScore,
		"red_flags":     len(redFlags),
	}); err != nil {
		return domain.ListingReview{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ListingReview{}, err
	}
	return rev, nil
}

// DecideListing applies the human moderation decision on a pending listing.
func (e Engine) DecideListing(ctx context.Context, listingID, decision, reviewerID string) (domain.RehomingListing, error) {
	var target string
	switch decision {
	case "approved":
		target = "active"
	case "rejected":
		target = "rejected"
	default:
		return domain.RehomingListing{}, validationf("decision must be approved or rejected")
	}
	l, err := e.Repo.GetListing(ctx, listingID)
	if err != nil {
		return l, err
	}
	if err := ensureListingTransition(l.Status, target); err != nil {
		return l, err
	}
	ts := e.nowRFC3339()
	l.Status = target
	l.UpdatedAt = ts

	rev, err := e.Repo.GetReviewByListing(ctx, l.ID)
	if err != nil && err != repo.ErrNotFound {
		return l, err
	}
	rev.ListingID = l.ID
	if rev.ID == "" {
		rev.ID = newID()
		rev.CreatedAt = ts
	}
	rev.Decision = decision
	rev.ReviewerID = reviewerID
	rev.DecidedAt = &ts
	rev.UpdatedAt = ts
	if rev.Checks == nil {
		rev.Checks = map[string]bool{}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateListingTx(ctx, tx, l); err != nil {
		if err == repo.ErrVersionConflict {
			return l, conflictf("listing %s was modified concurrently", l.ID)
		}
		return l, err
	}
	if err := e.Repo.UpsertReviewTx(ctx, tx, rev); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "listing.decided", "listing", l.ID, reviewerID, events.EventPayload{
		"decision": decision,
		"status":   l.Status,
	}); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	l.Version++
	return l, nil
}

// UpdateListingStatus applies an owner-initiated transition: pause, resume,
// close, or flag under_review. rehomed is reserved for finalization.
func (e Engine) UpdateListingStatus(ctx context.Context, listingID, target, actorID string) (domain.RehomingListing, error) {
	if target == "rehomed" {
		return domain.RehomingListing{}, validationf("rehomed is set by finalizing an application")
	}
	l, err := e.Repo.GetListing(ctx, listingID)
	if err != nil {
		return l, err
	}
	if l.OwnerID != actorID {
		return l, deniedf("only the owner can change listing %s", listingID)
	}
	if err := ensureListingTransition(l.Status, target); err != nil {
		return l, err
	}
	ts := e.nowRFC3339()
	l.Status = target
	l.UpdatedAt = ts
	switch target {
	case "paused":
		l.PausedAt = &ts
	case "closed":
		l.ClosedAt = &ts
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateListingTx(ctx, tx, l); err != nil {
		if err == repo.ErrVersionConflict {
			return l, conflictf("listing %s was modified concurrently", l.ID)
		}
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "listing.status_changed", "listing", l.ID, actorID, events.EventPayload{"status": target}); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	l.Version++
	return l, nil
}
