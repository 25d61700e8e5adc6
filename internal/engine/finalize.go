package engine

import (
	"context"
	"time"

	"homeward/internal/domain"
	"homeward/internal/events"
	"homeward/internal/repo"
)

const siblingRejectionReason = "pet already adopted by another applicant"

// FinalizeResult is the outcome of the adoption cascade.
type FinalizeResult struct {
	Application      domain.AdoptionApplication `json:"application"`
	Listing          domain.RehomingListing     `json:"listing"`
	Contract         domain.AdoptionContract    `json:"contract"`
	Payment          domain.AdoptionPayment     `json:"payment"`
	RejectedSiblings int                        `json:"rejected_siblings"`
}

// FinalizeApplication accepts one ready application and, in a single
// transaction: marks it adopted, marks the listing and pet rehomed, rejects
// every other open application on the listing, and creates the draft
// contract and pending payment. Concurrent finalizers lose with Conflict.
func (e Engine) FinalizeApplication(ctx context.Context, id, actorID string) (FinalizeResult, error) {
	var result FinalizeResult
	a, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return result, err
	}
	l, err := e.Repo.GetListing(ctx, a.ListingID)
	if err != nil {
		return result, err
	}
	if l.OwnerID != actorID {
		return result, deniedf("only the listing owner can finalize application %s", id)
	}
	// The listing check comes first: once a sibling has won, repeat calls on
	// the winner or a rejected sibling are a lost race, not a bad precondition.
	switch l.Status {
	case "active", "under_review":
	default:
		return result, conflictf("listing %s is %s; it can no longer be finalized", l.ID, l.Status)
	}
	if a.Status != "ready_for_adoption" {
		return result, preconditionf("application %s is %s; finalize requires ready_for_adoption", id, a.Status)
	}
	if err := ensureApplicationTransition(a.Status, "adopted"); err != nil {
		return result, err
	}
	if err := ensureListingTransition(l.Status, "rehomed"); err != nil {
		return result, err
	}

	now := e.now().UTC()
	ts := now.Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	a.Status = "adopted"
	a.UpdatedAt = ts
	if err := e.Repo.UpdateApplicationTx(ctx, tx, a); err != nil {
		if err == repo.ErrVersionConflict {
			return result, conflictf("application %s was modified concurrently", a.ID)
		}
		return result, err
	}

	l.Status = "rehomed"
	l.RehomedAt = &ts
	l.UpdatedAt = ts
	if err := e.Repo.UpdateListingTx(ctx, tx, l); err != nil {
		if err == repo.ErrVersionConflict {
			return result, conflictf("listing %s was modified concurrently", l.ID)
		}
		return result, err
	}

	if err := e.Repo.UpdatePetStatusTx(ctx, tx, l.PetID, "rehomed", ts); err != nil {
		return result, err
	}

	rejected, err := e.Repo.RejectOpenSiblingsTx(ctx, tx, l.ID, a.ID, siblingRejectionReason, ts)
	if err != nil {
		return result, err
	}

	contract := domain.AdoptionContract{
		ID:            newID(),
		ApplicationID: a.ID,
		Status:        "draft",
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if err := e.Repo.InsertContractTx(ctx, tx, contract); err != nil {
		return result, err
	}
	payment := domain.AdoptionPayment{
		ID:            newID(),
		ApplicationID: a.ID,
		Amount:        l.AdoptionFee,
		Status:        "pending",
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if err := e.Repo.InsertPaymentTx(ctx, tx, payment); err != nil {
		return result, err
	}

	if err := e.Events.Append(ctx, tx, "application.adopted", "application", a.ID, actorID, events.EventPayload{
		"listing_id":        l.ID,
		"rejected_siblings": rejected,
	}); err != nil {
		return result, err
	}
	if err := e.Events.Append(ctx, tx, "listing.rehomed", "listing", l.ID, actorID, events.EventPayload{
		"application_id": a.ID,
	}); err != nil {
		return result, err
	}
	if err := tx.Commit(); err != nil {
		return result, err
	}
	a.Version++
	l.Version++
	return FinalizeResult{
		Application:      a,
		Listing:          l,
		Contract:         contract,
		Payment:          payment,
		RejectedSiblings: rejected,
	}, nil
}

// SignContract records one party's signature. The contract moves to
// partially_signed on the first signature and signed once both are in.
func (e Engine) SignContract(ctx context.Context, contractID, actorID, signatureIP string) (domain.AdoptionContract, error) {
	c, err := e.Repo.GetContract(ctx, contractID)
	if err != nil {
		return c, err
	}
	a, err := e.Repo.GetApplication(ctx, c.ApplicationID)
	if err != nil {
		return c, err
	}
	ownerID, err := e.applicationParties(ctx, a)
	if err != nil {
		return c, err
	}
	ts := e.nowRFC3339()
	switch actorID {
	case ownerID:
		if c.OwnerSignedAt != nil {
			return c, conflictf("owner has already signed contract %s", contractID)
		}
		c.OwnerSignedAt = &ts
		c.OwnerSignatureIP = signatureIP
	case a.ApplicantID:
		if c.AdopterSignedAt != nil {
			return c, conflictf("adopter has already signed contract %s", contractID)
		}
		c.AdopterSignedAt = &ts
		c.AdopterSignatureIP = signatureIP
	default:
		return c, deniedf("only the owner or adopter can sign contract %s", contractID)
	}
	if c.OwnerSignedAt != nil && c.AdopterSignedAt != nil {
		c.Status = "signed"
	} else {
		c.Status = "partially_signed"
	}
	c.UpdatedAt = ts

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateContractTx(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "contract.signed", "contract", c.ID, actorID, events.EventPayload{"status": c.Status}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

// SetPaymentStatus records externally-settled payment state. Releasing the
// fee requires a fully signed contract.
func (e Engine) SetPaymentStatus(ctx context.Context, paymentID, status, actorID string) (domain.AdoptionPayment, error) {
	switch status {
	case "pending", "escrow", "released", "refunded":
	default:
		return domain.AdoptionPayment{}, validationf("status must be one of pending, escrow, released, refunded")
	}
	p, err := e.Repo.GetPayment(ctx, paymentID)
	if err != nil {
		return p, err
	}
	if status == "released" {
		c, err := e.Repo.GetContractByApplication(ctx, p.ApplicationID)
		if err != nil {
			if err == repo.ErrNotFound {
				return p, preconditionf("no contract exists for application %s", p.ApplicationID)
			}
			return p, err
		}
		if c.Status != "signed" {
			return p, preconditionf("contract %s is %s; payment release requires a fully signed contract", c.ID, c.Status)
		}
	}
	p.Status = status
	p.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdatePaymentTx(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "payment.status_changed", "payment", p.ID, actorID, events.EventPayload{"status": status}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}
