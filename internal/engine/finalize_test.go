package engine

import (
	"errors"
	"testing"
)

func TestFinalizeApplication(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)

	winner := env.adopter(t, "winner")
	loser1 := env.adopter(t, "loser1")
	loser2 := env.adopter(t, "loser2")
	a := env.application(t, l.ID, winner.ID)
	b := env.application(t, l.ID, loser1.ID)
	c := env.application(t, l.ID, loser2.ID)
	a = env.readyApplication(t, a, owner.ID)

	res, err := env.Engine.FinalizeApplication(env.Ctx, a.ID, owner.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Application.Status != "adopted" {
		t.Fatalf("application = %s, want adopted", res.Application.Status)
	}
	if res.Listing.Status != "rehomed" {
		t.Fatalf("listing = %s, want rehomed", res.Listing.Status)
	}
	if res.RejectedSiblings != 2 {
		t.Fatalf("rejected siblings = %d, want 2", res.RejectedSiblings)
	}
	if res.Contract.Status != "draft" {
		t.Fatalf("contract = %s, want draft", res.Contract.Status)
	}
	if res.Payment.Status != "pending" || res.Payment.Amount != l.AdoptionFee {
		t.Fatalf("payment = %s / %d, want pending / %d", res.Payment.Status, res.Payment.Amount, l.AdoptionFee)
	}

	pet, err := env.Engine.Repo.GetPet(env.Ctx, l.PetID)
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	if pet.Status != "rehomed" {
		t.Fatalf("pet = %s, want rehomed", pet.Status)
	}
	for _, id := range []string{b.ID, c.ID} {
		got, err := env.Engine.Repo.GetApplication(env.Ctx, id)
		if err != nil {
			t.Fatalf("get sibling: %v", err)
		}
		if got.Status != "rejected" {
			t.Fatalf("sibling = %s, want rejected", got.Status)
		}
		if got.RejectionReason != siblingRejectionReason {
			t.Fatalf("sibling reason = %q", got.RejectionReason)
		}
	}
}

func TestFinalizeRequiresReadyState(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)

	_, err := env.Engine.FinalizeApplication(env.Ctx, a.ID, owner.ID)
	var perr PreconditionNotMetError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionNotMetError", err)
	}
}

func TestFinalizeOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)
	a = env.readyApplication(t, a, owner.ID)

	_, err := env.Engine.FinalizeApplication(env.Ctx, a.ID, adopter.ID)
	var derr PermissionDeniedError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
}

func TestFinalizeTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	winner := env.adopter(t, "winner")
	rival := env.adopter(t, "rival")
	a := env.application(t, l.ID, winner.ID)
	b := env.application(t, l.ID, rival.ID)
	a = env.readyApplication(t, a, owner.ID)

	if _, err := env.Engine.FinalizeApplication(env.Ctx, a.ID, owner.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// The listing is rehomed, so a repeat call on the winner and a late
	// call on the rejected sibling both lose the race with Conflict.
	_, err := env.Engine.FinalizeApplication(env.Ctx, a.ID, owner.ID)
	var cerr ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("repeat finalize err = %v, want ConflictError", err)
	}
	_, err = env.Engine.FinalizeApplication(env.Ctx, b.ID, owner.ID)
	if !errors.As(err, &cerr) {
		t.Fatalf("sibling finalize err = %v, want ConflictError", err)
	}
}

func TestSignContract(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)
	a = env.readyApplication(t, a, owner.ID)
	res, err := env.Engine.FinalizeApplication(env.Ctx, a.ID, owner.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	c, err := env.Engine.SignContract(env.Ctx, res.Contract.ID, owner.ID, "203.0.113.7")
	if err != nil {
		t.Fatalf("owner sign: %v", err)
	}
	if c.Status != "partially_signed" {
		t.Fatalf("status = %s, want partially_signed", c.Status)
	}

	// a party cannot sign twice
	_, err = env.Engine.SignContract(env.Ctx, res.Contract.ID, owner.ID, "203.0.113.7")
	var cerr ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}

	// third parties cannot sign at all
	stranger := env.user(t, "stranger", true)
	_, err = env.Engine.SignContract(env.Ctx, res.Contract.ID, stranger.ID, "198.51.100.1")
	var derr PermissionDeniedError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}

	c, err = env.Engine.SignContract(env.Ctx, res.Contract.ID, adopter.ID, "198.51.100.2")
	if err != nil {
		t.Fatalf("adopter sign: %v", err)
	}
	if c.Status != "signed" {
		t.Fatalf("status = %s, want signed", c.Status)
	}
	if c.OwnerSignedAt == nil || c.AdopterSignedAt == nil {
		t.Fatal("both signature timestamps should be set")
	}
}

func TestPaymentReleaseRequiresSignedContract(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", true)
	l := env.activeListing(t, owner.ID)
	adopter := env.adopter(t, "adopter")
	a := env.application(t, l.ID, adopter.ID)
	a = env.readyApplication(t, a, owner.ID)
	res, err := env.Engine.FinalizeApplication(env.Ctx, a.ID, owner.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// escrow before signatures is fine
	p, err := env.Engine.SetPaymentStatus(env.Ctx, res.Payment.ID, "escrow", owner.ID)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if p.Status != "escrow" {
		t.Fatalf("status = %s, want escrow", p.Status)
	}

	// release before the contract is fully signed is blocked
	_, err = env.Engine.SetPaymentStatus(env.Ctx, res.Payment.ID, "released", owner.ID)
	var perr PreconditionNotMetError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PreconditionNotMetError", err)
	}

	if _, err := env.Engine.SignContract(env.Ctx, res.Contract.ID, owner.ID, ""); err != nil {
		t.Fatalf("owner sign: %v", err)
	}
	if _, err := env.Engine.SignContract(env.Ctx, res.Contract.ID, adopter.ID, ""); err != nil {
		t.Fatalf("adopter sign: %v", err)
	}
	p, err = env.Engine.SetPaymentStatus(env.Ctx, res.Payment.ID, "released", owner.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if p.Status != "released" {
		t.Fatalf("status = %s, want released", p.Status)
	}
}

func TestPaymentStatusValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SetPaymentStatus(env.Ctx, "whatever", "teleported", "actor")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
