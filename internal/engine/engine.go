package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"homeward/internal/config"
	"homeward/internal/domain"
	"homeward/internal/events"
	"homeward/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func newID() string {
	return uuid.NewString()
}

func validUrgency(u string) bool {
	switch u {
	case "immediate", "soon", "flexible":
		return true
	}
	return false
}

// --- users & pets ---

type UserCreateOptions struct {
	ID            string
	DisplayName   string
	Email         string
	EmailVerified bool
	PhoneVerified bool
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if strings.TrimSpace(opts.DisplayName) == "" {
		return domain.User{}, validationf("display_name is required")
	}
	u := domain.User{
		ID:            opts.ID,
		DisplayName:   opts.DisplayName,
		Email:         opts.Email,
		EmailVerified: opts.EmailVerified,
		PhoneVerified: opts.PhoneVerified,
		CreatedAt:     e.nowRFC3339(),
	}
	if u.ID == "" {
		u.ID = newID()
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

type PetCreateOptions struct {
	OwnerID  string
	Name     string
	Species  string
	Breed    string
	AgeYears int
	Gender   string
}

func (e Engine) CreatePet(ctx context.Context, opts PetCreateOptions) (domain.Pet, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Pet{}, validationf("name is required")
	}
	if strings.TrimSpace(opts.Species) == "" {
		return domain.Pet{}, validationf("species is required")
	}
	if opts.AgeYears < 0 {
		return domain.Pet{}, validationf("age_years cannot be negative")
	}
	if _, err := e.Repo.GetUser(ctx, opts.OwnerID); err != nil {
		return domain.Pet{}, err
	}
	now := e.nowRFC3339()
	p := domain.Pet{
		ID:        newID(),
		OwnerID:   opts.OwnerID,
		Name:      opts.Name,
		Species:   opts.Species,
		Breed:     opts.Breed,
		AgeYears:  opts.AgeYears,
		Gender:    opts.Gender,
		Status:    "with_owner",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertPet(ctx, p); err != nil {
		return domain.Pet{}, fmt.Errorf("insert pet: %w", err)
	}
	return p, nil
}

// --- intervention gate ---

// StartIntervention records the pre-rehoming questionnaire. The cooling-off
// window only starts at acknowledgement.
func (e Engine) StartIntervention(ctx context.Context, ownerID, reasonCategory, reasonText, urgency, actorID string) (domain.Intervention, error) {
	if strings.TrimSpace(reasonCategory) == "" {
		return domain.Intervention{}, validationf("reason_category is required")
	}
	if !validUrgency(urgency) {
		return domain.Intervention{}, validationf("urgency must be one of immediate, soon, flexible")
	}
	if _, err := e.Repo.GetUser(ctx, ownerID); err != nil {
		return domain.Intervention{}, err
	}
	iv := domain.Intervention{
		ID:             newID(),
		OwnerID:        ownerID,
		ReasonCategory: reasonCategory,
		ReasonText:     reasonText,
		Urgency:        urgency,
		CreatedAt:      e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Intervention{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertInterventionTx(ctx, tx, iv); err != nil {
		return domain.Intervention{}, fmt.Errorf("insert intervention: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "intervention.started", "intervention", iv.ID, actorID, events.EventPayload{
		"owner_id": ownerID,
		"urgency":  urgency,
	}); err != nil {
		return domain.Intervention{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Intervention{}, err
	}
	return iv, nil
}

// AcknowledgeIntervention sets acknowledged_at and, for non-immediate
// urgency, starts the cooling-off window.
func (e Engine) AcknowledgeIntervention(ctx context.Context, id, actorID string) (domain.Intervention, error) {
	iv, err := e.Repo.GetIntervention(ctx, id)
	if err != nil {
		return iv, err
	}
	if iv.AcknowledgedAt != nil {
		return iv, nil
	}
	now := e.now().UTC()
	ack := now.Format(time.RFC3339)
	iv.AcknowledgedAt = &ack
	if iv.Urgency != "immediate" {
		hours := e.Config.Rehoming.InterventionCoolingHours
		if hours == 0 {
			hours = 48
		}
		end := now.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339)
		iv.CoolingOffEnd = &end
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return iv, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateInterventionTx(ctx, tx, iv); err != nil {
		return iv, err
	}
	payload := events.EventPayload{}
	if iv.CoolingOffEnd != nil {
		payload["cooling_off_end"] = *iv.CoolingOffEnd
	}
	if err := e.Events.Append(ctx, tx, "intervention.acknowledged", "intervention", iv.ID, actorID, payload); err != nil {
		return iv, err
	}
	if err := tx.Commit(); err != nil {
		return iv, err
	}
	return iv, nil
}

// CanProceedToListing answers whether the owner's intervention permits
// listing creation. Returns remaining cooling-off seconds when it does not.
func (e Engine) CanProceedToListing(iv domain.Intervention) (bool, int64) {
	if iv.AcknowledgedAt == nil {
		return false, 0
	}
	if iv.CoolingOffEnd == nil {
		return true, 0
	}
	end, err := time.Parse(time.RFC3339, *iv.CoolingOffEnd)
	if err != nil {
		return false, 0
	}
	now := e.now().UTC()
	if now.Before(end) {
		return false, int64(end.Sub(now).Seconds())
	}
	return true, 0
}

// --- rehoming requests ---

type RequestCreateOptions struct {
	PetID         string
	OwnerID       string
	Urgency       string
	TermsAccepted bool
	Reason        string
	IdealHome     string
	LocationCity  string
	LocationState string
	LocationZip   string
	PrivacyLevel  string
	ActorID       string
}

// CreateRequest records the owner's intent to rehome. Immediate urgency
// leaves the request in draft so it can be confirmed at once; otherwise the
// request enters cooling_period with a timer.
func (e Engine) CreateRequest(ctx context.Context, opts RequestCreateOptions) (domain.RehomingRequest, error) {
	if !opts.TermsAccepted {
		return domain.RehomingRequest{}, validationf("terms must be accepted before a rehoming request can be created")
	}
	if !validUrgency(opts.Urgency) {
		return domain.RehomingRequest{}, validationf("urgency must be one of immediate, soon, flexible")
	}
	pet, err := e.Repo.GetPet(ctx, opts.PetID)
	if err != nil {
		return domain.RehomingRequest{}, err
	}
	if pet.OwnerID != opts.OwnerID {
		return domain.RehomingRequest{}, deniedf("pet %s does not belong to %s", opts.PetID, opts.OwnerID)
	}
	if pet.Status == "rehomed" {
		return domain.RehomingRequest{}, conflictf("pet %s has already been rehomed", pet.ID)
	}
	now := e.now().UTC()
	ts := now.Format(time.RFC3339)
	req := domain.RehomingRequest{
		ID:              newID(),
		PetID:           opts.PetID,
		OwnerID:         opts.OwnerID,
		Urgency:         opts.Urgency,
		TermsAccepted:   true,
		TermsAcceptedAt: &ts,
		Reason:          opts.Reason,
		IdealHome:       opts.IdealHome,
		LocationCity:    opts.LocationCity,
		LocationState:   opts.LocationState,
		LocationZip:     opts.LocationZip,
		PrivacyLevel:    opts.PrivacyLevel,
		Status:          "draft",
		Version:         1,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
	if opts.Urgency != "immediate" {
		hours := e.Config.Rehoming.RequestCoolingHours
		if hours == 0 {
			hours = 24
		}
		end := now.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339)
		req.Status = "cooling_period"
		req.CoolingPeriodEnd = &end
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RehomingRequest{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRequestTx(ctx, tx, req); err != nil {
		return domain.RehomingRequest{}, fmt.Errorf("insert request: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "request.created", "request", req.ID, opts.ActorID, events.EventPayload{
		"pet_id":  req.PetID,
		"urgency": req.Urgency,
		"status":  req.Status,
	}); err != nil {
		return domain.RehomingRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RehomingRequest{}, err
	}
	return req, nil
}

// ConfirmRequest moves a request to confirmed. Before the cooling timer
// elapses the caller gets PreconditionNotMet with the seconds remaining.
func (e Engine) ConfirmRequest(ctx context.Context, id, actorID string) (domain.RehomingRequest, error) {
	req, err := e.Repo.GetRequest(ctx, id)
	if err != nil {
		return req, err
	}
	if req.OwnerID != actorID {
		return req, deniedf("only the owner can confirm request %s", id)
	}
	if err := ensureRequestTransition(req.Status, "confirmed"); err != nil {
		return req, err
	}
	now := e.now().UTC()
	if req.Status == "cooling_period" && req.CoolingPeriodEnd != nil {
		end, err := time.Parse(time.RFC3339, *req.CoolingPeriodEnd)
		if err != nil {
			return req, fmt.Errorf("parse cooling_period_end: %w", err)
		}
		if now.Before(end) {
			return req, PreconditionNotMetError{
				Msg:              "cooling period has not elapsed",
				SecondsRemaining: int64(end.Sub(now).Seconds()),
			}
		}
	}
	ts := now.Format(time.RFC3339)
	req.Status = "confirmed"
	req.ConfirmedAt = &ts
	req.UpdatedAt = ts

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return req, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRequestTx(ctx, tx, req); err != nil {
		if err == repo.ErrVersionConflict {
			return req, conflictf("request %s was modified concurrently", id)
		}
		return req, err
	}
	if err := e.Events.Append(ctx, tx, "request.confirmed", "request", req.ID, actorID, nil); err != nil {
		return req, err
	}
	if err := tx.Commit(); err != nil {
		return req, err
	}
	req.Version++
	return req, nil
}

// CancelRequest is user-initiated and allowed from draft or cooling_period.
func (e Engine) CancelRequest(ctx context.Context, id, reason, actorID string) (domain.RehomingRequest, error) {
	req, err := e.Repo.GetRequest(ctx, id)
	if err != nil {
		return req, err
	}
	if req.OwnerID != actorID {
		return req, deniedf("only the owner can cancel request %s", id)
	}
	if err := ensureRequestTransition(req.Status, "cancelled"); err != nil {
		return req, err
	}
	ts := e.nowRFC3339()
	req.Status = "cancelled"
	req.CancelledAt = &ts
	req.CancellationReason = reason
	req.UpdatedAt = ts

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return req, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRequestTx(ctx, tx, req); err != nil {
		if err == repo.ErrVersionConflict {
			return req, conflictf("request %s was modified concurrently", id)
		}
		return req, err
	}
	if err := e.Events.Append(ctx, tx, "request.cancelled", "request", req.ID, actorID, events.EventPayload{"reason": reason}); err != nil {
		return req, err
	}
	if err := tx.Commit(); err != nil {
		return req, err
	}
	req.Version++
	return req, nil
}

// ExpireStaleResult reports what a sweep touched.
type ExpireStaleResult struct {
	ExpiredRequests int `json:"expired_requests"`
	ClosedListings  int `json:"closed_listings"`
}

// ExpireStale flips stale unconfirmed requests to expired and closes active
// listings past their expiry. Meant to be invoked on a schedule by an
// external caller.
func (e Engine) ExpireStale(ctx context.Context, actorID string) (ExpireStaleResult, error) {
	var result ExpireStaleResult
	now := e.now().UTC()
	days := e.Config.Rehoming.DraftExpiryDays
	if days == 0 {
		days = 30
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	stale, err := e.Repo.ListStaleDrafts(ctx, cutoff)
	if err != nil {
		return result, err
	}
	ts := now.Format(time.RFC3339)
	for _, req := range stale {
		if err := ensureRequestTransition(req.Status, "expired"); err != nil {
			continue
		}
		req.Status = "expired"
		req.UpdatedAt = ts
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return result, err
		}
		if err := e.Repo.UpdateRequestTx(ctx, tx, req); err != nil {
			tx.Rollback()
			if err == repo.ErrVersionConflict {
				continue
			}
			return result, err
		}
		if err := e.Events.Append(ctx, tx, "request.expired", "request", req.ID, actorID, nil); err != nil {
			tx.Rollback()
			return result, err
		}
		if err := tx.Commit(); err != nil {
			return result, err
		}
		result.ExpiredRequests++
	}

	expired, err := e.Repo.ListExpiredActiveListings(ctx, ts)
	if err != nil {
		return result, err
	}
	for _, l := range expired {
		if err := ensureListingTransition(l.Status, "closed"); err != nil {
			continue
		}
		l.Status = "closed"
		l.ClosedAt = &ts
		l.UpdatedAt = ts
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return result, err
		}
		if err := e.Repo.UpdateListingTx(ctx, tx, l); err != nil {
			tx.Rollback()
			if err == repo.ErrVersionConflict {
				continue
			}
			return result, err
		}
		if err := e.Events.Append(ctx, tx, "listing.expired", "listing", l.ID, actorID, nil); err != nil {
			tx.Rollback()
			return result, err
		}
		if err := tx.Commit(); err != nil {
			return result, err
		}
		result.ClosedListings++
	}
	return result, nil
}
