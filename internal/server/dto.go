package server

import (
	"encoding/json"

	"homeward/internal/domain"
)

// Request bodies.

type CreateUserRequest struct {
	DisplayName   string `json:"display_name" example:"Jordan"`
	Email         string `json:"email,omitempty" format:"email"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	PhoneVerified bool   `json:"phone_verified,omitempty"`
}

type CreatePetRequest struct {
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name" example:"Biscuit"`
	Species  string `json:"species" example:"dog"`
	Breed    string `json:"breed,omitempty"`
	AgeYears int    `json:"age_years,omitempty" minimum:"0"`
	Gender   string `json:"gender,omitempty"`
}

type StartInterventionRequest struct {
	OwnerID        string `json:"owner_id"`
	ReasonCategory string `json:"reason_category" example:"moving"`
	ReasonText     string `json:"reason_text,omitempty"`
	Urgency        string `json:"urgency" enum:"immediate,soon,flexible"`
}

type CreateRequestRequest struct {
	PetID         string `json:"pet_id"`
	OwnerID       string `json:"owner_id"`
	Urgency       string `json:"urgency" enum:"immediate,soon,flexible"`
	Reason        string `json:"reason,omitempty"`
	IdealHome     string `json:"ideal_home,omitempty"`
	TermsAccepted bool   `json:"terms_accepted"`
	LocationCity  string `json:"location_city,omitempty"`
	LocationState string `json:"location_state,omitempty"`
	LocationZip   string `json:"location_zip,omitempty"`
	PrivacyLevel  string `json:"privacy_level,omitempty"`
}

type CancelRequestRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CreateListingRequest struct {
	RequestID           string                   `json:"request_id"`
	RehomingStory       string                   `json:"rehoming_story"`
	Medical             domain.MedicalProfile    `json:"medical_profile,omitempty"`
	Behavioral          domain.BehavioralProfile `json:"behavioral_profile,omitempty"`
	AggressionDisclosed *bool                    `json:"aggression_disclosed,omitempty"`
	AdoptionFee         int                      `json:"adoption_fee" minimum:"0"`
	Photos              []string                 `json:"photos,omitempty"`
}

type ListingDecisionRequest struct {
	Decision string `json:"decision" enum:"approved,rejected"`
}

type ListingStatusRequest struct {
	Status string `json:"status" enum:"active,paused,under_review,closed"`
}

type UpsertProfileRequest struct {
	HousingType          string `json:"housing_type,omitempty" enum:"house_with_yard,house,apartment,other"`
	AdultsCount          int    `json:"adults_count,omitempty" minimum:"0"`
	ChildrenCount        int    `json:"children_count,omitempty" minimum:"0"`
	ChildrenCompatible   bool   `json:"children_compatible,omitempty"`
	OtherPetsCount       int    `json:"other_pets_count,omitempty" minimum:"0"`
	OtherPetsCompatible  bool   `json:"other_pets_compatible,omitempty"`
	ExperienceYears      int    `json:"experience_years,omitempty" minimum:"0"`
	DailyExerciseMinutes int    `json:"daily_exercise_minutes,omitempty" minimum:"0"`
	ReferencesCount      int    `json:"references_count,omitempty" minimum:"0"`
	Motivation           string `json:"motivation,omitempty"`
}

type SubmitApplicationRequest struct {
	ListingID string `json:"listing_id"`
	Message   string `json:"message,omitempty"`
}

type AdvanceApplicationRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type ScheduleMeetGreetRequest struct {
	ScheduledAt     string `json:"scheduled_at" format:"date-time"`
	DurationMinutes int    `json:"duration_minutes,omitempty" minimum:"0"`
	LocationType    string `json:"location_type,omitempty" enum:"owner_home,public_place,adopter_home,other"`
	LocationDetails string `json:"location_details,omitempty"`
}

type CompleteMeetGreetRequest struct {
	Outcome      string `json:"outcome" enum:"success,concerns,not_a_match"`
	OwnerNotes   string `json:"owner_notes,omitempty"`
	AdopterNotes string `json:"adopter_notes,omitempty"`
}

type ScheduleHomeCheckRequest struct {
	ScheduledAt string `json:"scheduled_at" format:"date-time"`
	PerformedBy string `json:"performed_by,omitempty"`
}

type CompleteHomeCheckRequest struct {
	Checklist map[string]map[string]bool `json:"checklist,omitempty"`
	Passed    bool                       `json:"passed"`
	Notes     string                     `json:"notes,omitempty"`
}

type AddVisitNoteRequest struct {
	VisitType string `json:"visit_type" enum:"meet_greet,home_check,follow_up,trial_period,final_handoff,other"`
	VisitDate string `json:"visit_date,omitempty" format:"date-time"`
	Note      string `json:"note"`
}

type SignContractRequest struct {
	SignatureIP string `json:"signature_ip,omitempty"`
}

type PaymentStatusRequest struct {
	Status string `json:"status" enum:"pending,escrow,released,refunded"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type CreateAPIKeyResponse struct {
	ID      string `json:"id"`
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Key     string `json:"key"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

// EventResponse decodes the stored payload for API consumers.
type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}
