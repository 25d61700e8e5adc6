package domain

type User struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type Pet struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	Species   string `json:"species"`
	Breed     string `json:"breed,omitempty"`
	AgeYears  int    `json:"age_years"`
	Gender    string `json:"gender,omitempty"`
	Status    string `json:"status" enum:"with_owner,rehoming,rehomed"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Intervention struct {
	ID             string  `json:"id"`
	OwnerID        string  `json:"owner_id"`
	ReasonCategory string  `json:"reason_category"`
	ReasonText     string  `json:"reason_text,omitempty"`
	Urgency        string  `json:"urgency" enum:"immediate,soon,flexible"`
	AcknowledgedAt *string `json:"acknowledged_at,omitempty" format:"date-time"`
	CoolingOffEnd  *string `json:"cooling_off_end,omitempty" format:"date-time"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type RehomingRequest struct {
	ID                 string  `json:"id"`
	PetID              string  `json:"pet_id"`
	OwnerID            string  `json:"owner_id"`
	Urgency            string  `json:"urgency" enum:"immediate,soon,flexible"`
	TermsAccepted      bool    `json:"terms_accepted"`
	TermsAcceptedAt    *string `json:"terms_accepted_at,omitempty" format:"date-time"`
	Reason             string  `json:"reason,omitempty"`
	IdealHome          string  `json:"ideal_home,omitempty"`
	LocationCity       string  `json:"location_city,omitempty"`
	LocationState      string  `json:"location_state,omitempty"`
	LocationZip        string  `json:"location_zip,omitempty"`
	PrivacyLevel       string  `json:"privacy_level,omitempty"`
	Status             string  `json:"status" enum:"draft,cooling_period,confirmed,cancelled,expired"`
	CoolingPeriodEnd   *string `json:"cooling_period_end,omitempty" format:"date-time"`
	ConfirmedAt        *string `json:"confirmed_at,omitempty" format:"date-time"`
	CancelledAt        *string `json:"cancelled_at,omitempty" format:"date-time"`
	CancellationReason string  `json:"cancellation_reason,omitempty"`
	Version            int     `json:"version"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	UpdatedAt          string  `json:"updated_at" format:"date-time"`
}

// MedicalProfile is a typed record so the moderation checks read fields by
// name instead of probing a free-form map.
type MedicalProfile struct {
	Vaccinated           bool     `json:"vaccinated"`
	VaccinationRecordRef string   `json:"vaccination_record_ref,omitempty"`
	SpayedNeutered       bool     `json:"spayed_neutered"`
	Microchipped         bool     `json:"microchipped"`
	Conditions           []string `json:"conditions,omitempty"`
	Medications          []string `json:"medications,omitempty"`
	LastVetVisit         string   `json:"last_vet_visit,omitempty"`
	Notes                string   `json:"notes,omitempty"`
}

func (m MedicalProfile) IsZero() bool {
	return !m.Vaccinated && m.VaccinationRecordRef == "" && !m.SpayedNeutered &&
		!m.Microchipped && len(m.Conditions) == 0 && len(m.Medications) == 0 &&
		m.LastVetVisit == "" && m.Notes == ""
}

type BehavioralProfile struct {
	GoodWithChildren *bool  `json:"good_with_children,omitempty"`
	GoodWithDogs     *bool  `json:"good_with_dogs,omitempty"`
	GoodWithCats     *bool  `json:"good_with_cats,omitempty"`
	EnergyLevel      string `json:"energy_level,omitempty"`
	HouseTrained     bool   `json:"house_trained"`
	Notes            string `json:"notes,omitempty"`
}

func (b BehavioralProfile) IsZero() bool {
	return b.GoodWithChildren == nil && b.GoodWithDogs == nil && b.GoodWithCats == nil &&
		b.EnergyLevel == "" && !b.HouseTrained && b.Notes == ""
}

type RehomingListing struct {
	ID                  string            `json:"id"`
	RequestID           string            `json:"request_id"`
	PetID               string            `json:"pet_id"`
	OwnerID             string            `json:"owner_id"`
	PetName             string            `json:"pet_name"`
	Species             string            `json:"species"`
	Breed               string            `json:"breed,omitempty"`
	AgeYears            int               `json:"age_years"`
	Gender              string            `json:"gender,omitempty"`
	RehomingStory       string            `json:"rehoming_story,omitempty"`
	Medical             MedicalProfile    `json:"medical"`
	Behavioral          BehavioralProfile `json:"behavioral"`
	AggressionDisclosed *bool             `json:"aggression_disclosed,omitempty"`
	AdoptionFee         int               `json:"adoption_fee"`
	Photos              []string          `json:"photos,omitempty"`
	LocationCity        string            `json:"location_city,omitempty"`
	LocationState       string            `json:"location_state,omitempty"`
	LocationZip         string            `json:"location_zip,omitempty"`
	Status              string            `json:"status" enum:"pending_review,active,rejected,paused,under_review,rehomed,closed"`
	PublishedAt         *string           `json:"published_at,omitempty" format:"date-time"`
	ExpiresAt           *string           `json:"expires_at,omitempty" format:"date-time"`
	PausedAt            *string           `json:"paused_at,omitempty" format:"date-time"`
	ClosedAt            *string           `json:"closed_at,omitempty" format:"date-time"`
	RehomedAt           *string           `json:"rehomed_at,omitempty" format:"date-time"`
	ViewCount           int               `json:"view_count"`
	InquiryCount        int               `json:"inquiry_count"`
	Version             int               `json:"version"`
	CreatedAt           string            `json:"created_at" format:"date-time"`
	UpdatedAt           string            `json:"updated_at" format:"date-time"`
}

type ListingReview struct {
	ID           string          `json:"id"`
	ListingID    string          `json:"listing_id"`
	Checks       map[string]bool `json:"checks"`
	RedFlags     []string        `json:"red_flags,omitempty"`
	QualityScore int             `json:"quality_score"`
	ReviewerID   string          `json:"reviewer_id,omitempty"`
	Decision     string          `json:"decision" enum:"pending,approved,rejected"`
	DecidedAt    *string         `json:"decided_at,omitempty" format:"date-time"`
	CreatedAt    string          `json:"created_at" format:"date-time"`
	UpdatedAt    string          `json:"updated_at" format:"date-time"`
}

type AdopterProfile struct {
	UserID               string `json:"user_id"`
	HousingType          string `json:"housing_type,omitempty"`
	AdultsCount          int    `json:"adults_count"`
	ChildrenCount        int    `json:"children_count"`
	ChildrenCompatible   bool   `json:"children_compatible"`
	OtherPetsCount       int    `json:"other_pets_count"`
	OtherPetsCompatible  bool   `json:"other_pets_compatible"`
	ExperienceYears      int    `json:"experience_years"`
	DailyExerciseMinutes int    `json:"daily_exercise_minutes"`
	ReferencesCount      int    `json:"references_count"`
	Motivation           string `json:"motivation,omitempty"`
	ReadinessScore       int    `json:"readiness_score"`
	CreatedAt            string `json:"created_at" format:"date-time"`
	UpdatedAt            string `json:"updated_at" format:"date-time"`
}

type AdoptionApplication struct {
	ID              string `json:"id"`
	ListingID       string `json:"listing_id"`
	ApplicantID     string `json:"applicant_id"`
	Message         string `json:"message,omitempty"`
	MatchScore      int    `json:"match_score"`
	Status          string `json:"status" enum:"pending_review,info_requested,approved_meet_greet,meet_greet_success,home_check_pending,home_check_passed,trial_period,ready_for_adoption,adopted,adoption_completed,return_requested,returned,rejected,withdrawn"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Version         int    `json:"version"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

type MeetGreetSchedule struct {
	ID                 string  `json:"id"`
	ApplicationID      string  `json:"application_id"`
	ScheduledAt        string  `json:"scheduled_at" format:"date-time"`
	DurationMinutes    int     `json:"duration_minutes"`
	LocationType       string  `json:"location_type" enum:"owner_home,public_place,adopter_home,other"`
	LocationDetails    string  `json:"location_details,omitempty"`
	Status             string  `json:"status" enum:"pending,confirmed,completed,cancelled"`
	ConfirmedByOwner   bool    `json:"confirmed_by_owner"`
	ConfirmedByAdopter bool    `json:"confirmed_by_adopter"`
	Outcome            string  `json:"outcome,omitempty"`
	OwnerNotes         string  `json:"owner_notes,omitempty"`
	AdopterNotes       string  `json:"adopter_notes,omitempty"`
	CompletedAt        *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	UpdatedAt          string  `json:"updated_at" format:"date-time"`
}

type HomeCheck struct {
	ID            string                     `json:"id"`
	ApplicationID string                     `json:"application_id"`
	ScheduledAt   string                     `json:"scheduled_at" format:"date-time"`
	PerformedBy   string                     `json:"performed_by,omitempty"`
	Status        string                     `json:"status" enum:"scheduled,passed,failed,cancelled"`
	Checklist     map[string]map[string]bool `json:"checklist,omitempty"`
	OverallScore  *int                       `json:"overall_score,omitempty"`
	Passed        *bool                      `json:"passed,omitempty"`
	Notes         string                     `json:"notes,omitempty"`
	CompletedAt   *string                    `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt     string                     `json:"created_at" format:"date-time"`
	UpdatedAt     string                     `json:"updated_at" format:"date-time"`
}

type VisitNote struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	VisitType     string `json:"visit_type" enum:"meet_greet,home_check,follow_up,trial_period,final_handoff,other"`
	VisitDate     string `json:"visit_date" format:"date-time"`
	Note          string `json:"note"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type AdoptionContract struct {
	ID                 string  `json:"id"`
	ApplicationID      string  `json:"application_id"`
	Status             string  `json:"status" enum:"draft,partially_signed,signed"`
	OwnerSignedAt      *string `json:"owner_signed_at,omitempty" format:"date-time"`
	AdopterSignedAt    *string `json:"adopter_signed_at,omitempty" format:"date-time"`
	OwnerSignatureIP   string  `json:"owner_signature_ip,omitempty"`
	AdopterSignatureIP string  `json:"adopter_signature_ip,omitempty"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	UpdatedAt          string  `json:"updated_at" format:"date-time"`
}

type AdoptionPayment struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Amount        int    `json:"amount"`
	Status        string `json:"status" enum:"pending,escrow,released,refunded"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
