package engine

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"homeward/internal/domain"
)

// Patterns for off-platform contact leakage in free text. Approvals must not
// expose direct contact details before the platform mediates introductions.
var (
	phonePattern = regexp.MustCompile(`(\+?\d[\d\s().-]{7,}\d)`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// RunAutomatedChecks evaluates the moderation checklist for a listing.
// Results feed the quality score and the human review; they never approve a
// listing on their own.
func (e Engine) RunAutomatedChecks(l domain.RehomingListing, owner domain.User) (map[string]bool, []string) {
	minStory := e.Config.Listing.MinStoryChars
	if minStory == 0 {
		minStory = 1000
	}
	minPhotos := e.Config.Listing.MinPhotos
	if minPhotos == 0 {
		minPhotos = 5
	}
	maxFee := e.Config.Listing.MaxAdoptionFee
	if maxFee == 0 {
		maxFee = 300
	}

	checks := map[string]bool{
		"required_fields_present":     l.PetName != "" && l.Species != "" && l.RehomingStory != "",
		"story_length":                len(l.RehomingStory) >= minStory,
		"medical_profile_populated":   !l.Medical.IsZero(),
		"behavioral_profile_populated": !l.Behavioral.IsZero(),
		"aggression_disclosure_set":   l.AggressionDisclosed != nil,
		"photo_count":                 len(l.Photos) >= minPhotos,
		"vaccination_record_present":  l.Medical.VaccinationRecordRef != "",
		"fee_within_range":            l.AdoptionFee >= 0 && l.AdoptionFee <= maxFee,
		"owner_verified":              owner.EmailVerified && owner.PhoneVerified,
	}

	// Contact leakage is reported only as red flags: each hit costs a flat
	// penalty instead of diluting the checklist pass ratio.
	var redFlags []string
	freeText := []struct {
		field string
		text  string
	}{
		{"rehoming_story", l.RehomingStory},
		{"medical_notes", l.Medical.Notes},
		{"behavioral_notes", l.Behavioral.Notes},
	}
	for _, ft := range freeText {
		field, text := ft.field, ft.text
		if text == "" {
			continue
		}
		if phonePattern.MatchString(text) {
			redFlags = append(redFlags, fmt.Sprintf("phone number in %s", field))
		}
		if emailPattern.MatchString(text) {
			redFlags = append(redFlags, fmt.Sprintf("email address in %s", field))
		}
	}
	if l.AggressionDisclosed != nil && *l.AggressionDisclosed {
		lower := strings.ToLower(l.Behavioral.Notes)
		if lower == "" {
			redFlags = append(redFlags, "aggression disclosed without behavioral notes")
		}
	}
	return checks, redFlags
}

// ComputeQualityScore derives a 0-100 score from the checklist: the passing
// fraction minus ten points per red flag, clamped at zero.
func ComputeQualityScore(checks map[string]bool, redFlags []string) int {
	if len(checks) == 0 {
		return 0
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	score := int(math.Round(100*float64(passed)/float64(len(checks)))) - 10*len(redFlags)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
