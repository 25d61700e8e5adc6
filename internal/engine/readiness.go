package engine

import (
	"context"
	"time"

	"homeward/internal/domain"
	"homeward/internal/repo"
)

// ComputeReadinessScore derives a 0-100 suitability score from declared
// household and experience facts. Pure and deterministic; recomputed on
// every profile save.
//
// Weights: housing <=20, household composition <=15, experience years x5
// capped at 25, exercise commitment <=20, references x5 capped at 10,
// motivation narrative of 100+ chars worth 10.
func ComputeReadinessScore(p domain.AdopterProfile) int {
	score := 0

	switch p.HousingType {
	case "house_with_yard":
		score += 20
	case "house":
		score += 15
	case "apartment":
		score += 10
	case "":
		// no housing info, no points
	default:
		score += 5
	}

	if p.AdultsCount >= 1 {
		score += 5
	}
	if p.ChildrenCount > 0 && p.ChildrenCompatible {
		score += 5
	}
	if p.OtherPetsCount > 0 && p.OtherPetsCompatible {
		score += 5
	}

	exp := p.ExperienceYears * 5
	if exp > 25 {
		exp = 25
	}
	score += exp

	switch {
	case p.DailyExerciseMinutes >= 120:
		score += 20
	case p.DailyExerciseMinutes >= 60:
		score += 15
	case p.DailyExerciseMinutes >= 30:
		score += 10
	case p.DailyExerciseMinutes > 0:
		score += 5
	}

	refs := p.ReferencesCount * 5
	if refs > 10 {
		refs = 10
	}
	score += refs

	if len(p.Motivation) >= 100 {
		score += 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

type ProfileUpsertOptions struct {
	UserID               string
	HousingType          string
	AdultsCount          int
	ChildrenCount        int
	ChildrenCompatible   bool
	OtherPetsCount       int
	OtherPetsCompatible  bool
	ExperienceYears      int
	DailyExerciseMinutes int
	ReferencesCount      int
	Motivation           string
}

// UpsertAdopterProfile saves the profile with a freshly computed readiness
// score. Existing applications keep their snapshotted match score.
func (e Engine) UpsertAdopterProfile(ctx context.Context, opts ProfileUpsertOptions) (domain.AdopterProfile, error) {
	if opts.AdultsCount < 0 || opts.ChildrenCount < 0 || opts.OtherPetsCount < 0 ||
		opts.ExperienceYears < 0 || opts.DailyExerciseMinutes < 0 || opts.ReferencesCount < 0 {
		return domain.AdopterProfile{}, validationf("profile counts cannot be negative")
	}
	switch opts.HousingType {
	case "", "house_with_yard", "house", "apartment", "other":
	default:
		return domain.AdopterProfile{}, validationf("housing_type must be one of house_with_yard, house, apartment, other")
	}
	if _, err := e.Repo.GetUser(ctx, opts.UserID); err != nil {
		return domain.AdopterProfile{}, err
	}
	ts := e.now().UTC().Format(time.RFC3339)
	p := domain.AdopterProfile{
		UserID:               opts.UserID,
		HousingType:          opts.HousingType,
		AdultsCount:          opts.AdultsCount,
		ChildrenCount:        opts.ChildrenCount,
		ChildrenCompatible:   opts.ChildrenCompatible,
		OtherPetsCount:       opts.OtherPetsCount,
		OtherPetsCompatible:  opts.OtherPetsCompatible,
		ExperienceYears:      opts.ExperienceYears,
		DailyExerciseMinutes: opts.DailyExerciseMinutes,
		ReferencesCount:      opts.ReferencesCount,
		Motivation:           opts.Motivation,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}
	if existing, err := e.Repo.GetProfile(ctx, opts.UserID); err == nil {
		p.CreatedAt = existing.CreatedAt
	} else if err != repo.ErrNotFound {
		return domain.AdopterProfile{}, err
	}
	p.ReadinessScore = ComputeReadinessScore(p)
	if err := e.Repo.UpsertProfile(ctx, p); err != nil {
		return domain.AdopterProfile{}, err
	}
	return p, nil
}
