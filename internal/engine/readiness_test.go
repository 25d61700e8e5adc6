package engine

import (
	"errors"
	"strings"
	"testing"

	"homeward/internal/domain"
)

func TestReadinessScoreReferenceProfile(t *testing.T) {
	// three references and one adult, nothing else
	p := domain.AdopterProfile{ReferencesCount: 3, AdultsCount: 1}
	if got := ComputeReadinessScore(p); got != 15 {
		t.Fatalf("score = %d, want 15", got)
	}
}

func TestReadinessScoreHousing(t *testing.T) {
	cases := []struct {
		housing string
		want    int
	}{
		{"house_with_yard", 20},
		{"house", 15},
		{"apartment", 10},
		{"houseboat", 5},
		{"", 0},
	}
	for _, tc := range cases {
		p := domain.AdopterProfile{HousingType: tc.housing}
		if got := ComputeReadinessScore(p); got != tc.want {
			t.Errorf("housing %q: score = %d, want %d", tc.housing, got, tc.want)
		}
	}
}

func TestReadinessScoreCaps(t *testing.T) {
	p := domain.AdopterProfile{
		HousingType:          "house_with_yard",
		AdultsCount:          4,
		ChildrenCount:        2,
		ChildrenCompatible:   true,
		OtherPetsCount:       3,
		OtherPetsCompatible:  true,
		ExperienceYears:      20, // capped at 25 points
		DailyExerciseMinutes: 300,
		ReferencesCount:      10, // capped at 10 points
		Motivation:           strings.Repeat("because ", 20),
	}
	if got := ComputeReadinessScore(p); got != 100 {
		t.Fatalf("score = %d, want 100", got)
	}
}

func TestReadinessScoreIncompatibleHousehold(t *testing.T) {
	with := ComputeReadinessScore(domain.AdopterProfile{ChildrenCount: 2, ChildrenCompatible: true})
	without := ComputeReadinessScore(domain.AdopterProfile{ChildrenCount: 2})
	if with-without != 5 {
		t.Fatalf("compatibility bonus = %d, want 5", with-without)
	}
}

func TestUpsertAdopterProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "adopter", true)

	p, err := env.Engine.UpsertAdopterProfile(env.Ctx, ProfileUpsertOptions{
		UserID:          u.ID,
		HousingType:     "house",
		AdultsCount:     2,
		ExperienceYears: 4,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.ReadinessScore != 15+5+20 {
		t.Fatalf("score = %d, want 40", p.ReadinessScore)
	}

	// re-save recomputes, keeps created_at
	p2, err := env.Engine.UpsertAdopterProfile(env.Ctx, ProfileUpsertOptions{
		UserID:      u.ID,
		HousingType: "house_with_yard",
		AdultsCount: 2,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if p2.ReadinessScore != 25 {
		t.Fatalf("score = %d, want 25", p2.ReadinessScore)
	}
	if p2.CreatedAt != p.CreatedAt {
		t.Fatal("created_at should be preserved across upserts")
	}
}

func TestUpsertAdopterProfileValidation(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "adopter", true)

	var verr ValidationError
	_, err := env.Engine.UpsertAdopterProfile(env.Ctx, ProfileUpsertOptions{UserID: u.ID, AdultsCount: -1})
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	_, err = env.Engine.UpsertAdopterProfile(env.Ctx, ProfileUpsertOptions{UserID: u.ID, HousingType: "castle"})
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
