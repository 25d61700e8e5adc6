package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"homeward/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by version-checked updates when the row
// changed underneath the caller.
var ErrVersionConflict = errors.New("version conflict")

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r Repo) exec(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) query(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBoolPtr(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}

func strOrNil(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolOrNil(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	b := nb.Bool
	return &b
}

func intOrNil(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

// --- users ---

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,display_name,email,email_verified,phone_verified,created_at) VALUES (?,?,?,?,?,?)`,
		u.ID, u.DisplayName, nullable(u.Email), u.EmailVerified, u.PhoneVerified, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,display_name,COALESCE(email,''),email_verified,phone_verified,created_at FROM users WHERE id=?`, id)
	var u domain.User
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.EmailVerified, &u.PhoneVerified, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) SetUserVerification(ctx context.Context, id string, emailVerified, phoneVerified bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET email_verified=?, phone_verified=? WHERE id=?`, emailVerified, phoneVerified, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- pets ---

func (r Repo) InsertPet(ctx context.Context, p domain.Pet) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO pets(id,owner_id,name,species,breed,age_years,gender,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.OwnerID, p.Name, p.Species, nullable(p.Breed), p.AgeYears, nullable(p.Gender), p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanPet(row *sql.Row) (domain.Pet, error) {
	var p domain.Pet
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.Breed, &p.AgeYears, &p.Gender, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

const petColumns = `id,owner_id,name,species,COALESCE(breed,''),age_years,COALESCE(gender,''),status,created_at,updated_at`

func (r Repo) GetPet(ctx context.Context, id string) (domain.Pet, error) {
	return scanPet(r.DB.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id=?`, id))
}

func (r Repo) UpdatePetStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE pets SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListPets(ctx context.Context, ownerID string) ([]domain.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id=?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Pet
	for rows.Next() {
		var p domain.Pet
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.Breed, &p.AgeYears, &p.Gender, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// --- interventions ---

func (r Repo) InsertInterventionTx(ctx context.Context, tx *sql.Tx, iv domain.Intervention) error {
	_, err := r.exec(tx).ExecContext(ctx, `INSERT INTO interventions(id,owner_id,reason_category,reason_text,urgency,acknowledged_at,cooling_off_end,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		iv.ID, iv.OwnerID, iv.ReasonCategory, nullable(iv.ReasonText), iv.Urgency, nullablePtr(iv.AcknowledgedAt), nullablePtr(iv.CoolingOffEnd), iv.CreatedAt)
	return err
}

const interventionColumns = `id,owner_id,reason_category,COALESCE(reason_text,''),urgency,acknowledged_at,cooling_off_end,created_at`

func scanIntervention(row *sql.Row) (domain.Intervention, error) {
	var iv domain.Intervention
	var ack, cool sql.NullString
	err := row.Scan(&iv.ID, &iv.OwnerID, &iv.ReasonCategory, &iv.ReasonText, &iv.Urgency, &ack, &cool, &iv.CreatedAt)
	if err == sql.ErrNoRows {
		return iv, ErrNotFound
	}
	iv.AcknowledgedAt = strOrNil(ack)
	iv.CoolingOffEnd = strOrNil(cool)
	return iv, err
}

func (r Repo) GetIntervention(ctx context.Context, id string) (domain.Intervention, error) {
	return scanIntervention(r.DB.QueryRowContext(ctx, `SELECT `+interventionColumns+` FROM interventions WHERE id=?`, id))
}

// LatestInterventionForOwner returns the owner's most recent intervention.
func (r Repo) LatestInterventionForOwner(ctx context.Context, ownerID string) (domain.Intervention, error) {
	return scanIntervention(r.DB.QueryRowContext(ctx,
		`SELECT `+interventionColumns+` FROM interventions WHERE owner_id=? ORDER BY created_at DESC, id DESC LIMIT 1`, ownerID))
}

func (r Repo) UpdateInterventionTx(ctx context.Context, tx *sql.Tx, iv domain.Intervention) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE interventions SET acknowledged_at=?, cooling_off_end=? WHERE id=?`,
		nullablePtr(iv.AcknowledgedAt), nullablePtr(iv.CoolingOffEnd), iv.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- rehoming requests ---

const requestColumns = `id,pet_id,owner_id,urgency,terms_accepted,terms_accepted_at,COALESCE(reason,''),COALESCE(ideal_home,''),COALESCE(location_city,''),COALESCE(location_state,''),COALESCE(location_zip,''),COALESCE(privacy_level,''),status,cooling_period_end,confirmed_at,cancelled_at,COALESCE(cancellation_reason,''),version,created_at,updated_at`

func (r Repo) InsertRequestTx(ctx context.Context, tx *sql.Tx, req domain.RehomingRequest) error {
	_, err := r.exec(tx).ExecContext(ctx, `INSERT INTO rehoming_requests(id,pet_id,owner_id,urgency,terms_accepted,terms_accepted_at,reason,ideal_home,location_city,location_state,location_zip,privacy_level,status,cooling_period_end,confirmed_at,cancelled_at,cancellation_reason,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		req.ID, req.PetID, req.OwnerID, req.Urgency, req.TermsAccepted, nullablePtr(req.TermsAcceptedAt),
		nullable(req.Reason), nullable(req.IdealHome), nullable(req.LocationCity), nullable(req.LocationState),
		nullable(req.LocationZip), nullable(req.PrivacyLevel), req.Status, nullablePtr(req.CoolingPeriodEnd),
		nullablePtr(req.ConfirmedAt), nullablePtr(req.CancelledAt), nullable(req.CancellationReason),
		req.Version, req.CreatedAt, req.UpdatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequestRow(sc rowScanner) (domain.RehomingRequest, error) {
	var req domain.RehomingRequest
	var termsAt, coolEnd, confAt, cancAt sql.NullString
	err := sc.Scan(&req.ID, &req.PetID, &req.OwnerID, &req.Urgency, &req.TermsAccepted, &termsAt,
		&req.Reason, &req.IdealHome, &req.LocationCity, &req.LocationState, &req.LocationZip, &req.PrivacyLevel,
		&req.Status, &coolEnd, &confAt, &cancAt, &req.CancellationReason, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err == sql.ErrNoRows {
		return req, ErrNotFound
	}
	req.TermsAcceptedAt = strOrNil(termsAt)
	req.CoolingPeriodEnd = strOrNil(coolEnd)
	req.ConfirmedAt = strOrNil(confAt)
	req.CancelledAt = strOrNil(cancAt)
	return req, err
}

func (r Repo) GetRequest(ctx context.Context, id string) (domain.RehomingRequest, error) {
	return scanRequestRow(r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM rehoming_requests WHERE id=?`, id))
}

func (r Repo) GetRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.RehomingRequest, error) {
	return scanRequestRow(r.query(tx).QueryRowContext(ctx, `SELECT `+requestColumns+` FROM rehoming_requests WHERE id=?`, id))
}

// UpdateRequestTx writes the full row conditioned on the version the caller
// read; the stored version is bumped. ErrVersionConflict when the row moved.
func (r Repo) UpdateRequestTx(ctx context.Context, tx *sql.Tx, req domain.RehomingRequest) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE rehoming_requests SET status=?, cooling_period_end=?, confirmed_at=?, cancelled_at=?, cancellation_reason=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		req.Status, nullablePtr(req.CoolingPeriodEnd), nullablePtr(req.ConfirmedAt), nullablePtr(req.CancelledAt),
		nullable(req.CancellationReason), req.UpdatedAt, req.ID, req.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

type RequestFilters struct {
	OwnerID string
	PetID   string
	Status  string
	Limit   int
}

func (r Repo) ListRequests(ctx context.Context, f RequestFilters) ([]domain.RehomingRequest, error) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.PetID != "" {
		clauses = append(clauses, "pet_id=?")
		args = append(args, f.PetID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + requestColumns + ` FROM rehoming_requests`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RehomingRequest
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

// ListStaleDrafts returns draft requests created before the cutoff.
func (r Repo) ListStaleDrafts(ctx context.Context, before string) ([]domain.RehomingRequest, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+requestColumns+` FROM rehoming_requests WHERE status IN ('draft','cooling_period') AND created_at < ?`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RehomingRequest
	for rows.Next() {
		req, err := scanRequestRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

// --- listings ---

const listingColumns = `id,request_id,pet_id,owner_id,pet_name,species,COALESCE(breed,''),age_years,COALESCE(gender,''),COALESCE(rehoming_story,''),medical_json,behavioral_json,aggression_disclosed,adoption_fee,photos_json,COALESCE(location_city,''),COALESCE(location_state,''),COALESCE(location_zip,''),status,published_at,expires_at,paused_at,closed_at,rehomed_at,view_count,inquiry_count,version,created_at,updated_at`

func (r Repo) InsertListingTx(ctx context.Context, tx *sql.Tx, l domain.RehomingListing) error {
	medical, err := json.Marshal(l.Medical)
	if err != nil {
		return err
	}
	behavioral, err := json.Marshal(l.Behavioral)
	if err != nil {
		return err
	}
	photos, err := json.Marshal(l.Photos)
	if err != nil {
		return err
	}
	if l.Photos == nil {
		photos = []byte("[]")
	}
	_, err = r.exec(tx).ExecContext(ctx, `INSERT INTO listings(id,request_id,pet_id,owner_id,pet_name,species,breed,age_years,gender,rehoming_story,medical_json,behavioral_json,aggression_disclosed,adoption_fee,photos_json,location_city,location_state,location_zip,status,published_at,expires_at,paused_at,closed_at,rehomed_at,view_count,inquiry_count,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.RequestID, l.PetID, l.OwnerID, l.PetName, l.Species, nullable(l.Breed), l.AgeYears, nullable(l.Gender),
		nullable(l.RehomingStory), string(medical), string(behavioral), nullableBoolPtr(l.AggressionDisclosed),
		l.AdoptionFee, string(photos), nullable(l.LocationCity), nullable(l.LocationState), nullable(l.LocationZip),
		l.Status, nullablePtr(l.PublishedAt), nullablePtr(l.ExpiresAt), nullablePtr(l.PausedAt), nullablePtr(l.ClosedAt),
		nullablePtr(l.RehomedAt), l.ViewCount, l.InquiryCount, l.Version, l.CreatedAt, l.UpdatedAt)
	return err
}

func scanListingRow(sc rowScanner) (domain.RehomingListing, error) {
	var l domain.RehomingListing
	var medical, behavioral, photos string
	var aggr sql.NullBool
	var pubAt, expAt, pausedAt, closedAt, rehomedAt sql.NullString
	err := sc.Scan(&l.ID, &l.RequestID, &l.PetID, &l.OwnerID, &l.PetName, &l.Species, &l.Breed, &l.AgeYears, &l.Gender,
		&l.RehomingStory, &medical, &behavioral, &aggr, &l.AdoptionFee, &photos, &l.LocationCity, &l.LocationState,
		&l.LocationZip, &l.Status, &pubAt, &expAt, &pausedAt, &closedAt, &rehomedAt, &l.ViewCount, &l.InquiryCount,
		&l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if err != nil {
		return l, err
	}
	if err := json.Unmarshal([]byte(medical), &l.Medical); err != nil {
		return l, fmt.Errorf("listing %s medical_json: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(behavioral), &l.Behavioral); err != nil {
		return l, fmt.Errorf("listing %s behavioral_json: %w", l.ID, err)
	}
	if err := json.Unmarshal([]byte(photos), &l.Photos); err != nil {
		return l, fmt.Errorf("listing %s photos_json: %w", l.ID, err)
	}
	l.AggressionDisclosed = boolOrNil(aggr)
	l.PublishedAt = strOrNil(pubAt)
	l.ExpiresAt = strOrNil(expAt)
	l.PausedAt = strOrNil(pausedAt)
	l.ClosedAt = strOrNil(closedAt)
	l.RehomedAt = strOrNil(rehomedAt)
	return l, nil
}

func (r Repo) GetListing(ctx context.Context, id string) (domain.RehomingListing, error) {
	return scanListingRow(r.DB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=?`, id))
}

func (r Repo) GetListingTx(ctx context.Context, tx *sql.Tx, id string) (domain.RehomingListing, error) {
	return scanListingRow(r.query(tx).QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id=?`, id))
}

func (r Repo) GetListingByRequest(ctx context.Context, requestID string) (domain.RehomingListing, error) {
	return scanListingRow(r.DB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE request_id=?`, requestID))
}

// ActiveListingExistsForPet enforces the one-active-listing-per-pet invariant.
func (r Repo) ActiveListingExistsForPet(ctx context.Context, petID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM listings WHERE pet_id=? AND status IN ('pending_review','active','paused','under_review')`, petID).Scan(&n)
	return n > 0, err
}

// UpdateListingTx writes status and lifecycle timestamps conditioned on the
// version the caller read.
func (r Repo) UpdateListingTx(ctx context.Context, tx *sql.Tx, l domain.RehomingListing) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE listings SET status=?, published_at=?, expires_at=?, paused_at=?, closed_at=?, rehomed_at=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		l.Status, nullablePtr(l.PublishedAt), nullablePtr(l.ExpiresAt), nullablePtr(l.PausedAt), nullablePtr(l.ClosedAt),
		nullablePtr(l.RehomedAt), l.UpdatedAt, l.ID, l.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) IncrementListingInquiriesTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := r.exec(tx).ExecContext(ctx, `UPDATE listings SET inquiry_count=inquiry_count+1 WHERE id=?`, id)
	return err
}

func (r Repo) IncrementListingViews(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE listings SET view_count=view_count+1 WHERE id=?`, id)
	return err
}

type ListingFilters struct {
	OwnerID string
	Status  string
	Species string
	MaxFee  int
	Limit   int
}

func (r Repo) ListListings(ctx context.Context, f ListingFilters) ([]domain.RehomingListing, error) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Species != "" {
		clauses = append(clauses, "species=?")
		args = append(args, f.Species)
	}
	if f.MaxFee > 0 {
		clauses = append(clauses, "adoption_fee<=?")
		args = append(args, f.MaxFee)
	}
	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY published_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RehomingListing
	for rows.Next() {
		l, err := scanListingRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// ListExpiredActiveListings returns active listings whose expires_at passed.
func (r Repo) ListExpiredActiveListings(ctx context.Context, now string) ([]domain.RehomingListing, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE status='active' AND expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RehomingListing
	for rows.Next() {
		l, err := scanListingRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// --- listing reviews ---

func (r Repo) UpsertReviewTx(ctx context.Context, tx *sql.Tx, rev domain.ListingReview) error {
	checks, err := json.Marshal(rev.Checks)
	if err != nil {
		return err
	}
	flags, err := json.Marshal(rev.RedFlags)
	if err != nil {
		return err
	}
	if rev.RedFlags == nil {
		flags = []byte("[]")
	}
	_, err = r.exec(tx).ExecContext(ctx, `INSERT INTO listing_reviews(id,listing_id,checks_json,red_flags_json,quality_score,reviewer_id,decision,decided_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(listing_id) DO UPDATE SET checks_json=excluded.checks_json, red_flags_json=excluded.red_flags_json, quality_score=excluded.quality_score, reviewer_id=excluded.reviewer_id, decision=excluded.decision, decided_at=excluded.decided_at, updated_at=excluded.updated_at`,
		rev.ID, rev.ListingID, string(checks), string(flags), rev.QualityScore, nullable(rev.ReviewerID),
		rev.Decision, nullablePtr(rev.DecidedAt), rev.CreatedAt, rev.UpdatedAt)
	return err
}

func (r Repo) GetReviewByListing(ctx context.Context, listingID string) (domain.ListingReview, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,listing_id,checks_json,red_flags_json,quality_score,COALESCE(reviewer_id,''),decision,decided_at,created_at,updated_at FROM listing_reviews WHERE listing_id=?`, listingID)
	var rev domain.ListingReview
	var checks, flags string
	var decidedAt sql.NullString
	err := row.Scan(&rev.ID, &rev.ListingID, &checks, &flags, &rev.QualityScore, &rev.ReviewerID, &rev.Decision, &decidedAt, &rev.CreatedAt, &rev.UpdatedAt)
	if err == sql.ErrNoRows {
		return rev, ErrNotFound
	}
	if err != nil {
		return rev, err
	}
	if err := json.Unmarshal([]byte(checks), &rev.Checks); err != nil {
		return rev, fmt.Errorf("review %s checks_json: %w", rev.ID, err)
	}
	if err := json.Unmarshal([]byte(flags), &rev.RedFlags); err != nil {
		return rev, fmt.Errorf("review %s red_flags_json: %w", rev.ID, err)
	}
	rev.DecidedAt = strOrNil(decidedAt)
	return rev, nil
}

// --- adopter profiles ---

func (r Repo) UpsertProfile(ctx context.Context, p domain.AdopterProfile) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO adopter_profiles(user_id,housing_type,adults_count,children_count,children_compatible,other_pets_count,other_pets_compatible,experience_years,daily_exercise_minutes,references_count,motivation,readiness_score,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET housing_type=excluded.housing_type, adults_count=excluded.adults_count, children_count=excluded.children_count, children_compatible=excluded.children_compatible, other_pets_count=excluded.other_pets_count, other_pets_compatible=excluded.other_pets_compatible, experience_years=excluded.experience_years, daily_exercise_minutes=excluded.daily_exercise_minutes, references_count=excluded.references_count, motivation=excluded.motivation, readiness_score=excluded.readiness_score, updated_at=excluded.updated_at`,
		p.UserID, nullable(p.HousingType), p.AdultsCount, p.ChildrenCount, p.ChildrenCompatible,
		p.OtherPetsCount, p.OtherPetsCompatible, p.ExperienceYears, p.DailyExerciseMinutes,
		p.ReferencesCount, nullable(p.Motivation), p.ReadinessScore, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProfile(ctx context.Context, userID string) (domain.AdopterProfile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT user_id,COALESCE(housing_type,''),adults_count,children_count,children_compatible,other_pets_count,other_pets_compatible,experience_years,daily_exercise_minutes,references_count,COALESCE(motivation,''),readiness_score,created_at,updated_at FROM adopter_profiles WHERE user_id=?`, userID)
	var p domain.AdopterProfile
	err := row.Scan(&p.UserID, &p.HousingType, &p.AdultsCount, &p.ChildrenCount, &p.ChildrenCompatible,
		&p.OtherPetsCount, &p.OtherPetsCompatible, &p.ExperienceYears, &p.DailyExerciseMinutes,
		&p.ReferencesCount, &p.Motivation, &p.ReadinessScore, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// --- events ---

const eventColumns = `id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json`

func (r Repo) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with id greater than after, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, after int64) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id > ? ORDER BY id ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}
