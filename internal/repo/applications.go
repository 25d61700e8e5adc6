package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"homeward/internal/domain"
)

const applicationColumns = `id,listing_id,applicant_id,COALESCE(message,''),match_score,status,COALESCE(rejection_reason,''),version,created_at,updated_at`

func (r Repo) InsertApplicationTx(ctx context.Context, tx *sql.Tx, a domain.AdoptionApplication) error {
	_, err := r.exec(tx).ExecContext(ctx, `INSERT INTO applications(id,listing_id,applicant_id,message,match_score,status,rejection_reason,version,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.ListingID, a.ApplicantID, nullable(a.Message), a.MatchScore, a.Status, nullable(a.RejectionReason),
		a.Version, a.CreatedAt, a.UpdatedAt)
	return err
}

func scanApplicationRow(sc rowScanner) (domain.AdoptionApplication, error) {
	var a domain.AdoptionApplication
	err := sc.Scan(&a.ID, &a.ListingID, &a.ApplicantID, &a.Message, &a.MatchScore, &a.Status, &a.RejectionReason,
		&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.AdoptionApplication, error) {
	return scanApplicationRow(r.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=?`, id))
}

func (r Repo) GetApplicationTx(ctx context.Context, tx *sql.Tx, id string) (domain.AdoptionApplication, error) {
	return scanApplicationRow(r.query(tx).QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=?`, id))
}

// ApplicationExists reports whether the applicant already has a bid on the listing.
func (r Repo) ApplicationExists(ctx context.Context, listingID, applicantID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM applications WHERE listing_id=? AND applicant_id=?`, listingID, applicantID).Scan(&n)
	return n > 0, err
}

// UpdateApplicationTx writes status and rejection reason conditioned on the
// version the caller read.
func (r Repo) UpdateApplicationTx(ctx context.Context, tx *sql.Tx, a domain.AdoptionApplication) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE applications SET status=?, rejection_reason=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		a.Status, nullable(a.RejectionReason), a.UpdatedAt, a.ID, a.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// RejectOpenSiblingsTx force-rejects every other application on the listing
// that is still in play. Returns the number of rows touched.
func (r Repo) RejectOpenSiblingsTx(ctx context.Context, tx *sql.Tx, listingID, winnerID, reason, updatedAt string) (int, error) {
	res, err := tx.ExecContext(ctx, `UPDATE applications SET status='rejected', rejection_reason=?, version=version+1, updated_at=?
WHERE listing_id=? AND id<>? AND status NOT IN ('rejected','withdrawn','returned','adopted','adoption_completed','return_requested')`,
		reason, updatedAt, listingID, winnerID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type ApplicationFilters struct {
	ListingID   string
	ApplicantID string
	Status      string
	Limit       int
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.AdoptionApplication, error) {
	var clauses []string
	var args []any
	if f.ListingID != "" {
		clauses = append(clauses, "listing_id=?")
		args = append(args, f.ListingID)
	}
	if f.ApplicantID != "" {
		clauses = append(clauses, "applicant_id=?")
		args = append(args, f.ApplicantID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + applicationColumns + ` FROM applications`
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
	var res []domain.AdoptionApplication
	for rows.Next() {
		a, err := scanApplicationRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- meet & greets ---

const meetGreetColumns = `id,application_id,scheduled_at,duration_minutes,location_type,COALESCE(location_details,''),status,confirmed_by_owner,confirmed_by_adopter,COALESCE(outcome,''),COALESCE(owner_notes,''),COALESCE(adopter_notes,''),completed_at,created_at,updated_at`

func (r Repo) InsertMeetGreetTx(ctx context.Context, tx *sql.Tx, m domain.MeetGreetSchedule) error {
	_, err := r.exec(tx).ExecContext(ctx, `INSERT INTO meet_greets(id,application_id,scheduled_at,duration_minutes,location_type,location_details,status,confirmed_by_owner,confirmed_by_adopter,outcome,owner_notes,adopter_notes,completed_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ApplicationID, m.ScheduledAt, m.DurationMinutes, m.LocationType, nullable(m.LocationDetails),
		m.Status, m.ConfirmedByOwner, m.ConfirmedByAdopter, nullable(m.Outcome), nullable(m.OwnerNotes),
		nullable(m.AdopterNotes), nullablePtr(m.CompletedAt), m.CreatedAt, m.UpdatedAt)
	return err
}

func scanMeetGreetRow(sc rowScanner) (domain.MeetGreetSchedule, error) {
	var m domain.MeetGreetSchedule
	var completedAt sql.NullString
	err := sc.Scan(&m.ID, &m.ApplicationID, &m.ScheduledAt, &m.DurationMinutes, &m.LocationType, &m.LocationDetails,
		&m.Status, &m.ConfirmedByOwner, &m.ConfirmedByAdopter, &m.Outcome, &m.OwnerNotes, &m.AdopterNotes,
		&completedAt, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	m.CompletedAt = strOrNil(completedAt)
	return m, err
}

func (r Repo) GetMeetGreet(ctx context.Context, id string) (domain.MeetGreetSchedule, error) {
	return scanMeetGreetRow(r.DB.QueryRowContext(ctx, `SELECT `+meetGreetColumns+` FROM meet_greets WHERE id=?`, id))
}

func (r Repo) UpdateMeetGreetTx(ctx context.Context, tx *sql.Tx, m domain.MeetGreetSchedule) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE meet_greets SET status=?, confirmed_by_owner=?, confirmed_by_adopter=?, outcome=?, owner_notes=?, adopter_notes=?, completed_at=?, updated_at=? WHERE id=?`,
		m.Status, m.ConfirmedByOwner, m.ConfirmedByAdopter, nullable(m.Outcome), nullable(m.OwnerNotes),
		nullable(m.AdopterNotes), nullablePtr(m.CompletedAt), m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListMeetGreets(ctx context.Context, applicationID string) ([]domain.MeetGreetSchedule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+meetGreetColumns+` FROM meet_greets WHERE application_id=? ORDER BY scheduled_at ASC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MeetGreetSchedule
	for rows.Next() {
		m, err := scanMeetGreetRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// --- home checks ---

const homeCheckColumns = `id,application_id,scheduled_at,COALESCE(performed_by,''),status,checklist_json,overall_score,passed,COALESCE(notes,''),completed_at,created_at,updated_at`

func (r Repo) InsertHomeCheckTx(ctx context.Context, tx *sql.Tx, h domain.HomeCheck) error {
	checklist, err := json.Marshal(h.Checklist)
	if err != nil {
		return err
	}
	if h.Checklist == nil {
		checklist = []byte("{}")
	}
	_, err = r.exec(tx).ExecContext(ctx, `INSERT INTO home_checks(id,application_id,scheduled_at,performed_by,status,checklist_json,overall_score,passed,notes,completed_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		h.ID, h.ApplicationID, h.ScheduledAt, nullable(h.PerformedBy), h.Status, string(checklist),
		nullableIntPtr(h.OverallScore), nullableBoolPtr(h.Passed), nullable(h.Notes), nullablePtr(h.CompletedAt),
		h.CreatedAt, h.UpdatedAt)
	return err
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanHomeCheckRow(sc rowScanner) (domain.HomeCheck, error) {
	var h domain.HomeCheck
	var checklist string
	var score sql.NullInt64
	var passed sql.NullBool
	var completedAt sql.NullString
	err := sc.Scan(&h.ID, &h.ApplicationID, &h.ScheduledAt, &h.PerformedBy, &h.Status, &checklist, &score, &passed,
		&h.Notes, &completedAt, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal([]byte(checklist), &h.Checklist); err != nil {
		return h, fmt.Errorf("home check %s checklist_json: %w", h.ID, err)
	}
	h.OverallScore = intOrNil(score)
	h.Passed = boolOrNil(passed)
	h.CompletedAt = strOrNil(completedAt)
	return h, nil
}

func (r Repo) GetHomeCheck(ctx context.Context, id string) (domain.HomeCheck, error) {
	return scanHomeCheckRow(r.DB.QueryRowContext(ctx, `SELECT `+homeCheckColumns+` FROM home_checks WHERE id=?`, id))
}

func (r Repo) UpdateHomeCheckTx(ctx context.Context, tx *sql.Tx, h domain.HomeCheck) error {
	checklist, err := json.Marshal(h.Checklist)
	if err != nil {
		return err
	}
	if h.Checklist == nil {
		checklist = []byte("{}")
	}
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE home_checks SET status=?, checklist_json=?, overall_score=?, passed=?, notes=?, completed_at=?, updated_at=? WHERE id=?`,
		h.Status, string(checklist), nullableIntPtr(h.OverallScore), nullableBoolPtr(h.Passed), nullable(h.Notes),
		nullablePtr(h.CompletedAt), h.UpdatedAt, h.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListHomeChecks(ctx context.Context, applicationID string) ([]domain.HomeCheck, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+homeCheckColumns+` FROM home_checks WHERE application_id=? ORDER BY scheduled_at DESC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HomeCheck
	for rows.Next() {
		h, err := scanHomeCheckRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// --- visit notes ---

func (r Repo) InsertVisitNote(ctx context.Context, v domain.VisitNote) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO visit_notes(id,application_id,visit_type,visit_date,note,created_by,created_at) VALUES (?,?,?,?,?,?,?)`,
		v.ID, v.ApplicationID, v.VisitType, v.VisitDate, v.Note, v.CreatedBy, v.CreatedAt)
	return err
}

func (r Repo) ListVisitNotes(ctx context.Context, applicationID string) ([]domain.VisitNote, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,application_id,visit_type,visit_date,note,created_by,created_at FROM visit_notes WHERE application_id=? ORDER BY visit_date DESC, id DESC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.VisitNote
	for rows.Next() {
		var v domain.VisitNote
		if err := rows.Scan(&v.ID, &v.ApplicationID, &v.VisitType, &v.VisitDate, &v.Note, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// --- contracts ---

const contractColumns = `id,application_id,status,owner_signed_at,adopter_signed_at,COALESCE(owner_signature_ip,''),COALESCE(adopter_signature_ip,''),created_at,updated_at`

func (r Repo) InsertContractTx(ctx context.Context, tx *sql.Tx, c domain.AdoptionContract) error {
	_, err := r.exec(tx).ExecContext(ctx, `INSERT INTO contracts(id,application_id,status,owner_signed_at,adopter_signed_at,owner_signature_ip,adopter_signature_ip,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.ApplicationID, c.Status, nullablePtr(c.OwnerSignedAt), nullablePtr(c.AdopterSignedAt),
		nullable(c.OwnerSignatureIP), nullable(c.AdopterSignatureIP), c.CreatedAt, c.UpdatedAt)
	return err
}

func scanContractRow(sc rowScanner) (domain.AdoptionContract, error) {
	var c domain.AdoptionContract
	var ownerAt, adopterAt sql.NullString
	err := sc.Scan(&c.ID, &c.ApplicationID, &c.Status, &ownerAt, &adopterAt, &c.OwnerSignatureIP, &c.AdopterSignatureIP, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.OwnerSignedAt = strOrNil(ownerAt)
	c.AdopterSignedAt = strOrNil(adopterAt)
	return c, err
}

func (r Repo) GetContract(ctx context.Context, id string) (domain.AdoptionContract, error) {
	return scanContractRow(r.DB.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=?`, id))
}

func (r Repo) GetContractByApplication(ctx context.Context, applicationID string) (domain.AdoptionContract, error) {
	return scanContractRow(r.DB.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM contracts WHERE application_id=?`, applicationID))
}

func (r Repo) UpdateContractTx(ctx context.Context, tx *sql.Tx, c domain.AdoptionContract) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE contracts SET status=?, owner_signed_at=?, adopter_signed_at=?, owner_signature_ip=?, adopter_signature_ip=?, updated_at=? WHERE id=?`,
		c.Status, nullablePtr(c.OwnerSignedAt), nullablePtr(c.AdopterSignedAt), nullable(c.OwnerSignatureIP),
		nullable(c.AdopterSignatureIP), c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- payments ---

const paymentColumns = `id,application_id,amount,status,created_at,updated_at`

func (r Repo) InsertPaymentTx(ctx context.Context, tx *sql.Tx, p domain.AdoptionPayment) error {
	_, err := r.exec(tx).ExecContext(ctx, `INSERT INTO payments(id,application_id,amount,status,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.ApplicationID, p.Amount, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanPaymentRow(sc rowScanner) (domain.AdoptionPayment, error) {
	var p domain.AdoptionPayment
	err := sc.Scan(&p.ID, &p.ApplicationID, &p.Amount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) GetPayment(ctx context.Context, id string) (domain.AdoptionPayment, error) {
	return scanPaymentRow(r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=?`, id))
}

func (r Repo) GetPaymentByApplication(ctx context.Context, applicationID string) (domain.AdoptionPayment, error) {
	return scanPaymentRow(r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE application_id=?`, applicationID))
}

func (r Repo) UpdatePaymentTx(ctx context.Context, tx *sql.Tx, p domain.AdoptionPayment) error {
	res, err := r.exec(tx).ExecContext(ctx, `UPDATE payments SET status=?, updated_at=? WHERE id=?`, p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
