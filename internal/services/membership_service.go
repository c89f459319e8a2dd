package services

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/oneplusresilience/backend/internal/config"
	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
	"github.com/shopspring/decimal"
)

// MembershipService derives a member's financial standing from the payment
// ledger. Expiry and last-payment date are the only stored outputs; active
// status and labels are always computed from them on read.
type MembershipService struct {
	db   *sql.DB
	fees config.FeeSchedule
}

func NewMembershipService(db *sql.DB, fees config.FeeSchedule) *MembershipService {
	return &MembershipService{db: db, fees: fees}
}

// Fees returns the schedule the engine was built with.
func (s *MembershipService) Fees() config.FeeSchedule {
	return s.fees
}

// EnsureProfileTx returns the member's profile, creating it with a fresh
// control number on first access. The returned row is locked FOR UPDATE so
// recomputes for one member serialize across concurrent verifications.
func (s *MembershipService) EnsureProfileTx(tx *sql.Tx, userID int) (*models.MemberProfile, error) {
	profile, err := lockProfile(tx, userID)
	if err == nil {
		return profile, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now()
	controlNumber := generateControlNumber()
	_, err = tx.Exec(`
		INSERT INTO member_profiles (user_id, control_number, control_number_created)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, controlNumber, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create member profile: %w", err)
	}

	return lockProfile(tx, userID)
}

func lockProfile(tx *sql.Tx, userID int) (*models.MemberProfile, error) {
	var profile models.MemberProfile
	err := tx.QueryRow(`
		SELECT user_id, control_number, control_number_created, last_payment_date, expiry_date
		FROM member_profiles
		WHERE user_id = $1
		FOR UPDATE`, userID).
		Scan(&profile.UserID, &profile.ControlNumber, &profile.ControlNumberCreated,
			&profile.LastPaymentDate, &profile.ExpiryDate)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// generateControlNumber issues the immutable payment reference for a member:
// ONEPLUS- followed by ten digits derived from a random UUID.
func generateControlNumber() string {
	u := uuid.New()
	digits := binary.BigEndian.Uint64(u[:8]) % 10_000_000_000
	return fmt.Sprintf("ONEPLUS-%010d", digits)
}

// RecomputeTx refreshes last_payment_date from the verified ledger.
// Idempotent: the same ledger state always stores the same result, so it is
// safe on every decision path. Expiry moves only in the verification workflow
// when a payment turns verified; rejections and repeat recomputes never
// advance it.
func (s *MembershipService) RecomputeTx(tx *sql.Tx, userID int) error {
	var lastPaymentDate *time.Time
	var latest time.Time
	err := tx.QueryRow(`
		SELECT date_paid FROM membership_payments
		WHERE user_id = $1 AND status = $2 AND date_paid IS NOT NULL
		ORDER BY date_paid DESC
		LIMIT 1`, userID, models.PaymentStatusVerified).Scan(&latest)
	switch err {
	case nil:
		latest = dateOnly(latest)
		lastPaymentDate = &latest
	case sql.ErrNoRows:
		lastPaymentDate = nil
	default:
		return fmt.Errorf("failed to read latest payment: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE member_profiles
		SET last_payment_date = $1
		WHERE user_id = $2`,
		lastPaymentDate, userID)
	if err != nil {
		return fmt.Errorf("failed to persist membership state: %w", err)
	}
	return nil
}

func verifiedTotalForYearTx(tx *sql.Tx, userID, year int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.QueryRow(`
		SELECT COALESCE(SUM(amount_paid), 0) FROM membership_payments
		WHERE user_id = $1 AND status = $2 AND year = $3`,
		userID, models.PaymentStatusVerified, year).Scan(&total)
	return total, err
}

// Status assembles the derived membership view for one member.
func (s *MembershipService) Status(userID int, today time.Time) (*models.MembershipStatus, error) {
	today = dateOnly(today)

	var profile models.MemberProfile
	err := s.db.QueryRow(`
		SELECT user_id, control_number, last_payment_date, expiry_date
		FROM member_profiles
		WHERE user_id = $1`, userID).
		Scan(&profile.UserID, &profile.ControlNumber, &profile.LastPaymentDate, &profile.ExpiryDate)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var total decimal.Decimal
	if err := s.db.QueryRow(`
		SELECT COALESCE(SUM(amount_paid), 0) FROM membership_payments
		WHERE user_id = $1 AND status = $2 AND year = $3`,
		userID, models.PaymentStatusVerified, today.Year()).Scan(&total); err != nil {
		return nil, err
	}

	var pending bool
	if err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM membership_payments
			WHERE user_id = $1 AND status = $2 AND year = $3
		)`, userID, models.PaymentStatusPending, today.Year()).Scan(&pending); err != nil {
		return nil, err
	}

	status := &models.MembershipStatus{
		UserID:                profile.UserID,
		ControlNumber:         profile.ControlNumber,
		LastPaymentDate:       profile.LastPaymentDate,
		ExpiryDate:            profile.ExpiryDate,
		VerifiedTotalThisYear: total,
		CurrentBalance:        s.fees.AnnualFee.Sub(total),
		HasPendingPayments:    pending,
		IsActive:              profile.IsActiveMember(today),
	}
	status.Label = s.statusLabel(status)
	return status, nil
}

// statusLabel maps the derived state onto the human-readable membership label.
func (s *MembershipService) statusLabel(st *models.MembershipStatus) string {
	switch {
	case st.IsActive && st.VerifiedTotalThisYear.GreaterThanOrEqual(s.fees.AnnualFee):
		return "Active (Full Fee Paid)"
	case st.IsActive:
		return "Active (Partial/Installment Paid)"
	case st.HasPendingPayments:
		return "Pending Verification"
	case st.VerifiedTotalThisYear.GreaterThan(decimal.Zero):
		return fmt.Sprintf("Expired (Balance: TZS %s)", st.CurrentBalance.StringFixed(2))
	default:
		return "Inactive (Fee Pending)"
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetMyStatus returns the caller's membership standing
// @Summary Get my membership status
// @Description Derived membership status for the authenticated member
// @Tags membership
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.MembershipStatus
// @Failure 404 {object} ErrorResponse
// @Router /membership/status [get]
func (s *MembershipService) GetMyStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	status, err := s.Status(userID, time.Now())
	if err == ErrNotFound {
		// First access: create the profile lazily, then re-read.
		if err = s.ensureProfile(userID); err == nil {
			status, err = s.Status(userID, time.Now())
		}
	}
	if err != nil {
		log.Printf("[MEMBERSHIP] Status lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to load membership status", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *MembershipService) ensureProfile(userID int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.EnsureProfileTx(tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

type memberRow struct {
	User    models.User              `json:"user"`
	Profile *models.MemberProfile    `json:"profile,omitempty"`
	Status  *models.MembershipStatus `json:"status,omitempty"`
}

// ListMembers lists all members with their derived status
// @Summary List members
// @Description All users with membership profiles and derived status labels
// @Tags membership
// @Produce json
// @Security BearerAuth
// @Success 200 {array} memberRow
// @Router /members [get]
func (s *MembershipService) ListMembers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.role,
		       p.control_number, p.last_payment_date, p.expiry_date
		FROM users u
		LEFT JOIN member_profiles p ON p.user_id = u.id
		ORDER BY u.username`)
	if err != nil {
		log.Printf("[MEMBERSHIP] Members query failed: %v", err)
		SendErrorResponse(w, "Failed to list members", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	today := time.Now()
	members := []memberRow{}
	for rows.Next() {
		var m memberRow
		var controlNumber sql.NullString
		var lastPayment, expiry sql.NullTime
		if err := rows.Scan(&m.User.ID, &m.User.Username, &m.User.Email,
			&m.User.FirstName, &m.User.LastName, &m.User.Role,
			&controlNumber, &lastPayment, &expiry); err != nil {
			log.Printf("[MEMBERSHIP] Members scan failed: %v", err)
			SendErrorResponse(w, "Failed to list members", http.StatusInternalServerError, nil)
			return
		}
		if controlNumber.Valid {
			profile := models.MemberProfile{UserID: m.User.ID, ControlNumber: controlNumber.String}
			if lastPayment.Valid {
				profile.LastPaymentDate = &lastPayment.Time
			}
			if expiry.Valid {
				profile.ExpiryDate = &expiry.Time
			}
			m.Profile = &profile
			if status, err := s.Status(m.User.ID, today); err == nil {
				m.Status = status
			}
		}
		members = append(members, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"members": members})
}
