package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oneplusresilience/backend/internal/audit"
	"github.com/oneplusresilience/backend/internal/config"
	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// VerificationService owns the pending -> verified/failed transition on
// membership payments. The status flip, any expiry advancement and the
// aggregate recompute run in one transaction: all-or-nothing.
type VerificationService struct {
	db            *sql.DB
	membership    *MembershipService
	audit         *audit.Logger
	verifierRoles map[string]bool
}

func NewVerificationService(db *sql.DB, membership *MembershipService, verifierRoles []string) *VerificationService {
	allowed := make(map[string]bool, len(verifierRoles))
	for _, role := range verifierRoles {
		allowed[role] = true
	}
	return &VerificationService{
		db:            db,
		membership:    membership,
		audit:         audit.NewLogger(),
		verifierRoles: allowed,
	}
}

func (s *VerificationService) authorize(actor models.User) error {
	if actor.IsSuperuser {
		return nil
	}
	if !s.verifierRoles[actor.Role] {
		return ErrNotAllowed
	}
	return nil
}

// Verify marks a pending payment verified on behalf of actor and updates the
// member's standing. Fails with ErrNotFound, ErrInvalidState or ErrNotAllowed.
func (s *VerificationService) Verify(paymentID int, actor models.User) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	payment, err := s.decide(paymentID, models.PaymentStatusVerified, &actor.ID, time.Now())
	if err != nil {
		return err
	}
	s.audit.LogDecision("VERIFY", payment.ID, payment.UserID, actor.ID, payment.AmountPaid, "SUCCESS")
	return nil
}

// Reject marks a pending payment failed. Amounts and expiry are untouched; the
// recompute still runs as an idempotent correction.
func (s *VerificationService) Reject(paymentID int, actor models.User) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	payment, err := s.decide(paymentID, models.PaymentStatusFailed, &actor.ID, time.Now())
	if err != nil {
		return err
	}
	s.audit.LogDecision("REJECT", payment.ID, payment.UserID, actor.ID, payment.AmountPaid, "SUCCESS")
	return nil
}

// decide performs the single permitted mutation of a ledger entry. verifiedBy
// is nil only for provider-webhook verifications.
func (s *VerificationService) decide(paymentID int, newStatus string, verifiedBy *int, now time.Time) (*models.MembershipPayment, error) {
	today := dateOnly(now)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment, err := getPaymentTx(tx, paymentID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Lock the member's profile before the flip: recomputes for one member
	// must serialize, and the profile row is the single-writer lock.
	if _, err := s.membership.EnsureProfileTx(tx, payment.UserID); err != nil {
		return nil, fmt.Errorf("failed to lock member profile: %w", err)
	}

	// Compare-and-set on status. Whichever caller commits first wins; the
	// loser sees zero rows affected and backs off with ErrInvalidState.
	result, err := tx.Exec(`
		UPDATE membership_payments
		SET status = $1,
		    verified_by = $2,
		    verified_at = $3,
		    date_paid = COALESCE(date_paid, $4)
		WHERE id = $5 AND status = $6`,
		newStatus, verifiedBy, now, today, paymentID, models.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrInvalidState
	}

	// Expiry advances on the verify path only, always before the aggregate
	// recompute. Rejections never move expiry.
	if newStatus == models.PaymentStatusVerified {
		if err := s.advanceExpiryTx(tx, payment.UserID, today); err != nil {
			return nil, err
		}
	}

	if err := s.membership.RecomputeTx(tx, payment.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return payment, nil
}

// advanceExpiryTx moves the member's expiry forward for a newly verified
// payment. Below the annual fee it grants 90 days per full installment paid
// this fee-year, capped at 360 days, anchored at the date_paid of the year's
// earliest verified payment. At or above the annual fee it renews for a full
// year instead.
func (s *VerificationService) advanceExpiryTx(tx *sql.Tx, userID int, today time.Time) error {
	fees := s.membership.Fees()

	total, err := verifiedTotalForYearTx(tx, userID, today.Year())
	if err != nil {
		return fmt.Errorf("failed to sum verified payments: %w", err)
	}
	if total.GreaterThanOrEqual(fees.AnnualFee) {
		return s.applyRenewalTx(tx, userID, today)
	}

	deservedDays := installmentDays(fees, total)
	if deservedDays == 0 {
		return nil
	}

	var anchor time.Time
	err = tx.QueryRow(`
		SELECT date_paid FROM membership_payments
		WHERE user_id = $1 AND status = $2 AND year = $3 AND date_paid IS NOT NULL
		ORDER BY date_paid ASC
		LIMIT 1`, userID, models.PaymentStatusVerified, today.Year()).Scan(&anchor)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read installment anchor: %w", err)
	}

	expiry := dateOnly(anchor).AddDate(0, 0, deservedDays)

	_, err = tx.Exec(`UPDATE member_profiles SET expiry_date = $1 WHERE user_id = $2`,
		expiry, userID)
	if err != nil {
		return fmt.Errorf("failed to persist installment expiry: %w", err)
	}
	return nil
}

// applyRenewalTx extends the membership by a full year from whichever is
// later, today or the unexpired remainder. Unused time is never lost.
func (s *VerificationService) applyRenewalTx(tx *sql.Tx, userID int, today time.Time) error {
	var expiry *time.Time
	if err := tx.QueryRow(`SELECT expiry_date FROM member_profiles WHERE user_id = $1`, userID).
		Scan(&expiry); err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	anchor := today
	if expiry != nil && dateOnly(*expiry).After(today) {
		anchor = dateOnly(*expiry)
	}
	newExpiry := anchor.AddDate(0, 0, s.membership.Fees().RenewalDays)

	_, err := tx.Exec(`UPDATE member_profiles SET expiry_date = $1 WHERE user_id = $2`,
		newExpiry, userID)
	if err != nil {
		return fmt.Errorf("failed to persist renewal: %w", err)
	}
	return nil
}

// installmentDays converts a year's verified total into membership days:
// 90 per full minimum installment, capped below a full year so only the
// full-fee path grants the 365-day renewal.
func installmentDays(fees config.FeeSchedule, total decimal.Decimal) int {
	installments := int(total.Div(fees.MinimumInstallmentFee).IntPart())
	if installments < 1 {
		return 0
	}
	days := installments * fees.DaysPerInstallment
	if days > fees.InstallmentDaysCap {
		days = fees.InstallmentDaysCap
	}
	return days
}

func getPaymentTx(tx *sql.Tx, paymentID int) (*models.MembershipPayment, error) {
	var p models.MembershipPayment
	err := tx.QueryRow(`
		SELECT id, user_id, amount_paid, year, status
		FROM membership_payments
		WHERE id = $1`, paymentID).
		Scan(&p.ID, &p.UserID, &p.AmountPaid, &p.Year, &p.Status)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func actorFromContext(r *http.Request) models.User {
	userID, _ := middleware.UserIDFromContext(r.Context())
	role, _ := r.Context().Value(middleware.UserRoleKey).(string)
	superuser, _ := r.Context().Value(middleware.SuperuserKey).(bool)
	return models.User{ID: userID, Role: role, IsSuperuser: superuser}
}

// VerifyPayment verifies a pending payment
// @Summary Verify payment
// @Description Mark a pending membership payment as verified and recompute status
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentId path int true "Payment ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /payments/{paymentId}/verify [post]
func (s *VerificationService) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := strconv.Atoi(chi.URLParam(r, "paymentId"))
	if err != nil {
		SendErrorResponse(w, "Invalid payment id", http.StatusBadRequest, nil)
		return
	}

	actor := actorFromContext(r)
	if err := s.Verify(paymentID, actor); err != nil {
		log.Printf("[VERIFY] Payment %d verification by user %d failed: %v", paymentID, actor.ID, err)
		SendWorkflowError(w, err)
		return
	}

	log.Printf("[VERIFY] Payment %d verified by user %d", paymentID, actor.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Payment verified successfully"})
}

// RejectPayment rejects a pending payment
// @Summary Reject payment
// @Description Mark a pending membership payment as failed
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentId path int true "Payment ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /payments/{paymentId}/reject [post]
func (s *VerificationService) RejectPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := strconv.Atoi(chi.URLParam(r, "paymentId"))
	if err != nil {
		SendErrorResponse(w, "Invalid payment id", http.StatusBadRequest, nil)
		return
	}

	actor := actorFromContext(r)
	if err := s.Reject(paymentID, actor); err != nil {
		log.Printf("[VERIFY] Payment %d rejection by user %d failed: %v", paymentID, actor.ID, err)
		SendWorkflowError(w, err)
		return
	}

	log.Printf("[VERIFY] Payment %d rejected by user %d", paymentID, actor.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Payment rejected"})
}

type webhookPayload struct {
	TxID      string          `json:"tx_id"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentWebhook handles the payment provider callback
// @Summary Payment provider webhook
// @Description Provider callback matching a payment by reference; a success status verifies it
// @Tags webhooks
// @Accept json
// @Produce json
// @Param request body webhookPayload true "Provider payload"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /webhooks/payment [post]
func (s *VerificationService) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if secret := viper.GetString("webhook.secret"); secret != "" {
		if !verifyWebhookSignature(body, r.Header.Get("X-Webhook-Signature"), secret) {
			log.Printf("[WEBHOOK] Signature verification failed from %s", r.RemoteAddr)
			SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		SendErrorResponse(w, "Invalid payload", http.StatusBadRequest, nil)
		return
	}

	var paymentID int
	err = s.db.QueryRow(`SELECT id FROM membership_payments WHERE reference = $1`,
		payload.Reference).Scan(&paymentID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Payment not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[WEBHOOK] Payment lookup failed: %v", err)
		SendErrorResponse(w, "Failed to process webhook", http.StatusInternalServerError, nil)
		return
	}

	if payload.Status == "success" {
		// Same transition as the operator verify path, minus the role check.
		// No verifier identity is recorded for provider confirmations.
		payment, err := s.decide(paymentID, models.PaymentStatusVerified, nil, time.Now())
		if err != nil && err != ErrInvalidState {
			log.Printf("[WEBHOOK] Verification of payment %d failed: %v", paymentID, err)
			SendWorkflowError(w, err)
			return
		}
		if err == nil {
			s.audit.LogWebhook(payment.ID, payment.UserID, payment.AmountPaid, payload.Reference)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func verifyWebhookSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
