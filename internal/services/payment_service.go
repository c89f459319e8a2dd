package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/oneplusresilience/backend/internal/middleware"
	"github.com/oneplusresilience/backend/internal/models"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

// PaymentService handles member-facing submission and listing of membership
// payments. Submissions always enter the ledger as pending; only the
// verification workflow mutates them afterwards.
type PaymentService struct {
	db         *sql.DB
	redis      *redis.Client
	membership *MembershipService
	validator  *ValidationHelper
}

func NewPaymentService(db *sql.DB, redisClient *redis.Client, membership *MembershipService) *PaymentService {
	return &PaymentService{
		db:         db,
		redis:      redisClient,
		membership: membership,
		validator:  NewValidationHelper(),
	}
}

type submitPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	DatePaid      string          `json:"date_paid,omitempty"`      // YYYY-MM-DD, optional
	PaymentMethod string          `json:"payment_method,omitempty"` // defaults to bank_transfer
	Reference     string          `json:"reference,omitempty" validate:"max=120"`
}

// SubmitPayment records a pending membership payment
// @Summary Submit payment
// @Description Submit a membership fee payment for manual verification
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body submitPaymentRequest true "Payment submission"
// @Success 201 {object} models.MembershipPayment
// @Failure 400 {object} ErrorResponse
// @Router /payments [post]
func (s *PaymentService) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req submitPaymentRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Validation aborts before any write: amount must be positive, and an
	// explicit payment date must parse and not lie in the future.
	if !req.Amount.GreaterThan(decimal.Zero) {
		SendErrorResponse(w, "Amount must be greater than zero", http.StatusBadRequest, nil)
		return
	}
	var datePaid *time.Time
	if req.DatePaid != "" {
		parsed, err := time.Parse("2006-01-02", req.DatePaid)
		if err != nil {
			SendErrorResponse(w, "date_paid must be YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		if parsed.After(time.Now()) {
			SendErrorResponse(w, "date_paid cannot be in the future", http.StatusBadRequest, nil)
			return
		}
		datePaid = &parsed
	}
	method := req.PaymentMethod
	if method == "" {
		method = "bank_transfer"
	}

	now := time.Now()
	payment := models.MembershipPayment{
		UserID:        userID,
		AmountPaid:    req.Amount,
		DateSubmitted: now,
		DatePaid:      datePaid,
		Year:          now.Year(), // fee-year is fixed at submission time
		PaymentMethod: method,
		Reference:     req.Reference,
		Status:        models.PaymentStatusPending,
	}

	err := s.db.QueryRow(`
		INSERT INTO membership_payments
			(user_id, amount_paid, date_submitted, date_paid, year, payment_method, reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		payment.UserID, payment.AmountPaid, payment.DateSubmitted, payment.DatePaid,
		payment.Year, payment.PaymentMethod, payment.Reference, payment.Status).
		Scan(&payment.ID)
	if err != nil {
		log.Printf("[PAYMENT] Submission failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to submit payment", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PAYMENT] Payment %d submitted by user %d, amount %s, year %d",
		payment.ID, userID, payment.AmountPaid.StringFixed(2), payment.Year)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"payment": payment,
		"message": "Payment submitted. Awaiting bank verification.",
	})
}

// ListMyPayments lists the caller's payments
// @Summary List my payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.MembershipPayment
// @Router /payments [get]
func (s *PaymentService) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	s.listPayments(w, `WHERE user_id = $1`, userID)
}

// ListAllPayments lists every payment, newest first
// @Summary List all payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.MembershipPayment
// @Router /payments/all [get]
func (s *PaymentService) ListAllPayments(w http.ResponseWriter, r *http.Request) {
	s.listPayments(w, ``)
}

func (s *PaymentService) listPayments(w http.ResponseWriter, where string, args ...any) {
	query := fmt.Sprintf(`
		SELECT id, user_id, amount_paid, date_submitted, date_paid, year,
		       payment_method, reference, status, verified_by, verified_at
		FROM membership_payments
		%s
		ORDER BY date_submitted DESC`, where)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[PAYMENT] List query failed: %v", err)
		SendErrorResponse(w, "Failed to list payments", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	payments := []models.MembershipPayment{}
	for rows.Next() {
		var p models.MembershipPayment
		var reference sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.AmountPaid, &p.DateSubmitted, &p.DatePaid,
			&p.Year, &p.PaymentMethod, &reference, &p.Status, &p.VerifiedBy, &p.VerifiedAt); err != nil {
			log.Printf("[PAYMENT] List scan failed: %v", err)
			SendErrorResponse(w, "Failed to list payments", http.StatusInternalServerError, nil)
			return
		}
		p.Reference = reference.String
		payments = append(payments, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"payments": payments})
}

// GetPayment returns one payment by id
// @Summary Get payment
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param paymentId path int true "Payment ID"
// @Success 200 {object} models.MembershipPayment
// @Failure 404 {object} ErrorResponse
// @Router /payments/{paymentId} [get]
func (s *PaymentService) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := strconv.Atoi(chi.URLParam(r, "paymentId"))
	if err != nil {
		SendErrorResponse(w, "Invalid payment id", http.StatusBadRequest, nil)
		return
	}

	var p models.MembershipPayment
	var reference sql.NullString
	err = s.db.QueryRow(`
		SELECT id, user_id, amount_paid, date_submitted, date_paid, year,
		       payment_method, reference, status, verified_by, verified_at
		FROM membership_payments
		WHERE id = $1`, paymentID).
		Scan(&p.ID, &p.UserID, &p.AmountPaid, &p.DateSubmitted, &p.DatePaid,
			&p.Year, &p.PaymentMethod, &reference, &p.Status, &p.VerifiedBy, &p.VerifiedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Payment not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PAYMENT] Lookup failed for payment %d: %v", paymentID, err)
		SendErrorResponse(w, "Failed to load payment", http.StatusInternalServerError, nil)
		return
	}
	p.Reference = reference.String

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// PaymentInstructions returns bank transfer details for the caller
// @Summary Payment instructions
// @Description Bank details, the member's control number and a QR code of it
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /payments/instructions [get]
func (s *PaymentService) PaymentInstructions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var controlNumber string
	err := s.db.QueryRow(`SELECT control_number FROM member_profiles WHERE user_id = $1`, userID).
		Scan(&controlNumber)
	if err == sql.ErrNoRows {
		if err = s.membership.ensureProfile(userID); err == nil {
			err = s.db.QueryRow(`SELECT control_number FROM member_profiles WHERE user_id = $1`, userID).
				Scan(&controlNumber)
		}
	}
	if err != nil {
		log.Printf("[PAYMENT] Control number lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to load payment instructions", http.StatusInternalServerError, nil)
		return
	}

	qrImage, err := s.controlNumberQR(r.Context(), controlNumber)
	if err != nil {
		log.Printf("[PAYMENT] QR generation failed for user %d: %v", userID, err)
		// Instructions are still useful without the image.
		qrImage = ""
	}

	viper.SetDefault("bank.name", "CRDB Bank PLC")
	viper.SetDefault("bank.account_name", "OnePlus Resilience Organization")
	viper.SetDefault("bank.account_number", "01J100xxxxxxx")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"bank_name":      viper.GetString("bank.name"),
		"account_name":   viper.GetString("bank.account_name"),
		"account_number": viper.GetString("bank.account_number"),
		"amount":         s.membership.Fees().AnnualFee,
		"reference":      controlNumber,
		"qr_image":       qrImage,
		"instructions":   "Please use your unique control number as payment reference.",
	})
}

// controlNumberQR renders the control number as a base64 PNG, cached in Redis
// since control numbers never change.
func (s *PaymentService) controlNumberQR(ctx context.Context, controlNumber string) (string, error) {
	key := fmt.Sprintf("qr:control:%s", controlNumber)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			return cached, nil
		}
	}

	qr, err := qrcode.New(controlNumber, qrcode.Medium)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}
	image := base64.StdEncoding.EncodeToString(buf.Bytes())

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, image, 24*time.Hour).Err(); err != nil {
			log.Printf("[PAYMENT] Failed to cache QR image: %v", err)
		}
	}
	return image, nil
}
