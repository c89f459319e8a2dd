package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// Event is one audit record. Every payment verification decision is logged so
// the ledger's history of who decided what survives outside the database.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	PaymentID int       `json:"payment_id"`
	UserID    int       `json:"user_id"`
	ActorID   int       `json:"actor_id,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

// LogDecision records a verify/reject outcome on a payment.
func (a *Logger) LogDecision(eventType string, paymentID, userID, actorID int, amount decimal.Decimal, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: eventType,
		PaymentID: paymentID,
		UserID:    userID,
		ActorID:   actorID,
		Amount:    amount.StringFixed(2),
		Status:    status,
	})
}

// LogWebhook records a provider-driven verification.
func (a *Logger) LogWebhook(paymentID, userID int, amount decimal.Decimal, reference string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "WEBHOOK_VERIFY",
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount.StringFixed(2),
		Status:    "SUCCESS",
		Details:   map[string]string{"reference": reference},
	})
}

func (a *Logger) LogError(eventType string, paymentID int, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: eventType,
		PaymentID: paymentID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
