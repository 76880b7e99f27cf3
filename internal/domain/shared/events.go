package shared

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are published only after the owning unit of work commits.
const (
	// Expense events
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"

	// Settlement events
	EventSettlementRecorded EventType = "settlement.recorded"

	// Ledger events
	EventDayClosed      EventType = "ledger.day_closed"
	EventIncomeRecorded EventType = "ledger.income_recorded"

	// Payroll events
	EventTeacherPaymentRecorded EventType = "payroll.teacher_payment_recorded"

	// Settings events
	EventSplitConfigUpdated EventType = "settings.split_config_updated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Expense Events
// ═══════════════════════════════════════════════════════════════════════════

// ExpenseCreatedEvent is emitted after an expense and its shares were committed.
type ExpenseCreatedEvent struct {
	BaseEvent
	Title      string            `json:"title"`
	Amount     decimal.Decimal   `json:"amount"`
	PaidBy     string            `json:"paid_by"`
	ShareCount int               `json:"share_count"`
	Shares     map[string]string `json:"shares"` // partnerID -> share amount
}

// Payload implements Event interface.
func (e ExpenseCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"title":       e.Title,
		"amount":      e.Amount.String(),
		"paid_by":     e.PaidBy,
		"share_count": e.ShareCount,
		"shares":      e.Shares,
	}
}

// NewExpenseCreatedEvent creates a new ExpenseCreatedEvent.
func NewExpenseCreatedEvent(expenseID, title string, amount decimal.Decimal, paidBy string, shares map[string]string) ExpenseCreatedEvent {
	return ExpenseCreatedEvent{
		BaseEvent:  NewBaseEvent(EventExpenseCreated, expenseID),
		Title:      title,
		Amount:     amount,
		PaidBy:     paidBy,
		ShareCount: len(shares),
		Shares:     shares,
	}
}

// ExpenseDeletedEvent is emitted after an expense was removed and its debt reversed.
type ExpenseDeletedEvent struct {
	BaseEvent
	Amount    decimal.Decimal `json:"amount"`
	DeletedBy string          `json:"deleted_by"`
	Reversed  int             `json:"reversed_shares"`
}

// Payload implements Event interface.
func (e ExpenseDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":          e.Amount.String(),
		"deleted_by":      e.DeletedBy,
		"reversed_shares": e.Reversed,
	}
}

// NewExpenseDeletedEvent creates a new ExpenseDeletedEvent.
func NewExpenseDeletedEvent(expenseID string, amount decimal.Decimal, deletedBy string, reversed int) ExpenseDeletedEvent {
	return ExpenseDeletedEvent{
		BaseEvent: NewBaseEvent(EventExpenseDeleted, expenseID),
		Amount:    amount,
		DeletedBy: deletedBy,
		Reversed:  reversed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Settlement Events
// ═══════════════════════════════════════════════════════════════════════════

// SettlementRecordedEvent is emitted after a partner repayment was applied.
type SettlementRecordedEvent struct {
	BaseEvent
	PartnerID     string          `json:"partner_id"`
	Amount        decimal.Decimal `json:"amount"`
	SharesSettled int             `json:"shares_settled"`
	RemainingDebt decimal.Decimal `json:"remaining_debt"`
}

// Payload implements Event interface.
func (e SettlementRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"partner_id":     e.PartnerID,
		"amount":         e.Amount.String(),
		"shares_settled": e.SharesSettled,
		"remaining_debt": e.RemainingDebt.String(),
	}
}

// NewSettlementRecordedEvent creates a new SettlementRecordedEvent.
func NewSettlementRecordedEvent(settlementID, partnerID string, amount decimal.Decimal, settled int, remaining decimal.Decimal) SettlementRecordedEvent {
	return SettlementRecordedEvent{
		BaseEvent:     NewBaseEvent(EventSettlementRecorded, settlementID),
		PartnerID:     partnerID,
		Amount:        amount,
		SharesSettled: settled,
		RemainingDebt: remaining,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// DayClosedEvent is emitted after floating transactions were verified.
type DayClosedEvent struct {
	BaseEvent
	Day          string `json:"day"`
	ClosedBy     string `json:"closed_by"`
	Transitioned int    `json:"transitioned"`
}

// Payload implements Event interface.
func (e DayClosedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"day":          e.Day,
		"closed_by":    e.ClosedBy,
		"transitioned": e.Transitioned,
	}
}

// NewDayClosedEvent creates a new DayClosedEvent.
func NewDayClosedEvent(closingID, day, closedBy string, transitioned int) DayClosedEvent {
	return DayClosedEvent{
		BaseEvent:    NewBaseEvent(EventDayClosed, closingID),
		Day:          day,
		ClosedBy:     closedBy,
		Transitioned: transitioned,
	}
}

// IncomeRecordedEvent is emitted when floating income enters the journal.
type IncomeRecordedEvent struct {
	BaseEvent
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	CollectedBy string          `json:"collected_by"`
}

// Payload implements Event interface.
func (e IncomeRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"category":     e.Category,
		"amount":       e.Amount.String(),
		"collected_by": e.CollectedBy,
	}
}

// NewIncomeRecordedEvent creates a new IncomeRecordedEvent.
func NewIncomeRecordedEvent(txID, category string, amount decimal.Decimal, collectedBy string) IncomeRecordedEvent {
	return IncomeRecordedEvent{
		BaseEvent:   NewBaseEvent(EventIncomeRecorded, txID),
		Category:    category,
		Amount:      amount,
		CollectedBy: collectedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Payroll and Settings Events
// ═══════════════════════════════════════════════════════════════════════════

// TeacherPaymentRecordedEvent is emitted after a monthly payout was recorded.
type TeacherPaymentRecordedEvent struct {
	BaseEvent
	TeacherID string          `json:"teacher_id"`
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	Amount    decimal.Decimal `json:"amount"`
}

// Payload implements Event interface.
func (e TeacherPaymentRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"teacher_id": e.TeacherID,
		"month":      e.Month,
		"year":       e.Year,
		"amount":     e.Amount.String(),
	}
}

// NewTeacherPaymentRecordedEvent creates a new TeacherPaymentRecordedEvent.
func NewTeacherPaymentRecordedEvent(paymentID, teacherID string, month, year int, amount decimal.Decimal) TeacherPaymentRecordedEvent {
	return TeacherPaymentRecordedEvent{
		BaseEvent: NewBaseEvent(EventTeacherPaymentRecorded, paymentID),
		TeacherID: teacherID,
		Month:     month,
		Year:      year,
		Amount:    amount,
	}
}

// SplitConfigUpdatedEvent is emitted when an owner rewrites the split table.
type SplitConfigUpdatedEvent struct {
	BaseEvent
	Mode      string `json:"mode"`
	UpdatedBy string `json:"updated_by"`
}

// Payload implements Event interface.
func (e SplitConfigUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mode":       e.Mode,
		"updated_by": e.UpdatedBy,
	}
}

// NewSplitConfigUpdatedEvent creates a new SplitConfigUpdatedEvent.
func NewSplitConfigUpdatedEvent(mode, updatedBy string) SplitConfigUpdatedEvent {
	return SplitConfigUpdatedEvent{
		BaseEvent: NewBaseEvent(EventSplitConfigUpdated, "settings"),
		Mode:      mode,
		UpdatedBy: updatedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
