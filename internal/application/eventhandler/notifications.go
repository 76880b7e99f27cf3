// Package eventhandler содержит обработчики доменных событий.
// Обработчики выполняются после фиксации транзакции и запускают побочные
// эффекты - уведомления. Их ошибки логируются и никогда не откатывают операцию.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// Notifier доставляет сообщение пользователю.
type Notifier interface {
	Notify(ctx context.Context, recipientID, subject, body string) error
}

// ═══════════════════════════════════════════════════════════════════════════
// ON EXPENSE CREATED
// Сообщает плательщику, что расход записан и разделён между партнёрами.
// ═══════════════════════════════════════════════════════════════════════════

// OnExpenseCreatedHandler обрабатывает событие expense.created.
type OnExpenseCreatedHandler struct {
	notifier Notifier
	logger   *logger.Logger
	timeout  time.Duration
}

// NewOnExpenseCreatedHandler создаёт обработчик.
func NewOnExpenseCreatedHandler(notifier Notifier, log *logger.Logger) *OnExpenseCreatedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnExpenseCreatedHandler{
		notifier: notifier,
		logger:   log.With(logger.String("handler", "on_expense_created")),
		timeout:  5 * time.Second,
	}
}

// Handle реализует shared.EventHandler. Всегда возвращает nil.
func (h *OnExpenseCreatedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.ExpenseCreatedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if e.PaidBy == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	body := fmt.Sprintf("Expense %q for %s was recorded", e.Title, e.Amount.StringFixed(0))
	if e.ShareCount > 0 {
		body += fmt.Sprintf(" and split between %d partners", e.ShareCount)
	}
	if err := h.notifier.Notify(ctx, e.PaidBy, "Expense recorded", body+"."); err != nil {
		h.logger.Warn("payer notification failed",
			logger.ExpenseID(e.AggregateID()),
			logger.UserID(e.PaidBy),
			logger.Err(err),
		)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ON SETTLEMENT RECORDED
// Подтверждает партнёру получение погашения и показывает остаток долга.
// ═══════════════════════════════════════════════════════════════════════════

// OnSettlementRecordedHandler обрабатывает событие settlement.recorded.
type OnSettlementRecordedHandler struct {
	notifier Notifier
	logger   *logger.Logger
	timeout  time.Duration
}

// NewOnSettlementRecordedHandler создаёт обработчик.
func NewOnSettlementRecordedHandler(notifier Notifier, log *logger.Logger) *OnSettlementRecordedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnSettlementRecordedHandler{
		notifier: notifier,
		logger:   log.With(logger.String("handler", "on_settlement_recorded")),
		timeout:  5 * time.Second,
	}
}

// Handle реализует shared.EventHandler. Всегда возвращает nil.
func (h *OnSettlementRecordedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.SettlementRecordedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	body := fmt.Sprintf("Your repayment of %s was applied to %d share(s). Remaining debt: %s.",
		e.Amount.StringFixed(0), e.SharesSettled, e.RemainingDebt.StringFixed(0))
	if err := h.notifier.Notify(ctx, e.PartnerID, "Repayment received", body); err != nil {
		h.logger.Warn("partner notification failed",
			logger.SettlementID(e.AggregateID()),
			logger.PartnerID(e.PartnerID),
			logger.Err(err),
		)
	}
	return nil
}

// Register подписывает обработчики на шину событий.
func Register(bus shared.EventSubscriber, notifier Notifier, log *logger.Logger) error {
	if err := bus.Subscribe(shared.EventExpenseCreated, NewOnExpenseCreatedHandler(notifier, log).Handle); err != nil {
		return fmt.Errorf("eventhandler: subscribe %s: %w", shared.EventExpenseCreated, err)
	}
	if err := bus.Subscribe(shared.EventSettlementRecorded, NewOnSettlementRecordedHandler(notifier, log).Handle); err != nil {
		return fmt.Errorf("eventhandler: subscribe %s: %w", shared.EventSettlementRecorded, err)
	}
	return nil
}
