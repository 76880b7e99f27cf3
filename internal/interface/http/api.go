package http

import (
	"net/http"
	"time"

	"github.com/alem-hub/academy-finance/internal/application/command"
	"github.com/alem-hub/academy-finance/internal/application/query"
	"github.com/alem-hub/academy-finance/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth is the liveness check; it never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().Round(time.Second).String(),
		"version": s.config.Version,
	})
}

// handleReady checks PostgreSQL and Redis.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{"healthy": true})
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPENSES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd, err := req.command(handlers.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.CreateExpense.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]interface{}{
		"expense":       newExpenseResponse(res.Expense),
		"partners":      newPartnerResponses(res.Partners),
		"transactionId": res.TransactionID,
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := query.ListExpensesQuery{
		Category: r.URL.Query().Get("category"),
		Caller:   handlers.CallerFrom(r.Context()),
	}
	var err error
	if q.From, err = parseDate("from", r.URL.Query().Get("from")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if q.To, err = parseDate("to", r.URL.Query().Get("to")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeError(w, r, err)
		return
	}

	items, err := s.deps.Expenses.List(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]expenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, newExpenseResponse(e))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.Expenses.Get(r.Context(), handlers.CallerFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newExpenseResponse(e))
}

func (s *Server) handleMarkExpensePaid(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.MarkExpensePaid.Handle(r.Context(), command.MarkExpensePaidCommand{
		ExpenseID: r.PathValue("id"),
		Caller:    handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newExpenseResponse(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.DeleteExpense.Handle(r.Context(), command.DeleteExpenseCommand{
		ExpenseID: r.PathValue("id"),
		Caller:    handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"expense":       newExpenseResponse(res.Expense),
		"partners":      newPartnerResponses(res.Partners),
		"transactionId": res.TransactionID,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTNERS & SETTLEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	var req recordSettlementRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.RecordSettlement.Handle(r.Context(), command.RecordSettlementCommand{
		PartnerID: req.PartnerID,
		Amount:    req.Amount,
		Method:    req.Method,
		Date:      date,
		Notes:     req.Notes,
		Caller:    handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, settlementResultResponse{
		Settlement: newSettlementResponse(res.Settlement),
		Partner:    newPartnerResponse(res.Partner),
		Shares:     newShareResponses(res.Shares),
	})
}

func (s *Server) handleListPartnerBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.deps.PartnerBalances.Handle(r.Context(), query.ListPartnerBalancesQuery{
		WithHistory: queryBool(r, "history"),
		Caller:      handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]partnerBalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, newPartnerBalanceResponse(b))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetPartnerBalance(w http.ResponseWriter, r *http.Request) {
	balances, err := s.deps.PartnerBalances.Handle(r.Context(), query.ListPartnerBalancesQuery{
		PartnerID:   r.PathValue("id"),
		WithHistory: true,
		Caller:      handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(balances) == 0 {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "partner not found", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, newPartnerBalanceResponse(balances[0]))
}

func (s *Server) handleSyncPartner(w http.ResponseWriter, r *http.Request) {
	var req syncPartnerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.SyncPartner.Handle(r.Context(), command.SyncPartnerCommand{
		UserID: r.PathValue("id"),
		Name:   req.Name,
		Role:   req.Role,
		Caller: handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, newPartnerResponse(res.Partner))
}

// ══════════════════════════════════════════════════════════════════════════════
// FINANCE & PAYROLL
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleFinanceOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.deps.FinanceOverview.Handle(r.Context(), query.GetFinanceOverviewQuery{
		Caller: handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, overview)
}

func (s *Server) handleTeacherPayroll(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.TeacherPayroll.Handle(r.Context(), query.GetTeacherPayrollQuery{
		Caller: handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleRecordTeacherPayment(w http.ResponseWriter, r *http.Request) {
	var cmd command.RecordTeacherPaymentCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd.Caller = handlers.CallerFrom(r.Context())

	res, err := s.deps.RecordTeacherPayment.Handle(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newTeacherPaymentResponse(res.Payment, res.Teacher, res.TransactionID))
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRecordIncome(w http.ResponseWriter, r *http.Request) {
	var req recordIncomeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.deps.RecordIncome.Handle(r.Context(), command.RecordIncomeCommand{
		Category:    req.Category,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
		Caller:      handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newTransactionResponse(tx))
}

func (s *Server) handleCloseDay(w http.ResponseWriter, r *http.Request) {
	var req closeDayRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.CloseDay.Handle(r.Context(), command.CloseDayCommand{
		Day:    req.Day,
		Caller: handlers.CallerFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, closeDayResponse{
		ClosingID:     res.ClosingID,
		Day:           res.Day,
		Transitioned:  res.Transitioned,
		Income:        res.Income,
		Expense:       res.Expense,
		AlreadyClosed: res.AlreadyClosed,
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := query.ListTransactionsQuery{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
		Caller: handlers.CallerFrom(r.Context()),
	}
	var err error
	if q.From, err = parseDate("from", r.URL.Query().Get("from")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if q.To, err = parseDate("to", r.URL.Query().Get("to")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		s.writeError(w, r, err)
		return
	}

	txs, err := s.deps.ListTransactions.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionResponse(t))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.GetSettings.Handle(r.Context(), handlers.CallerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newConfigurationResponse(cfg))
}

func (s *Server) handleUpdateSplit(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateSplitConfigCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd.Caller = handlers.CallerFrom(r.Context())

	cfg, err := s.deps.UpdateSettings.UpdateSplit(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newConfigurationResponse(cfg))
}

func (s *Server) handleUpdateSalary(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateSalaryConfigCommand
	if err := decodeJSON(r, &cmd); err != nil {
		s.writeError(w, r, err)
		return
	}
	cmd.Caller = handlers.CallerFrom(r.Context())

	cfg, err := s.deps.UpdateSettings.UpdateSalary(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newConfigurationResponse(cfg))
}
