package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/application/command"
	"github.com/alem-hub/academy-finance/internal/application/query"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING
// ══════════════════════════════════════════════════════════════════════════════

// decodeJSON reads a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return shared.NewValidationError("body", "request body is required")
		case errors.As(err, &maxErr):
			return shared.NewValidationError("body", fmt.Sprintf("must not exceed %d bytes", maxErr.Limit))
		default:
			return shared.NewValidationError("body", "malformed JSON: "+err.Error())
		}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return shared.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}

// parseDate accepts YYYY-MM-DD in the academy timezone or RFC 3339.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := timeutil.ParseDate(s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, shared.NewValidationError(field, "must be YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, shared.NewValidationError(key, "must be an integer")
	}
	return n, nil
}

func queryBool(r *http.Request, key string) bool {
	v := strings.ToLower(r.URL.Query().Get(key))
	return v == "true" || v == "1" || v == "yes"
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

type createExpenseRequest struct {
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	VendorName  string          `json:"vendorName"`
	Description string          `json:"description"`
	ExpenseDate string          `json:"expenseDate"`
	DueDate     string          `json:"dueDate"`
	PaidByType  string          `json:"paidByType"`
	Status      string          `json:"status"`
}

func (req createExpenseRequest) command(caller shared.Caller) (command.CreateExpenseCommand, error) {
	cmd := command.CreateExpenseCommand{
		Title:       req.Title,
		Category:    req.Category,
		Amount:      req.Amount,
		VendorName:  req.VendorName,
		Description: req.Description,
		PaidByType:  req.PaidByType,
		Status:      req.Status,
		Caller:      caller,
	}
	expenseDate, err := parseDate("expenseDate", req.ExpenseDate)
	if err != nil {
		return cmd, err
	}
	if expenseDate != nil {
		cmd.ExpenseDate = *expenseDate
	}
	if cmd.DueDate, err = parseDate("dueDate", req.DueDate); err != nil {
		return cmd, err
	}
	return cmd, nil
}

type recordSettlementRequest struct {
	PartnerID string          `json:"partnerId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Date      string          `json:"date"`
	Notes     string          `json:"notes"`
}

type recordIncomeRequest struct {
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

type closeDayRequest struct {
	Day string `json:"day"`
}

type syncPartnerRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

type shareResponse struct {
	ID              string          `json:"id"`
	ExpenseID       string          `json:"expenseId"`
	PartnerID       string          `json:"partnerId"`
	PartnerName     string          `json:"partnerName"`
	Percentage      decimal.Decimal `json:"percentage"`
	Amount          decimal.Decimal `json:"amount"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	Status          string          `json:"status"`
	RepaymentStatus string          `json:"repaymentStatus"`
	CreatedAt       time.Time       `json:"createdAt"`
	SettledAt       *time.Time      `json:"settledAt,omitempty"`
}

func newShareResponse(s *expense.Share) shareResponse {
	return shareResponse{
		ID:              s.ID,
		ExpenseID:       s.ExpenseID,
		PartnerID:       s.PartnerID,
		PartnerName:     s.PartnerName,
		Percentage:      s.Percentage,
		Amount:          s.Amount,
		PaidAmount:      s.PaidAmount,
		Outstanding:     s.Outstanding(),
		Status:          string(s.Status),
		RepaymentStatus: string(s.RepaymentStatus),
		CreatedAt:       s.CreatedAt,
		SettledAt:       s.SettledAt,
	}
}

func newShareResponses(shares []*expense.Share) []shareResponse {
	out := make([]shareResponse, 0, len(shares))
	for _, s := range shares {
		out = append(out, newShareResponse(s))
	}
	return out
}

type expenseResponse struct {
	ID             string                     `json:"id"`
	Title          string                     `json:"title"`
	Category       string                     `json:"category"`
	Amount         decimal.Decimal            `json:"amount"`
	VendorName     string                     `json:"vendorName"`
	Description    string                     `json:"description,omitempty"`
	ExpenseDate    string                     `json:"expenseDate"`
	DueDate        string                     `json:"dueDate,omitempty"`
	PaidByType     string                     `json:"paidByType"`
	PaidBy         string                     `json:"paidBy"`
	Status         string                     `json:"status"`
	HasPartnerDebt bool                       `json:"hasPartnerDebt"`
	SplitRatio     map[string]decimal.Decimal `json:"splitRatio"`
	Shares         []shareResponse            `json:"shares"`
	CreatedBy      string                     `json:"createdBy"`
	CreatedAt      time.Time                  `json:"createdAt"`
	PaidAt         *time.Time                 `json:"paidAt,omitempty"`
}

func newExpenseResponse(e *expense.Expense) expenseResponse {
	resp := expenseResponse{
		ID:             e.ID,
		Title:          e.Title,
		Category:       e.Category,
		Amount:         e.Amount,
		VendorName:     e.VendorName,
		Description:    e.Description,
		ExpenseDate:    timeutil.FormatDate(e.ExpenseDate),
		PaidByType:     string(e.PaidByType),
		PaidBy:         e.PaidBy,
		Status:         string(e.Status),
		HasPartnerDebt: e.HasPartnerDebt,
		SplitRatio:     e.SplitRatio,
		Shares:         newShareResponses(e.Shares),
		CreatedBy:      e.CreatedBy,
		CreatedAt:      e.CreatedAt,
		PaidAt:         e.PaidAt,
	}
	if e.DueDate != nil {
		resp.DueDate = timeutil.FormatDate(*e.DueDate)
	}
	if resp.SplitRatio == nil {
		resp.SplitRatio = map[string]decimal.Decimal{}
	}
	return resp
}

type partnerResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	ExpenseDebt decimal.Decimal `json:"expenseDebt"`
	DebtToOwner decimal.Decimal `json:"debtToOwner"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func newPartnerResponse(p *partner.Partner) partnerResponse {
	return partnerResponse{
		ID:          p.ID,
		Name:        p.Name,
		Role:        string(p.Role),
		ExpenseDebt: p.ExpenseDebt,
		DebtToOwner: p.DebtToOwner,
		UpdatedAt:   p.UpdatedAt,
	}
}

func newPartnerResponses(ps []*partner.Partner) []partnerResponse {
	out := make([]partnerResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, newPartnerResponse(p))
	}
	return out
}

type settlementResponse struct {
	ID          string                  `json:"id"`
	PartnerID   string                  `json:"partnerId"`
	PartnerName string                  `json:"partnerName"`
	Amount      decimal.Decimal         `json:"amount"`
	Date        time.Time               `json:"date"`
	Method      string                  `json:"method"`
	Notes       string                  `json:"notes,omitempty"`
	RecordedBy  string                  `json:"recordedBy"`
	Allocations []settlement.Allocation `json:"allocations"`
	CreatedAt   time.Time               `json:"createdAt"`
}

func newSettlementResponse(s *settlement.Settlement) settlementResponse {
	resp := settlementResponse{
		ID:          s.ID,
		PartnerID:   s.PartnerID,
		PartnerName: s.PartnerName,
		Amount:      s.Amount,
		Date:        s.Date,
		Method:      string(s.Method),
		Notes:       s.Notes,
		RecordedBy:  s.RecordedBy,
		Allocations: s.Allocations,
		CreatedAt:   s.CreatedAt,
	}
	if resp.Allocations == nil {
		resp.Allocations = []settlement.Allocation{}
	}
	return resp
}

type settlementResultResponse struct {
	Settlement settlementResponse `json:"settlement"`
	Partner    partnerResponse    `json:"partner"`
	Shares     []shareResponse    `json:"shares"`
}

type partnerBalanceResponse struct {
	partnerResponse
	Outstanding decimal.Decimal      `json:"outstanding"`
	OpenShares  []shareResponse      `json:"openShares"`
	Settlements []settlementResponse `json:"settlements,omitempty"`
}

func newPartnerBalanceResponse(b query.PartnerBalance) partnerBalanceResponse {
	resp := partnerBalanceResponse{
		partnerResponse: newPartnerResponse(b.Partner),
		Outstanding:     b.Outstanding,
		OpenShares:      newShareResponses(b.OpenShares),
	}
	for _, s := range b.Settlements {
		resp.Settlements = append(resp.Settlements, newSettlementResponse(s))
	}
	return resp
}

type transactionResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	CollectedBy string          `json:"collectedBy"`
	Status      string          `json:"status"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	VerifiedAt  *time.Time      `json:"verifiedAt,omitempty"`
	VerifiedBy  string          `json:"verifiedBy,omitempty"`
}

func newTransactionResponse(t *ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Type:        string(t.Type),
		Category:    t.Category,
		Amount:      t.Amount,
		Date:        t.Date,
		CollectedBy: t.CollectedBy,
		Status:      string(t.Status),
		Reference:   t.Reference,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		VerifiedAt:  t.VerifiedAt,
		VerifiedBy:  t.VerifiedBy,
	}
}

type closeDayResponse struct {
	ClosingID     string          `json:"closingId,omitempty"`
	Day           string          `json:"day"`
	Transitioned  int             `json:"transitioned"`
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	AlreadyClosed bool            `json:"alreadyClosed"`
}

type teacherPaymentResponse struct {
	ID            string          `json:"id"`
	TeacherID     string          `json:"teacherId"`
	TeacherName   string          `json:"teacherName"`
	Month         int             `json:"month"`
	Year          int             `json:"year"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	Status        string          `json:"status"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	TransactionID string          `json:"transactionId"`
}

func newTeacherPaymentResponse(p *payroll.TeacherPayment, t *payroll.Teacher, txID string) teacherPaymentResponse {
	resp := teacherPaymentResponse{
		ID:            p.ID,
		TeacherID:     p.TeacherID,
		Month:         p.Month,
		Year:          p.Year,
		AmountPaid:    p.AmountPaid,
		Status:        string(p.Status),
		PaidAt:        p.PaidAt,
		TransactionID: txID,
	}
	if t != nil {
		resp.TeacherName = t.Name
	}
	return resp
}

type configurationResponse struct {
	Mode          string                     `json:"mode"`
	ExpenseShares []settings.ShareEntry      `json:"expenseShares"`
	ExpenseSplit  map[string]decimal.Decimal `json:"expenseSplit"`
	PartnerIDs    map[string]string          `json:"partnerIds"`
	SalaryConfig  settings.SalaryConfig      `json:"salaryConfig"`
	UpdatedAt     time.Time                  `json:"updatedAt"`
	UpdatedBy     string                     `json:"updatedBy,omitempty"`
}

func newConfigurationResponse(c *settings.Configuration) configurationResponse {
	resp := configurationResponse{
		Mode:          string(c.SplitMode().Kind()),
		ExpenseShares: c.ExpenseShares,
		ExpenseSplit:  c.Legacy.Percentages,
		PartnerIDs:    c.Legacy.PartnerIDs,
		SalaryConfig:  c.Salary,
		UpdatedAt:     c.UpdatedAt,
		UpdatedBy:     c.UpdatedBy,
	}
	if resp.ExpenseShares == nil {
		resp.ExpenseShares = []settings.ShareEntry{}
	}
	return resp
}
