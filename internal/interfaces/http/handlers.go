package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	ReceiptURL  *string `json:"receipt_url,omitempty"`
	Status      string  `json:"status"`
	SubmittedAt string  `json:"submitted_at"`
	ApprovedAt  *string `json:"approved_at,omitempty"`
	ApprovedBy  *int64  `json:"approved_by,omitempty"`
	RejectedAt  *string `json:"rejected_at,omitempty"`
	RejectedBy  *int64  `json:"rejected_by,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

// DecisionResponse represents the outcome of an approve/reject call
type DecisionResponse struct {
	Expense  ExpenseResponse      `json:"expense"`
	Outcome  string               `json:"outcome"`
	NextStep *entity.ApprovalStep `json:"next_step,omitempty"`
}

// CreateExpenseRequest is the body of POST /api/expenses
type CreateExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	ReceiptURL  *string         `json:"receipt_url"`
}

// DecisionRequest is the body of POST /api/expenses/:id/decision
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comments string `json:"comments"`
}

// ListExpensesRequest represents query parameters for the admin expense listing
type ListExpensesRequest struct {
	Status string `form:"status"`
	UserID int64  `form:"user_id"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if h.deps.Ready != nil && !h.deps.Ready() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data: HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Me handles GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: currentUser(c)})
}

// CreateExpense handles POST /api/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	expense, err := h.deps.Engine.CreateExpense(c.Request.Context(), workflow.CreateExpenseInput{
		SubmitterID: currentUser(c).ID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Description: req.Description,
		ReceiptURL:  req.ReceiptURL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: toExpenseResponse(expense)})
}

// ListMyExpenses handles GET /api/expenses
func (h *Handlers) ListMyExpenses(c *gin.Context) {
	expenses, err := h.deps.Expenses.ListMine(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toExpenseResponses(expenses)})
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	expense, err := h.deps.Expenses.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toExpenseResponse(expense)})
}

// UpdateExpense handles PUT /api/expenses/:id
func (h *Handlers) UpdateExpense(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	expense, err := h.deps.Expenses.Update(c.Request.Context(), currentUser(c).ID, id, service.UpdateExpenseInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Description: req.Description,
		ReceiptURL:  req.ReceiptURL,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toExpenseResponse(expense)})
}

// DeleteExpense handles DELETE /api/expenses/:id
func (h *Handlers) DeleteExpense(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.deps.Expenses.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetApprovalProgress handles GET /api/expenses/:id/approvals
func (h *Handlers) GetApprovalProgress(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if _, err := h.deps.Expenses.Get(c.Request.Context(), currentUser(c), id); err != nil {
		h.respondError(c, err)
		return
	}

	steps, err := h.deps.Engine.GetApprovalProgress(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: steps})
}

// GetExpenseHistory handles GET /api/expenses/:id/history
func (h *Handlers) GetExpenseHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	history, err := h.deps.Expenses.History(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// DecideExpense handles POST /api/expenses/:id/decision
func (h *Handlers) DecideExpense(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.deps.Engine.Decide(c.Request.Context(), workflow.DecisionInput{
		ExpenseID: id,
		ActorID:   currentUser(c).ID,
		Decision:  normalizeDecision(req.Decision),
		Comments:  req.Comments,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: DecisionResponse{
			Expense:  toExpenseResponse(result.Expense),
			Outcome:  string(result.Outcome),
			NextStep: result.NextStep,
		},
	})
}

// ListPendingApprovals handles GET /api/approvals/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	expenses, err := h.deps.Engine.ListPendingForApprover(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toExpenseResponses(expenses)})
}

// ListAllExpenses handles GET /api/admin/expenses
func (h *Handlers) ListAllExpenses(c *gin.Context) {
	var req ListExpensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	filter := entity.ExpenseFilter{
		Status: strings.ToLower(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if req.UserID > 0 {
		filter.UserID = &req.UserID
	}

	expenses, err := h.deps.Expenses.ListAll(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toExpenseResponses(expenses)})
}

// normalizeDecision accepts the verb forms as well as the status names
func normalizeDecision(decision string) string {
	switch d := strings.ToLower(strings.TrimSpace(decision)); d {
	case "approve":
		return entity.StatusApproved
	case "reject":
		return entity.StatusRejected
	default:
		return d
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toExpenseResponse(e *entity.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		Amount:      e.Amount.StringFixed(2),
		Currency:    e.Currency,
		Category:    e.Category,
		Description: e.Description,
		ReceiptURL:  e.ReceiptURL,
		Status:      e.Status,
		SubmittedAt: e.SubmittedAt.UTC().Format(time.RFC3339),
		ApprovedAt:  formatTime(e.ApprovedAt),
		ApprovedBy:  e.ApprovedBy,
		RejectedAt:  formatTime(e.RejectedAt),
		RejectedBy:  e.RejectedBy,
		UpdatedAt:   e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toExpenseResponses(expenses []*entity.Expense) []ExpenseResponse {
	out := make([]ExpenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	return out
}
