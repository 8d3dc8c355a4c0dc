package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mop1016/expense-tracker-backend/internal/transactions"
)

// TransactionHandler handles transaction endpoints.
type TransactionHandler struct {
	transactions *transactions.Service
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(transactionsService *transactions.Service) *TransactionHandler {
	return &TransactionHandler{transactions: transactionsService}
}

// Create records a new transaction.
func (h *TransactionHandler) Create(c *gin.Context) {
	var body transactions.CreateInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	row, errCreate := h.transactions.Create(c.Request.Context(), getUserID(c), body)
	if errCreate != nil {
		renderError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": row})
}

// List returns one page of the current user's transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	page, errList := h.transactions.ListUser(c.Request.Context(), getUserID(c), listFilter(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListGroup returns one page of a group's transactions.
func (h *TransactionHandler) ListGroup(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	page, errList := h.transactions.ListGroup(c.Request.Context(), groupID, getUserID(c), listFilter(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get returns one transaction owned by the current user.
func (h *TransactionHandler) Get(c *gin.Context) {
	transactionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	row, errGet := h.transactions.Get(c.Request.Context(), transactionID, getUserID(c))
	if errGet != nil {
		renderError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": row})
}

// Update applies a partial update to a transaction.
func (h *TransactionHandler) Update(c *gin.Context) {
	transactionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var patch transactions.Patch
	if errBind := c.ShouldBindJSON(&patch); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	row, errUpdate := h.transactions.Update(c.Request.Context(), transactionID, getUserID(c), patch)
	if errUpdate != nil {
		renderError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": row})
}

// Delete removes a transaction.
func (h *TransactionHandler) Delete(c *gin.Context) {
	transactionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if errDelete := h.transactions.Delete(c.Request.Context(), transactionID, getUserID(c)); errDelete != nil {
		renderError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func listFilter(c *gin.Context) transactions.ListFilter {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return transactions.ListFilter{
		Category:  c.Query("category"),
		Type:      c.Query("type"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Page:      page,
		PerPage:   perPage,
	}
}
