package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mop1016/expense-tracker-backend/internal/einvoice"
)

// EInvoiceHandler handles carrier and invoice endpoints.
type EInvoiceHandler struct {
	einvoice *einvoice.Service
}

// NewEInvoiceHandler constructs an EInvoiceHandler.
func NewEInvoiceHandler(einvoiceService *einvoice.Service) *EInvoiceHandler {
	return &EInvoiceHandler{einvoice: einvoiceService}
}

// addCarrierRequest defines the request body for carrier registration.
type addCarrierRequest struct {
	CarrierType      string `json:"carrier_type"`
	CarrierID        string `json:"carrier_id"`
	CarrierName      string `json:"carrier_name"`
	VerificationCode string `json:"verification_code"`
}

// AddCarrier registers an e-invoice carrier for the current user.
func (h *EInvoiceHandler) AddCarrier(c *gin.Context) {
	var body addCarrierRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	carrier, errAdd := h.einvoice.AddCarrier(c.Request.Context(), getUserID(c),
		body.CarrierType, body.CarrierID, body.CarrierName, body.VerificationCode)
	if errAdd != nil {
		renderError(c, errAdd)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"carrier": carrier})
}

// ListCarriers returns the user's registered carriers.
func (h *EInvoiceHandler) ListCarriers(c *gin.Context) {
	carriers, errList := h.einvoice.ListCarriers(c.Request.Context(), getUserID(c))
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"carriers": carriers})
}

// DeleteCarrier removes a carrier.
func (h *EInvoiceHandler) DeleteCarrier(c *gin.Context) {
	carrierID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if errDelete := h.einvoice.DeleteCarrier(c.Request.Context(), getUserID(c), carrierID); errDelete != nil {
		renderError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SyncCarrier fetches a carrier's invoices and stores new records.
func (h *EInvoiceHandler) SyncCarrier(c *gin.Context) {
	carrierID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	daysBack, _ := strconv.Atoi(c.Query("days"))

	syncLog, errSync := h.einvoice.SyncCarrier(c.Request.Context(), getUserID(c), carrierID, daysBack)
	if errSync != nil {
		renderError(c, errSync)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync": syncLog})
}

// ListInvoices returns the user's stored invoices.
func (h *EInvoiceHandler) ListInvoices(c *gin.Context) {
	onlyUnimported := c.Query("unimported") == "true"
	invoices, errList := h.einvoice.ListInvoices(c.Request.Context(), getUserID(c), onlyUnimported)
	if errList != nil {
		renderError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// ImportInvoice converts a stored invoice into an expense transaction.
func (h *EInvoiceHandler) ImportInvoice(c *gin.Context) {
	recordID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	transaction, errImport := h.einvoice.ImportInvoice(c.Request.Context(), getUserID(c), recordID)
	if errImport != nil {
		renderError(c, errImport)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}
