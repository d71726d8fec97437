package console

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barkdesk/barkdesk/pkg/charges"
)

const bearerPrefix = "Bearer "

type chargesHandler struct {
	charges *charges.Service
	logger  *zap.Logger
}

// requireAPIKey authenticates the merchant via a bearer API key
// checked against the active-key table.
func (handler *chargesHandler) requireAPIKey(ctx *gin.Context) {
	header := ctx.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
		return
	}
	key := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if key == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
		return
	}
	active, err := handler.charges.Authenticate(ctx.Request.Context(), key)
	if err != nil {
		handler.logger.Error("api key lookup failed", zap.Error(err))
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse("internal", "key lookup failed"))
		return
	}
	if !active {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid api key"))
		return
	}
	ctx.Next()
}

type createChargeRequest struct {
	AmountSat   int64           `json:"amountSat"`
	Description string          `json:"description"`
	WebhookURL  string          `json:"webhookUrl"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (handler *chargesHandler) handleCreateCharge(ctx *gin.Context) {
	var request createChargeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	charge, err := handler.charges.Create(ctx.Request.Context(), charges.CreateInput{
		AmountSat:   request.AmountSat,
		Description: request.Description,
		WebhookURL:  request.WebhookURL,
		Metadata:    string(request.Metadata),
	})
	if err != nil {
		switch {
		case errors.Is(err, charges.ErrInvalidAmountSat),
			errors.Is(err, charges.ErrInvalidWebhookURL),
			errors.Is(err, charges.ErrInvalidMetadataJSON):
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_charge", err.Error()))
		case errors.Is(err, charges.ErrUpstreamInvoice):
			ctx.JSON(http.StatusBadGateway, errorResponse("daemon_error", "invoice creation failed"))
		case errors.Is(err, charges.ErrDuplicatePaymentHash):
			ctx.JSON(http.StatusConflict, errorResponse("duplicate", "payment hash already registered"))
		default:
			handler.logger.Error("charge creation failed", zap.Error(err))
			ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "charge creation failed"))
		}
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"id":          charge.ID,
		"invoice":     charge.Invoice,
		"paymentHash": charge.PaymentHash.String(),
		"status":      charge.Status.String(),
	})
}

func (handler *chargesHandler) handleGetCharge(ctx *gin.Context) {
	charge, err := handler.charges.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, charges.ErrChargeNotFound) {
			ctx.JSON(http.StatusNotFound, errorResponse("not_found", "charge not found"))
			return
		}
		handler.logger.Error("charge lookup failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "charge lookup failed"))
		return
	}
	ctx.JSON(http.StatusOK, chargeView(charge))
}

func (handler *chargesHandler) handleReconcile(ctx *gin.Context) {
	stats, err := handler.charges.ProcessWebhooks(ctx.Request.Context())
	if err != nil {
		handler.logger.Error("reconcile pass failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile pass failed"})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func chargeView(charge charges.Charge) gin.H {
	metadata := json.RawMessage("null")
	if stored := charge.Metadata.String(); stored != "" && json.Valid([]byte(stored)) {
		metadata = json.RawMessage(stored)
	}
	view := gin.H{
		"id":            charge.ID,
		"amountSat":     charge.AmountSat.Int64(),
		"description":   charge.Description,
		"status":        charge.Status.String(),
		"webhookStatus": charge.WebhookStatus.String(),
		"paymentHash":   charge.PaymentHash.String(),
		"invoice":       charge.Invoice,
		"metadata":      metadata,
		"createdAt":     charge.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":     charge.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if charge.WebhookURL.IsSet() {
		view["webhookUrl"] = charge.WebhookURL.String()
	}
	return view
}
