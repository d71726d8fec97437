package console

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barkdesk/barkdesk/pkg/wallet"
)

type adminHandler struct {
	wallet *wallet.Service
	logger *zap.Logger
}

func (handler *adminHandler) handleBalances(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.wallet.Balances(ctx.Request.Context()))
}

func (handler *adminHandler) handleNode(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.wallet.NodeInfo(ctx.Request.Context()))
}

func (handler *adminHandler) handleActivity(ctx *gin.Context) {
	feed, err := handler.wallet.ActivityFeed(ctx.Request.Context())
	if err != nil {
		handler.logger.Error("activity feed failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("daemon_error", "activity feed unavailable"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"items": feed})
}

func (handler *adminHandler) handleCoins(ctx *gin.Context) {
	requestCtx := ctx.Request.Context()
	ctx.JSON(http.StatusOK, gin.H{
		"vtxos":        handler.wallet.Vtxos(requestCtx),
		"transactions": handler.wallet.OnchainTransactions(requestCtx),
	})
}

func (handler *adminHandler) handleMovements(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"movements": handler.wallet.ArkMovements(ctx.Request.Context()),
	})
}

type sendRequest struct {
	Destination string `json:"destination"`
	AmountSat   int64  `json:"amountSat"`
	Comment     string `json:"comment"`
}

func (handler *adminHandler) handleSendArk(ctx *gin.Context) {
	var request sendRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	ctx.JSON(http.StatusOK, handler.wallet.SendArk(ctx.Request.Context(), request.Destination, request.AmountSat, request.Comment))
}

func (handler *adminHandler) handleSendOnchain(ctx *gin.Context) {
	var request sendRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	ctx.JSON(http.StatusOK, handler.wallet.SendOnchain(ctx.Request.Context(), request.Destination, request.AmountSat))
}

func (handler *adminHandler) handleSendLightning(ctx *gin.Context) {
	var request sendRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	ctx.JSON(http.StatusOK, handler.wallet.PayLightning(ctx.Request.Context(), request.Destination, request.AmountSat))
}

func (handler *adminHandler) handleOnchainAddress(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.wallet.NewOnchainAddress(ctx.Request.Context()))
}

func (handler *adminHandler) handleArkAddress(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.wallet.NewArkAddress(ctx.Request.Context()))
}

type invoiceRequest struct {
	AmountSat   int64  `json:"amountSat"`
	Description string `json:"description"`
}

func (handler *adminHandler) handleCreateInvoice(ctx *gin.Context) {
	var request invoiceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	ctx.JSON(http.StatusOK, handler.wallet.CreateInvoice(ctx.Request.Context(), request.AmountSat, request.Description))
}

type vtxoSelectionRequest struct {
	VtxoIDs     []string `json:"vtxoIds"`
	Destination string   `json:"destination"`
}

func (handler *adminHandler) handleRefresh(ctx *gin.Context) {
	var request vtxoSelectionRequest
	_ = ctx.ShouldBindJSON(&request)
	ctx.JSON(http.StatusOK, handler.wallet.RefreshVtxos(ctx.Request.Context(), request.VtxoIDs))
}

func (handler *adminHandler) handleStartExits(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.wallet.StartExitAll(ctx.Request.Context()))
}

func (handler *adminHandler) handleClaimExits(ctx *gin.Context) {
	var request vtxoSelectionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	ctx.JSON(http.StatusOK, handler.wallet.ClaimExits(ctx.Request.Context(), request.VtxoIDs, request.Destination))
}

type boardRequest struct {
	AmountSat int64 `json:"amountSat"`
}

func (handler *adminHandler) handleBoard(ctx *gin.Context) {
	var request boardRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	ctx.JSON(http.StatusOK, handler.wallet.Board(ctx.Request.Context(), request.AmountSat))
}

func (handler *adminHandler) handleOffboard(ctx *gin.Context) {
	var request vtxoSelectionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	ctx.JSON(http.StatusOK, handler.wallet.Offboard(ctx.Request.Context(), request.VtxoIDs))
}

func (handler *adminHandler) handleSync(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, handler.wallet.Sync(ctx.Request.Context()))
}
