package console

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barkdesk/barkdesk/pkg/pos"
)

type posHandler struct {
	sessions *pos.Manager
	logger   *zap.Logger
}

type startSessionRequest struct {
	AmountSat   int64  `json:"amountSat"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
}

func (handler *posHandler) handleCreateSession(ctx *gin.Context) {
	var request startSessionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	mode, err := pos.ParseMode(request.Mode)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_mode", "mode must be lightning or ark"))
		return
	}
	sessionID, session, err := handler.sessions.Create()
	if err != nil {
		handler.logger.Error("session creation failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "session creation failed"))
		return
	}
	if err := session.StartTransaction(ctx.Request.Context(), request.AmountSat, mode, request.Description); err != nil {
		handler.sessions.Remove(sessionID)
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_transaction", err.Error()))
		return
	}
	snapshot := session.Snapshot()
	ctx.JSON(http.StatusCreated, gin.H{
		"sessionId": sessionID,
		"session":   snapshot,
	})
}

func (handler *posHandler) handleGetSession(ctx *gin.Context) {
	session, err := handler.sessions.Get(ctx.Param("id"))
	if err != nil {
		handler.respondSessionError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"session": session.Snapshot()})
}

func (handler *posHandler) handleResetSession(ctx *gin.Context) {
	session, err := handler.sessions.Get(ctx.Param("id"))
	if err != nil {
		handler.respondSessionError(ctx, err)
		return
	}
	session.Reset()
	ctx.JSON(http.StatusOK, gin.H{"session": session.Snapshot()})
}

func (handler *posHandler) handleDeleteSession(ctx *gin.Context) {
	handler.sessions.Remove(ctx.Param("id"))
	ctx.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (handler *posHandler) respondSessionError(ctx *gin.Context, err error) {
	if errors.Is(err, pos.ErrSessionNotFound) {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "session not found"))
		return
	}
	handler.logger.Error("session lookup failed", zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "session lookup failed"))
}
