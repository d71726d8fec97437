package console

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barkdesk/barkdesk/pkg/charges"
	"github.com/barkdesk/barkdesk/pkg/pos"
	"github.com/barkdesk/barkdesk/pkg/wallet"
)

// Deps carries the wired services the router exposes.
type Deps struct {
	Wallet  *wallet.Service
	Charges *charges.Service
	POS     *pos.Manager
	Logger  *zap.Logger
}

// Run boots the console HTTP server and blocks until the context is
// cancelled or the listener fails.
func Run(ctx context.Context, cfg Config, deps Deps) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	router := NewRouter(cfg, deps)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("console listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			deps.Logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter assembles the gin engine with every route group.
func NewRouter(cfg Config, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin := &adminHandler{wallet: deps.Wallet, logger: deps.Logger}
	merchant := &chargesHandler{charges: deps.Charges, logger: deps.Logger}
	terminal := &posHandler{sessions: deps.POS, logger: deps.Logger}

	v1 := router.Group("/v1")
	v1.POST("/charges", merchant.requireAPIKey, merchant.handleCreateCharge)
	v1.GET("/charges/:id", merchant.requireAPIKey, merchant.handleGetCharge)
	v1.POST("/cron/webhooks", merchant.handleReconcile)
	v1.GET("/cron/webhooks", merchant.handleReconcile)

	api := router.Group("/api")
	api.GET("/balances", admin.handleBalances)
	api.GET("/node", admin.handleNode)
	api.GET("/activity", admin.handleActivity)
	api.GET("/coins", admin.handleCoins)
	api.GET("/movements", admin.handleMovements)
	api.POST("/send/ark", admin.handleSendArk)
	api.POST("/send/onchain", admin.handleSendOnchain)
	api.POST("/send/lightning", admin.handleSendLightning)
	api.POST("/addresses/onchain", admin.handleOnchainAddress)
	api.POST("/addresses/ark", admin.handleArkAddress)
	api.POST("/invoices", admin.handleCreateInvoice)
	api.POST("/refresh", admin.handleRefresh)
	api.POST("/exits/start", admin.handleStartExits)
	api.POST("/exits/claim", admin.handleClaimExits)
	api.POST("/board", admin.handleBoard)
	api.POST("/offboard", admin.handleOffboard)
	api.POST("/sync", admin.handleSync)

	api.POST("/pos/sessions", terminal.handleCreateSession)
	api.GET("/pos/sessions/:id", terminal.handleGetSession)
	api.POST("/pos/sessions/:id/reset", terminal.handleResetSession)
	api.DELETE("/pos/sessions/:id", terminal.handleDeleteSession)

	return router
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
