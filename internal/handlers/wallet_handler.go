package handlers

import (
	"net/http"

	"github.com/ArowuTest/calmcoins-backend/internal/middleware"
	"github.com/ArowuTest/calmcoins-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet requests
type WalletHandler struct {
	ledgerService services.LedgerService
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(ledgerService services.LedgerService) *WalletHandler {
	return &WalletHandler{
		ledgerService: ledgerService,
	}
}

// GetWallet handles GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	wallet, err := h.ledgerService.Balance(c.Request.Context(), p.UserID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":     wallet.Balance,
		"coinType":    wallet.CoinType,
		"lastUpdated": wallet.LastUpdated,
	})
}

// GetTransactions handles GET /wallet/transactions
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	transactions, err := h.ledgerService.History(c.Request.Context(), p.UserID, limit)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
