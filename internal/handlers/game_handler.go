package handlers

import (
	"net/http"

	"github.com/ArowuTest/calmcoins-backend/internal/apperrors"
	"github.com/ArowuTest/calmcoins-backend/internal/middleware"
	"github.com/ArowuTest/calmcoins-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// GameHandler handles game completion and replay requests
type GameHandler struct {
	completionService services.CompletionService
	replayService     services.ReplayService
}

// NewGameHandler creates a new GameHandler
func NewGameHandler(completionService services.CompletionService, replayService services.ReplayService) *GameHandler {
	return &GameHandler{
		completionService: completionService,
		replayService:     replayService,
	}
}

// CompleteGameRequest is the body of POST /game/complete
type CompleteGameRequest struct {
	GameID      string `json:"gameId"`
	GameType    string `json:"gameType"`
	GameIndex   int    `json:"gameIndex"`
	Score       *int   `json:"score"`
	TotalLevels *int   `json:"totalLevels"`
	IsReplay    bool   `json:"isReplay"`
	Coins       *int   `json:"coins"`
}

// CompleteGame handles POST /game/complete
func (h *GameHandler) CompleteGame(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req CompleteGameRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		middleware.RespondError(c, apperrors.NewValidation("body", "invalid JSON body", nil, err.Error()))
		return
	}
	if req.Score == nil {
		middleware.RespondError(c, apperrors.NewValidation("score", "score is required", nil, nil))
		return
	}
	if req.TotalLevels == nil {
		middleware.RespondError(c, apperrors.NewValidation("totalLevels", "totalLevels is required", nil, nil))
		return
	}

	result, err := h.completionService.CompleteGame(c.Request.Context(), services.CompleteGameInput{
		UserID:       p.UserID,
		Role:         p.Role,
		GameID:       req.GameID,
		GameType:     req.GameType,
		GameIndex:    req.GameIndex,
		Score:        *req.Score,
		TotalLevels:  *req.TotalLevels,
		CoinOverride: req.Coins,
		IsReplay:     req.IsReplay,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProgress handles GET /game/progress/:gameId
func (h *GameHandler) GetProgress(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	progress, err := h.completionService.Progress(c.Request.Context(), p.UserID, c.Param("gameId"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// UnlockReplay handles POST /game/unlock-replay/:gameId
func (h *GameHandler) UnlockReplay(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	gameIndex, err := queryInt(c, "gameIndex", 0)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	result, err := h.replayService.UnlockReplay(c.Request.Context(), services.UnlockReplayInput{
		UserID:    p.UserID,
		GameID:    c.Param("gameId"),
		GameIndex: gameIndex,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
