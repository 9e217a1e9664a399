package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/smartreader/services"
	"github.com/cppla/smartreader/utils"
)

// EngagementController exposes progress, streak and achievement endpoints for the signed-in reader.
type EngagementController struct {
	svc *services.EngagementService
}

// NewEngagementController creates an EngagementController.
func NewEngagementController(svc *services.EngagementService) *EngagementController {
	return &EngagementController{svc: svc}
}

// SubmitProgress records a reading progress ping.
func (c *EngagementController) SubmitProgress(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	var req services.SubmitProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid request payload")
		return
	}
	req.UserID = userID

	resp, err := c.svc.SubmitProgress(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, resp)
}

// GetProgress returns the reader's progress on one article.
func (c *EngagementController) GetProgress(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	itemID, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("item_id")), 10, 64)
	if err != nil || itemID == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid item id")
		return
	}

	rec, err := c.svc.GetProgress(ctx.Request.Context(), userID, uint(itemID))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, rec)
}

// GetStreak returns the reader's streak and badge.
func (c *EngagementController) GetStreak(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	view, err := c.svc.GetStreak(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}

// ListAchievements returns unlocked ids, or the full overview with ?detail=true.
func (c *EngagementController) ListAchievements(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	if detail, _ := strconv.ParseBool(ctx.Query("detail")); detail {
		overview, err := c.svc.AchievementOverview(ctx.Request.Context(), userID)
		if err != nil {
			respondError(ctx, err)
			return
		}
		utils.Success(ctx, overview)
		return
	}
	ids, err := c.svc.ListUnlockedAchievements(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"achievements": ids})
}
