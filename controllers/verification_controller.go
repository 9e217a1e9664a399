package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/smartreader/services"
	"github.com/cppla/smartreader/utils"
)

// CaptchaSolver generates and checks captchas.
type CaptchaSolver interface {
	Generate() (string, string, error)
	Verify(id, answer string) bool
}

// VerificationController handles one-time email code endpoints.
type VerificationController struct {
	svc            *services.VerificationService
	captcha        CaptchaSolver
	captchaEnabled bool
}

// NewVerificationController creates a VerificationController. Passing a nil captcha disables the gate.
func NewVerificationController(svc *services.VerificationService, captcha CaptchaSolver, captchaEnabled bool) *VerificationController {
	return &VerificationController{svc: svc, captcha: captcha, captchaEnabled: captchaEnabled && captcha != nil}
}

// Captcha returns a fresh captcha image.
func (c *VerificationController) Captcha(ctx *gin.Context) {
	if c.captcha == nil {
		utils.Error(ctx, http.StatusNotFound, 40402, "captcha disabled")
		return
	}
	id, b64, err := c.captcha.Generate()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"id": id, "image": b64})
}

// IssueCode sends a verification code to the requested email.
func (c *VerificationController) IssueCode(ctx *gin.Context) {
	var req services.IssueCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	// When enabled, captcha must be solved BEFORE a code is issued
	if c.captchaEnabled && !c.captcha.Verify(strings.TrimSpace(req.CaptchaID), strings.TrimSpace(req.CaptchaAnswer)) {
		utils.Error(ctx, http.StatusBadRequest, 40042, "captcha is wrong or expired")
		return
	}

	res, err := c.svc.Issue(ctx.Request.Context(), req.Email)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// Cooldown reports how many seconds remain before another code may be requested.
func (c *VerificationController) Cooldown(ctx *gin.Context) {
	remaining, err := c.svc.Cooldown(ctx.Request.Context(), ctx.Query("email"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	seconds := int((remaining + time.Second - 1) / time.Second)
	utils.Success(ctx, gin.H{"remaining_seconds": seconds, "can_send": seconds == 0})
}

// CheckEmail reports whether the address already belongs to an account.
func (c *VerificationController) CheckEmail(ctx *gin.Context) {
	status, err := c.svc.CheckEmail(ctx.Request.Context(), ctx.Query("email"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, status)
}

// Verify checks a submitted code.
func (c *VerificationController) Verify(ctx *gin.Context) {
	var req services.VerifyCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	outcome, err := c.svc.Verify(ctx.Request.Context(), req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if err := services.OutcomeError(outcome); err != nil {
		respondErrorWith(ctx, err, services.VerifyResult{Outcome: outcome})
		return
	}
	utils.Success(ctx, services.VerifyResult{Outcome: outcome})
}
