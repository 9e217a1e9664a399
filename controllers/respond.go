package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/smartreader/middleware"
	"github.com/cppla/smartreader/services"
	"github.com/cppla/smartreader/utils"
)

type errorMapping struct {
	kind   error
	status int
	code   int
}

var errorMappings = []errorMapping{
	{services.ErrValidation, http.StatusBadRequest, 40001},
	{services.ErrNoMatch, http.StatusBadRequest, 40010},
	{services.ErrNotFound, http.StatusNotFound, 40401},
	{services.ErrAlreadyRegistered, http.StatusConflict, 40901},
	{services.ErrExpired, http.StatusGone, 41001},
	{services.ErrRateLimited, http.StatusTooManyRequests, 42902},
	{services.ErrDelivery, http.StatusBadGateway, 50201},
	{services.ErrStorage, http.StatusServiceUnavailable, 50301},
}

// respondError maps a service error onto the uniform error envelope.
func respondError(ctx *gin.Context, err error) {
	respondErrorWith(ctx, err, nil)
}

// respondErrorWith is respondError with a payload kept in the envelope's data.
func respondErrorWith(ctx *gin.Context, err error, data interface{}) {
	var svcErr *services.Error
	message := "internal server error"
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		if m.kind == services.ErrRateLimited {
			if wait := services.RetryAfter(err); wait > 0 {
				ctx.Header("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
			}
		}
		if m.status >= http.StatusInternalServerError {
			logFailure(ctx, err)
		}
		utils.Respond(ctx, m.status, m.code, message, data)
		return
	}
	logFailure(ctx, err)
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
}

func logFailure(ctx *gin.Context, err error) {
	utils.Logger.Error("request failed",
		zap.String("path", ctx.FullPath()),
		zap.String("request_id", ctx.GetString(middleware.ContextRequestIDKey)),
		zap.Error(err),
	)
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}
