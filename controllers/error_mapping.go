package controllers

import (
	"errors"

	"pso-monitor-service/internal/error/code"
	"pso-monitor-service/internal/error/response"
	"pso-monitor-service/services"

	"github.com/gin-gonic/gin"
)

// respondServiceError 把服务层错误翻译成统一响应
func respondServiceError(ctx *gin.Context, err error) {
	var validationErr *services.ValidationError
	var talkActiveErr *services.TalkSessionActiveError
	var externalErr *services.ExternalServiceError
	var supervisorErr *services.SupervisorError
	var egressErr *services.EgressAPIError

	switch {
	case errors.Is(err, services.ErrEmptyUserKey):
		response.Fail(ctx, code.ErrUserKeyEmpty, nil)
	case errors.Is(err, services.ErrUserNotFound):
		response.Fail(ctx, code.ErrUserNotFound, nil)
	case errors.Is(err, services.ErrRecordingNotFound):
		response.Fail(ctx, code.ErrRecordingNotFound, nil)
	case errors.Is(err, services.ErrTalkSessionNotFound):
		response.Fail(ctx, code.ErrTalkNotFound, nil)
	case errors.As(err, &validationErr):
		response.FailWithMessage(ctx, code.ErrValidation, validationErr.Error(), nil)
	case errors.As(err, &talkActiveErr):
		response.FailWithMessage(ctx, code.ErrTalkOccupied, talkActiveErr.Error(), gin.H{
			"pso_email":        talkActiveErr.PsoEmail,
			"supervisor_email": talkActiveErr.SupervisorEmail,
		})
	case errors.As(err, &egressErr):
		response.FailWithMessage(ctx, code.ErrRecordingEgress, egressErr.Error(), nil)
	case errors.As(err, &supervisorErr):
		response.FailWithMessage(ctx, code.ErrSupervisorChange, supervisorErr.Error(), nil)
	case errors.As(err, &externalErr):
		response.FailWithMessage(ctx, code.ErrExternalService, externalErr.Error(), nil)
	default:
		response.FailWithMessage(ctx, code.ErrUnknown, err.Error(), nil)
	}
}
