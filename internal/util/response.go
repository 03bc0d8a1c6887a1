package util

import (
	"course_engine_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind        ErrorKind `json:"kind"`
	Code        string    `json:"code"`
	Recoverable bool      `json:"recoverable"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func requestLogger(c *gin.Context) *zap.Logger {
	if c.Request == nil {
		return logger.Log
	}
	return logger.Ctx(c.Request.Context())
}

func LogInternalError(c *gin.Context, err error) {
	requestLogger(c).Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

func statusForKind(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindCollaborator:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError writes an engine error with the status matching its kind.
func ServiceError(c *gin.Context, err error) {
	var ee *EngineError
	if !errors.As(err, &ee) {
		LogInternalError(c, err)
		return
	}
	status := statusForKind(ee.Kind)
	if ee.Kind == KindCollaborator {
		requestLogger(c).Error("collaborator failure",
			zap.String("path", c.FullPath()),
			zap.String("code", ee.Code),
			zap.Error(err))
	}
	msg := ee.Message
	if msg == "" {
		msg = ee.Code
	}
	c.JSON(status, Response{
		Code:    status,
		Message: msg,
		Error: &ErrorBody{
			Kind:        ee.Kind,
			Code:        ee.Code,
			Recoverable: ee.Recoverable,
		},
	})
}
