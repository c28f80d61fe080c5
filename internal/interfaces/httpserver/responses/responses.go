package responses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jan-server/services/session-api/internal/utils/platformerrors"
)

// RetryAfterSeconds is advertised on retryable (503) failures.
const RetryAfterSeconds = 1

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code          string `json:"code"` // UUID from PlatformError
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// NewErrorResponse builds the error body for err along with its HTTP status.
func NewErrorResponse(reqCtx *gin.Context, err error, message string) (int, ErrorResponse) {
	var domainErr *platformerrors.PlatformError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError, ErrorResponse{
			Error:         string(platformerrors.ErrorTypeInternal),
			Message:       message,
			ErrorInstance: err,
			RequestID:     reqCtx.GetString("request_id"),
		}
	}

	errorMessage := domainErr.Message
	if errorMessage == "" {
		errorMessage = message
	}
	requestID := domainErr.RequestID
	if requestID == "" {
		requestID = reqCtx.GetString("request_id")
	}
	if domainErr.Retryable() {
		reqCtx.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}
	return platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType()), ErrorResponse{
		Code:          domainErr.UUID,
		Error:         string(domainErr.GetErrorType()),
		Message:       errorMessage,
		ErrorInstance: domainErr,
		RequestID:     requestID,
	}
}

// HandleError handles domain errors and returns appropriate HTTP responses
func HandleError(reqCtx *gin.Context, err error, message string) {
	status, errResp := NewErrorResponse(reqCtx, err, message)
	_ = reqCtx.Error(err)
	reqCtx.AbortWithStatusJSON(status, errResp)
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	err := platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerRoute, errorType, message, nil, uuid)
	HandleError(reqCtx, err, message)
}
