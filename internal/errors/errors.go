package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// 错误码
const (
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeNotFound             = "NOT_FOUND"
	CodeDBUpsertFailed       = "DB_UPSERT_FAILED"
	CodeEnvMissing           = "ENV_MISSING"
	CodeDeploySubmitFailed   = "DEPLOYMENT_SUBMIT_FAILED"
	CodeDeployWaitFailed     = "DEPLOYMENT_WAIT_FAILED"
	CodeMissingAPIKey        = "MISSING_API_KEY"
	CodeIrlAgentsAPIError    = "IRL_AGENTS_API_ERROR"
	CodeDispatchInProgress   = "DISPATCH_IN_PROGRESS"
	CodeChainUnavailable     = "CHAIN_UNAVAILABLE"
	CodeInternal             = "INTERNAL_ERROR"
	CodeRequestCanceled      = "REQUEST_CANCELED"
)

var (
	ErrUnsupportedMediaType = NewAppError(CodeUnsupportedMediaType, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
	ErrInvalidPayload       = NewAppError(CodeInvalidPayload, "Invalid payload", http.StatusBadRequest)
	ErrNotFound             = NewAppError(CodeNotFound, "Crowdfunding not found", http.StatusNotFound)
	ErrDBUpsertFailed       = NewAppError(CodeDBUpsertFailed, "Database error", http.StatusInternalServerError)
	ErrEnvMissing           = NewAppError(CodeEnvMissing, "Required deployment configuration is missing", http.StatusInternalServerError)
	ErrDeploySubmitFailed   = NewAppError(CodeDeploySubmitFailed, "Failed to submit deployment transaction", http.StatusInternalServerError)
	ErrDeployWaitFailed     = NewAppError(CodeDeployWaitFailed, "Failed to confirm deployment transaction", http.StatusInternalServerError)
	ErrMissingAPIKey        = NewAppError(CodeMissingAPIKey, "IRL Agents API key is not configured", http.StatusInternalServerError)
	ErrIrlAgentsAPI         = NewAppError(CodeIrlAgentsAPIError, "Failed to create tasks in IRL Agents API", http.StatusInternalServerError)
	ErrDispatchInProgress   = NewAppError(CodeDispatchInProgress, "Dispatch already in progress for this campaign", http.StatusConflict)
	ErrChainUnavailable     = NewAppError(CodeChainUnavailable, "Chain node is not configured or unreachable", http.StatusServiceUnavailable)
	ErrInternal             = NewAppError(CodeInternal, "Unexpected error", http.StatusInternalServerError)
)

// Issue 单个字段校验问题
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// AppError 带错误码和 HTTP 状态的业务错误
type AppError struct {
	Code       string
	Message    string
	StatusCode int
	Details    interface{} // 字符串或列表，例如缺失的环境变量名
	Issues     []Issue
	Status     int // 下游 API 返回的 HTTP 状态
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，便于 errors.Is(err, ErrNotFound)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := e.clone()
	clone.Details = details
	return clone
}

func (e *AppError) WithIssues(issues []Issue) *AppError {
	clone := e.clone()
	clone.Issues = append([]Issue(nil), issues...)
	return clone
}

func (e *AppError) WithStatus(status int) *AppError {
	clone := e.clone()
	clone.Status = status
	return clone
}

func (e *AppError) WithError(err error) *AppError {
	clone := e.clone()
	clone.Err = err
	return clone
}

func (e *AppError) clone() *AppError {
	clone := *e
	if e.Issues != nil {
		clone.Issues = append([]Issue(nil), e.Issues...)
	}
	return &clone
}

func NewAppError(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError 将任意错误归一为 AppError，未知错误按 INTERNAL_ERROR 处理
func FromError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(CodeRequestCanceled, "Request canceled by client", 499).WithError(err)
	}
	return ErrInternal.WithDetails(err.Error()).WithError(err)
}

// Body 响应体中 error 字段的结构
type Body struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Issues  []Issue     `json:"issues,omitempty"`
	Status  int         `json:"status,omitempty"`
}

// ToBody 转换为对外暴露的结构，内部 Err 不会外泄
func (e *AppError) ToBody() Body {
	return Body{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Issues:  e.Issues,
		Status:  e.Status,
	}
}

// ParseValidationErrors 将 validator 的错误展开为逐字段的 issue 列表
func ParseValidationErrors(err error) *AppError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return ErrInvalidPayload.WithIssues([]Issue{{Path: "", Message: err.Error(), Code: "invalid_type"}})
	}

	issues := make([]Issue, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		issues = append(issues, Issue{
			Path:    issuePath(fieldErr.Namespace()),
			Message: translateValidationError(fieldErr),
			Code:    issueCode(fieldErr.Tag()),
		})
	}
	return ErrInvalidPayload.WithIssues(issues)
}

// issuePath 去掉顶层结构体名，保留 json 字段路径
func issuePath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func issueCode(tag string) string {
	switch tag {
	case "required":
		return "invalid_type"
	case "min", "gte", "gt":
		return "too_small"
	case "max", "lte", "lt":
		return "too_big"
	default:
		return "custom"
	}
}

func translateValidationError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "eth_addr":
		return fmt.Sprintf("%s must be a valid address", field)
	case "finite":
		return fmt.Sprintf("%s must be a finite number", field)
	case "json_object":
		return fmt.Sprintf("%s must be an object", field)
	case "dive":
		return fmt.Sprintf("%s contains an invalid entry", field)
	default:
		return fmt.Sprintf("validation '%s' failed for %s", fe.Tag(), field)
	}
}
