package handler

import (
	"net/http"
	"strings"

	apperrors "github.com/blues/cleanfund/internal/errors"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// ErrorResponse 错误响应，统一为 {"error": {...}}
func ErrorResponse(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		logger.Debug("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(appErr.StatusCode, ErrorBody{Error: appErr.ToBody()})
}

// requireJSON 请求体必须是 application/json，否则返回 415
func requireJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		return true
	}
	ErrorResponse(c, apperrors.ErrUnsupportedMediaType)
	return false
}

// readBody 读取原始请求体
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		ErrorResponse(c, apperrors.ErrInvalidPayload.WithDetails(err.Error()).WithError(err))
		return nil, false
	}
	return body, true
}
