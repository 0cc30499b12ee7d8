package handler

import (
	"context"

	"github.com/blues/cleanfund/internal/logic"
	"github.com/gin-gonic/gin"
)

// DispatchService 任务派发业务
type DispatchService interface {
	Dispatch(ctx context.Context, taskId string) (*logic.DispatchResult, error)
}

type DispatchHandler struct {
	dispatchLogic DispatchService
}

func NewDispatchHandler(dispatchLogic DispatchService) *DispatchHandler {
	return &DispatchHandler{dispatchLogic: dispatchLogic}
}

// CreateTasks 把众筹对应的任务派发给 IRL Agents
func (h *DispatchHandler) CreateTasks(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	req, err := logic.DecodeDispatchRequest(body)
	if err != nil {
		ErrorResponse(c, err)
		return
	}

	res, err := h.dispatchLogic.Dispatch(c.Request.Context(), req.TaskId)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	SuccessResponse(c, res)
}
