package handler

import (
	"context"
	"strconv"

	"github.com/blues/cleanfund/internal/logic"
	"github.com/gin-gonic/gin"
)

// CampaignService 众筹活动业务
type CampaignService interface {
	Create(ctx context.Context, req *logic.CreateCampaignRequest) (*logic.CreateResult, error)
	List(ctx context.Context, limit, offset int) (*logic.CampaignPage, error)
	Detail(ctx context.Context, taskId string) (*logic.CampaignDetail, error)
	Funding(ctx context.Context, taskId, account, amount string) (*logic.FundingView, error)
}

type CampaignHandler struct {
	campaignLogic CampaignService
}

func NewCampaignHandler(campaignLogic CampaignService) *CampaignHandler {
	return &CampaignHandler{campaignLogic: campaignLogic}
}

// CreateCampaign 写入众筹记录并部署合约
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	if !requireJSON(c) {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	req, err := logic.DecodeCreateCampaignRequest(body)
	if err != nil {
		ErrorResponse(c, err)
		return
	}

	res, err := h.campaignLogic.Create(c.Request.Context(), req)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	SuccessResponse(c, ToCreateCampaignResponse(res))
}

// GetCampaigns 众筹列表，按创建时间倒序
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.campaignLogic.List(c.Request.Context(), limit, offset)
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	SuccessResponse(c, page)
}

// GetCampaign 众筹详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	detail, err := h.campaignLogic.Detail(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	SuccessResponse(c, detail)
}

// GetFunding 链上资金快照，可选 account 和 amount
func (h *CampaignHandler) GetFunding(c *gin.Context) {
	view, err := h.campaignLogic.Funding(c.Request.Context(), c.Param("task_id"), c.Query("account"), c.Query("amount"))
	if err != nil {
		ErrorResponse(c, err)
		return
	}
	SuccessResponse(c, view)
}
