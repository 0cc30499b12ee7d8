package handler

import (
	apperrors "github.com/blues/cleanfund/internal/errors"
	"github.com/blues/cleanfund/internal/logic"
)

// ErrorBody 错误响应结构
type ErrorBody struct {
	Error apperrors.Body `json:"error"`
}

// CreateCampaignResponse 创建众筹响应
type CreateCampaignResponse struct {
	OK              bool    `json:"ok"`
	TxHash          string  `json:"txHash"`
	ContractAddress *string `json:"contractAddress"`
}

// ToCreateCampaignResponse 将 logic 层结果转换为响应模型
func ToCreateCampaignResponse(res *logic.CreateResult) CreateCampaignResponse {
	return CreateCampaignResponse{
		OK:              true,
		TxHash:          res.TxHash,
		ContractAddress: res.ContractAddress,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service"`
	Chain   map[string]interface{} `json:"chain,omitempty"`
}
