package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// DispatchStatus 任务派发状态
type DispatchStatus string

const (
	DispatchStatusNone        DispatchStatus = ""            // 未派发
	DispatchStatusDispatching DispatchStatus = "dispatching" // 派发中（已抢占）
	DispatchStatusDispatched  DispatchStatus = "dispatched"  // 已派发
	DispatchStatusAbandoned   DispatchStatus = "abandoned"   // 自动派发已放弃，只能显式重试
)

// DispatchRetry 派发失败后写回的重试安排
type DispatchRetry struct {
	Status   DispatchStatus // DispatchStatusNone 或 DispatchStatusAbandoned
	Attempts int
	NextAt   *time.Time // 放弃时为 nil
}

// CampaignModel 众筹活动记录，以 task_id 唯一
type CampaignModel struct {
	Id        int64     `json:"-" gorm:"primaryKey"`
	UpdatedAt time.Time `json:"updated_at"`

	TaskId           string         `json:"task_id" gorm:"uniqueIndex;not null"`
	UserId           int64          `json:"user_id"`
	CrowdfundingData datatypes.JSON `json:"crowdfunding_data" gorm:"type:jsonb"`
	TaskSpecifics    datatypes.JSON `json:"task_specifics" gorm:"type:jsonb"`
	TotalCost        float64        `json:"total_cost"`
	Photos           pq.StringArray `json:"photos" gorm:"type:text[];default:'{}'"`
	LocationGps      datatypes.JSON `json:"location_gps" gorm:"type:jsonb"`
	CreatedAt        string         `json:"created_at" gorm:"autoCreateTime:false;not null"` // 由提交方给出
	TargetAmount     float64        `json:"target_amount"`
	ReceiverAddress  string         `json:"receiver_address" gorm:"not null"`

	// 区块链信息，部署成功后写入且不再清空
	DeployTxHash    *string `json:"deploy_tx_hash"`
	ContractAddress *string `json:"contract_address" gorm:"index"`

	// 派发标记
	DispatchStatus DispatchStatus `json:"dispatch_status" gorm:"default:''"`
	DispatchedAt   *time.Time     `json:"dispatched_at"`

	DispatchAttempts int        `json:"dispatch_attempts" gorm:"default:0"`
	NextDispatchAt   *time.Time `json:"next_dispatch_at"`
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "crowdfunding_submissions"
}

// IsDeployed 是否已解析出合约地址
func (m *CampaignModel) IsDeployed() bool {
	return m.ContractAddress != nil && *m.ContractAddress != ""
}

// IsDispatched 是否已完成派发
func (m *CampaignModel) IsDispatched() bool {
	return m.DispatchStatus == DispatchStatusDispatched
}

// UpsertColumns 重复提交时需要覆盖的列，部署和派发相关列不在其中
var UpsertColumns = []string{
	"user_id",
	"crowdfunding_data",
	"task_specifics",
	"total_cost",
	"photos",
	"location_gps",
	"created_at",
	"target_amount",
	"receiver_address",
	"updated_at",
}
