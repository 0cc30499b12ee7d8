package model

import "time"

// DispatchRecordStatus 派发记录状态
type DispatchRecordStatus string

const (
	DispatchRecordSuccess DispatchRecordStatus = "success"
	DispatchRecordFailed  DispatchRecordStatus = "failed"
)

// DispatchRecordModel 每次调用外部任务 API 的审计记录
type DispatchRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	TaskId     string               `json:"task_id" gorm:"index;not null"`
	Status     DispatchRecordStatus `json:"status" gorm:"not null"`
	TaskCount  int                  `json:"task_count"`
	HttpStatus int                  `json:"http_status"`
	Response   string               `json:"response" gorm:"type:text"`
	Error      string               `json:"error" gorm:"type:text"`
}

// TableName 自定义表名
func (DispatchRecordModel) TableName() string {
	return "dispatch_record"
}
