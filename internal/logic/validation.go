package logic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	apperrors "github.com/blues/cleanfund/internal/errors"
	"github.com/blues/cleanfund/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("finite", validateFinite)
	_ = v.RegisterValidation("json_object", validateJSONObject)
	return v
}

func validateFinite(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	if field.Kind() != reflect.Float64 && field.Kind() != reflect.Float32 {
		return true
	}
	f := field.Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validateJSONObject(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// CreateCampaignRequest 创建众筹的请求体
type CreateCampaignRequest struct {
	TaskId           string          `json:"task_id" validate:"required"`
	UserId           *int64          `json:"user_id" validate:"required"`
	CrowdfundingData json.RawMessage `json:"crowdfunding_data" validate:"json_object"`
	TaskSpecifics    json.RawMessage `json:"task_specifics" validate:"json_object"`
	TotalCost        *float64        `json:"total_cost" validate:"required,finite"`
	Photos           []string        `json:"photos" validate:"required"`
	LocationGps      json.RawMessage `json:"location_gps" validate:"json_object"`
	CreatedAt        string          `json:"created_at" validate:"required"`
	TargetAmount     *float64        `json:"target_amount" validate:"required,finite"`
	ReceiverAddress  string          `json:"receiver_address" validate:"required,eth_addr"`
}

// ToModel 转换为数据库模型
func (r *CreateCampaignRequest) ToModel() *model.CampaignModel {
	photos := pq.StringArray{}
	if r.Photos != nil {
		photos = pq.StringArray(r.Photos)
	}
	return &model.CampaignModel{
		TaskId:           r.TaskId,
		UserId:           *r.UserId,
		CrowdfundingData: datatypes.JSON(r.CrowdfundingData),
		TaskSpecifics:    datatypes.JSON(r.TaskSpecifics),
		TotalCost:        *r.TotalCost,
		Photos:           photos,
		LocationGps:      datatypes.JSON(r.LocationGps),
		CreatedAt:        r.CreatedAt,
		TargetAmount:     *r.TargetAmount,
		ReceiverAddress:  r.ReceiverAddress,
	}
}

// DispatchRequest 派发请求体
type DispatchRequest struct {
	TaskId string `json:"task_id" validate:"required"`
}

// DecodeCreateCampaignRequest 解析并校验创建请求
func DecodeCreateCampaignRequest(body []byte) (*CreateCampaignRequest, error) {
	var req CreateCampaignRequest
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeDispatchRequest 解析并校验派发请求
func DecodeDispatchRequest(body []byte) (*DispatchRequest, error) {
	var req DispatchRequest
	if err := decodeAndValidate(body, &req); err != nil {
		return nil, err
	}
	req.TaskId = strings.TrimSpace(req.TaskId)
	if req.TaskId == "" {
		return nil, apperrors.ErrInvalidPayload.WithIssues([]apperrors.Issue{{
			Path: "task_id", Message: "task_id is required", Code: "too_small",
		}})
	}
	return &req, nil
}

func decodeAndValidate(body []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(body)
	var fields map[string]json.RawMessage
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &fields) != nil {
		return apperrors.ErrInvalidPayload.WithIssues([]apperrors.Issue{{
			Path: "", Message: "Body must be a JSON object", Code: "invalid_type",
		}})
	}

	// 逐字段解码，类型错误不会中断其余字段
	var issues []apperrors.Issue
	mistyped := map[string]bool{}
	v := reflect.ValueOf(out).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := jsonName(t.Field(i))
		raw, ok := fields[name]
		if name == "" || !ok {
			continue
		}
		if err := json.Unmarshal(raw, v.Field(i).Addr().Interface()); err != nil {
			mistyped[name] = true
			issues = append(issues, typeIssue(name, t.Field(i).Type, err))
		}
	}

	if err := validate.Struct(out); err != nil {
		for _, issue := range apperrors.ParseValidationErrors(err).Issues {
			if !mistyped[issue.Path] {
				issues = append(issues, issue)
			}
		}
	}
	if len(issues) > 0 {
		return apperrors.ErrInvalidPayload.WithIssues(issues)
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func typeIssue(name string, expected reflect.Type, err error) apperrors.Issue {
	issue := apperrors.Issue{Path: name, Message: fmt.Sprintf("%s has an invalid type", name), Code: "invalid_type"}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		for expected.Kind() == reflect.Ptr {
			expected = expected.Elem()
		}
		issue.Message = fmt.Sprintf("expected %s, received %s", expected.String(), typeErr.Value)
	}
	return issue
}
