package model

import (
	"encoding/json"
	"fmt"
)

// CrowdfundingData crowdfunding_data 列的结构
type CrowdfundingData struct {
	GeneralDescription    string   `json:"general_description"`
	DetailedDescription   string   `json:"detailed_description"`
	GeographicLocation    string   `json:"geographic_location"`
	PredominantWasteTypes []string `json:"predominant_waste_types"`
	RiskSummary           string   `json:"risk_summary"`
}

// PhotoBreakdownItem 按照片拆分的费用条目
type PhotoBreakdownItem struct {
	Subtotal    *float64 `json:"subtotal"`
	Description string   `json:"description,omitempty"`
}

// TaskSpecifics task_specifics 列的结构
type TaskSpecifics struct {
	MaterialsNeeded    map[string]interface{} `json:"materials_needed"`
	EstimatedTimeHours float64                `json:"estimated_time_hours"`
	PeopleRequired     int64                  `json:"people_required"`
	LaborCost          float64                `json:"labor_cost"`
	MaterialsCost      float64                `json:"materials_cost"`
	PhotoBreakdown     []PhotoBreakdownItem   `json:"photo_breakdown"`
}

// LocationGPS location_gps 列的结构，经纬度可为空
type LocationGPS struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   *string  `json:"address"`
}

// DispatchFields 派发任务需要的字段，缺失或类型不符时取零值
type DispatchFields struct {
	GeneralDescription string
	Latitude           float64
	Longitude          float64
	EstimatedTimeHours float64
	Breakdown          []float64 // 每个条目的 subtotal
}

// DispatchFields 宽松地从 JSON 列中提取派发字段
func (m *CampaignModel) DispatchFields() (DispatchFields, error) {
	var out DispatchFields

	data, err := decodeObject(m.CrowdfundingData)
	if err != nil {
		return out, fmt.Errorf("decode crowdfunding_data: %w", err)
	}
	specifics, err := decodeObject(m.TaskSpecifics)
	if err != nil {
		return out, fmt.Errorf("decode task_specifics: %w", err)
	}
	location, err := decodeObject(m.LocationGps)
	if err != nil {
		return out, fmt.Errorf("decode location_gps: %w", err)
	}

	if s, ok := data["general_description"].(string); ok {
		out.GeneralDescription = s
	}
	out.Latitude = numberOrZero(location["latitude"])
	out.Longitude = numberOrZero(location["longitude"])
	out.EstimatedTimeHours = numberOrZero(specifics["estimated_time_hours"])

	if items, ok := specifics["photo_breakdown"].([]interface{}); ok {
		out.Breakdown = make([]float64, 0, len(items))
		for _, item := range items {
			var subtotal float64
			if obj, ok := item.(map[string]interface{}); ok {
				subtotal = numberOrZero(obj["subtotal"])
			}
			out.Breakdown = append(out.Breakdown, subtotal)
		}
	}
	return out, nil
}

func decodeObject(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]interface{}{}, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, nil
	}
	return obj, nil
}

func numberOrZero(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}
