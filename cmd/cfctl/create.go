package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blues/cleanfund/internal/model"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// createOptions 创建表单的输入
type createOptions struct {
	TaskId              string
	GeneralDescription  string
	DetailedDescription string
	GeographicLocation  string
	WasteTypes          string // 逗号分隔
	RiskSummary         string
	EstimatedTimeHours  float64
	PeopleRequired      int64
	LaborCost           float64
	MaterialsCost       float64
	Breakdown           []float64
	Photos              []string
	Latitude            string // 为空时写 null
	Longitude           string
	ReceiverAddress     string
	TargetAmount        float64
}

// createPayload 创建接口的请求体
type createPayload struct {
	TaskId           string                 `json:"task_id"`
	UserId           int64                  `json:"user_id"`
	CrowdfundingData model.CrowdfundingData `json:"crowdfunding_data"`
	TaskSpecifics    model.TaskSpecifics    `json:"task_specifics"`
	TotalCost        float64                `json:"total_cost"`
	Photos           []string               `json:"photos"`
	LocationGps      model.LocationGPS      `json:"location_gps"`
	CreatedAt        string                 `json:"created_at"`
	ReceiverAddress  string                 `json:"receiver_address"`
	TargetAmount     float64                `json:"target_amount"`
}

// buildCreatePayload 按表单规则组装请求体：总成本为人工加材料，空的照片链接和废弃物类型被丢弃
func buildCreatePayload(opts createOptions, now time.Time) (*createPayload, error) {
	taskId := strings.TrimSpace(opts.TaskId)
	if taskId == "" {
		taskId = uuid.NewString()
	}

	wasteTypes := []string{}
	for _, s := range strings.Split(opts.WasteTypes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			wasteTypes = append(wasteTypes, s)
		}
	}

	photos := []string{}
	for _, p := range opts.Photos {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}

	breakdown := make([]model.PhotoBreakdownItem, 0, len(opts.Breakdown))
	for i := range opts.Breakdown {
		subtotal := opts.Breakdown[i]
		breakdown = append(breakdown, model.PhotoBreakdownItem{Subtotal: &subtotal})
	}

	lat, err := optionalFloat("latitude", opts.Latitude)
	if err != nil {
		return nil, err
	}
	lng, err := optionalFloat("longitude", opts.Longitude)
	if err != nil {
		return nil, err
	}

	return &createPayload{
		TaskId: taskId,
		UserId: 0,
		CrowdfundingData: model.CrowdfundingData{
			GeneralDescription:    opts.GeneralDescription,
			DetailedDescription:   opts.DetailedDescription,
			GeographicLocation:    opts.GeographicLocation,
			PredominantWasteTypes: wasteTypes,
			RiskSummary:           opts.RiskSummary,
		},
		TaskSpecifics: model.TaskSpecifics{
			MaterialsNeeded:    map[string]interface{}{},
			EstimatedTimeHours: opts.EstimatedTimeHours,
			PeopleRequired:     opts.PeopleRequired,
			LaborCost:          opts.LaborCost,
			MaterialsCost:      opts.MaterialsCost,
			PhotoBreakdown:     breakdown,
		},
		TotalCost:       opts.LaborCost + opts.MaterialsCost,
		Photos:          photos,
		LocationGps:     model.LocationGPS{Latitude: lat, Longitude: lng},
		CreatedAt:       now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		ReceiverAddress: strings.TrimSpace(opts.ReceiverAddress),
		TargetAmount:    opts.TargetAmount,
	}, nil
}

func optionalFloat(name, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return &f, nil
}

func runCreate(ctx context.Context, g *globalOptions, args []string) error {
	var opts createOptions
	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	g.bind(fs)
	fs.StringVar(&opts.TaskId, "task-id", "", "task id (default: random UUID)")
	fs.StringVar(&opts.GeneralDescription, "description", "", "general description")
	fs.StringVar(&opts.DetailedDescription, "detailed-description", "", "detailed description")
	fs.StringVar(&opts.GeographicLocation, "location", "", "geographic location")
	fs.StringVar(&opts.WasteTypes, "waste-types", "", "comma separated predominant waste types")
	fs.StringVar(&opts.RiskSummary, "risk-summary", "", "risk summary")
	fs.Float64Var(&opts.EstimatedTimeHours, "hours", 0, "estimated time in hours")
	fs.Int64Var(&opts.PeopleRequired, "people", 0, "people required")
	fs.Float64Var(&opts.LaborCost, "labor-cost", 0, "labor cost")
	fs.Float64Var(&opts.MaterialsCost, "materials-cost", 0, "materials cost")
	fs.Float64SliceVar(&opts.Breakdown, "breakdown", nil, "per-photo subtotals")
	fs.StringArrayVar(&opts.Photos, "photo", nil, "photo URL (repeatable)")
	fs.StringVar(&opts.Latitude, "lat", "", "latitude")
	fs.StringVar(&opts.Longitude, "lng", "", "longitude")
	fs.StringVar(&opts.ReceiverAddress, "receiver", "", "receiver address")
	fs.Float64Var(&opts.TargetAmount, "target", 0, "target amount")
	if err := g.parse(fs, args); err != nil {
		return err
	}

	payload, err := buildCreatePayload(opts, time.Now())
	if err != nil {
		return err
	}

	res, err := g.client().createCampaign(ctx, payload)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"task_id": payload.TaskId, "result": res})
}

func runShow(ctx context.Context, g *globalOptions, args []string) error {
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	g.bind(fs)
	taskId := fs.String("task-id", "", "task id")
	if err := g.parse(fs, args); err != nil {
		return err
	}
	if *taskId == "" {
		return fmt.Errorf("--task-id is required")
	}

	var out map[string]interface{}
	if err := g.client().do(ctx, http.MethodGet, "/api/crowdfunding/"+url.PathEscape(*taskId), nil, &out); err != nil {
		return err
	}
	return printJSON(out)
}
