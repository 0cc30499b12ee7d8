package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildCreatePayload_FormRules(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := buildCreatePayload(createOptions{
		GeneralDescription: "Clean the beach",
		WasteTypes:         " plastic, ,glass ,",
		LaborCost:          30,
		MaterialsCost:      12.5,
		Photos:             []string{"https://img/1.png", "  ", ""},
		Latitude:           "1.25",
		ReceiverAddress:    " 0x1111111111111111111111111111111111111111 ",
		TargetAmount:       40,
	}, now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, err := uuid.Parse(p.TaskId); err != nil {
		t.Errorf("task_id %q is not a UUID", p.TaskId)
	}
	if p.UserId != 0 || p.TotalCost != 42.5 {
		t.Errorf("user_id/total_cost = %d/%v", p.UserId, p.TotalCost)
	}
	if got := p.CrowdfundingData.PredominantWasteTypes; len(got) != 2 || got[0] != "plastic" || got[1] != "glass" {
		t.Errorf("waste types = %v", got)
	}
	if len(p.Photos) != 1 {
		t.Errorf("photos = %v", p.Photos)
	}
	if p.LocationGps.Latitude == nil || *p.LocationGps.Latitude != 1.25 || p.LocationGps.Longitude != nil {
		t.Errorf("location = %+v", p.LocationGps)
	}
	if p.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Errorf("created_at = %s", p.CreatedAt)
	}
	if p.ReceiverAddress != "0x1111111111111111111111111111111111111111" {
		t.Errorf("receiver = %q", p.ReceiverAddress)
	}

	raw, _ := json.Marshal(p)
	for _, want := range []string{`"materials_needed":{}`, `"photo_breakdown":[]`, `"longitude":null`, `"address":null`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("payload %s missing %s", raw, want)
		}
	}
}

func TestBuildCreatePayload_KeepsTaskIdAndBreakdown(t *testing.T) {
	p, err := buildCreatePayload(createOptions{TaskId: "t1", Breakdown: []float64{10, 15}}, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.TaskId != "t1" || len(p.TaskSpecifics.PhotoBreakdown) != 2 || *p.TaskSpecifics.PhotoBreakdown[1].Subtotal != 15 {
		t.Errorf("unexpected payload %+v", p)
	}

	if _, err := buildCreatePayload(createOptions{Longitude: "east"}, time.Now()); err == nil {
		t.Errorf("expected error for non-numeric longitude")
	}
}

func TestAPIClient_CreateAndDispatch(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing JSON content type on %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/api/crowdfunding":
			if !strings.Contains(string(body), `"task_id":"t1"`) {
				t.Errorf("unexpected create body %s", body)
			}
			_, _ = w.Write([]byte(`{"ok":true,"txHash":"0xabc","contractAddress":null}`))
		case "/api/irl-agents/tasks":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":{"code":"DISPATCH_IN_PROGRESS"}}`))
		}
	}))
	defer srv.Close()

	api := newAPIClient(srv.URL+"/", time.Second)
	res, err := api.createCampaign(context.Background(), &createPayload{TaskId: "t1"})
	if err != nil || res["txHash"] != "0xabc" {
		t.Fatalf("create = %v, %v", res, err)
	}

	err = api.dispatch(context.Background(), "t1")
	apiErr, ok := err.(*apiError)
	if !ok || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 apiError, got %v", err)
	}
	if len(paths) != 2 || paths[1] != "POST /api/irl-agents/tasks" {
		t.Errorf("paths = %v", paths)
	}
}
