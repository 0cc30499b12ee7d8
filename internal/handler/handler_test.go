package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/blues/cleanfund/internal/errors"
	"github.com/blues/cleanfund/internal/logic"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const validBody = `{
	"task_id": "t1",
	"user_id": 0,
	"crowdfunding_data": {"general_description": "Clean the beach"},
	"task_specifics": {"photo_breakdown": []},
	"total_cost": 25,
	"photos": [],
	"location_gps": {"latitude": null, "longitude": null},
	"created_at": "2026-01-01T00:00:00Z",
	"target_amount": 25,
	"receiver_address": "0x1111111111111111111111111111111111111111"
}`

type fakeCampaignService struct {
	createCalls int
	createRes   *logic.CreateResult
	createErr   error
	detail      *logic.CampaignDetail
	detailErr   error
	limit       int
	offset      int
	account     string
	amount      string
}

func (f *fakeCampaignService) Create(_ context.Context, _ *logic.CreateCampaignRequest) (*logic.CreateResult, error) {
	f.createCalls++
	return f.createRes, f.createErr
}

func (f *fakeCampaignService) List(_ context.Context, limit, offset int) (*logic.CampaignPage, error) {
	f.limit, f.offset = limit, offset
	return &logic.CampaignPage{Limit: limit, Offset: offset}, nil
}

func (f *fakeCampaignService) Detail(_ context.Context, _ string) (*logic.CampaignDetail, error) {
	return f.detail, f.detailErr
}

func (f *fakeCampaignService) Funding(_ context.Context, _ string, account, amount string) (*logic.FundingView, error) {
	f.account, f.amount = account, amount
	return &logic.FundingView{Target: "25"}, nil
}

type fakeDispatchService struct {
	calls  int
	taskId string
	res    *logic.DispatchResult
	err    error
}

func (f *fakeDispatchService) Dispatch(_ context.Context, taskId string) (*logic.DispatchResult, error) {
	f.calls++
	f.taskId = taskId
	return f.res, f.err
}

func newTestEngine(campaigns CampaignService, dispatches DispatchService) *gin.Engine {
	r := gin.New()
	ch := NewCampaignHandler(campaigns)
	dh := NewDispatchHandler(dispatches)
	r.POST("/api/crowdfunding", ch.CreateCampaign)
	r.GET("/api/crowdfunding", ch.GetCampaigns)
	r.GET("/api/crowdfunding/:task_id", ch.GetCampaign)
	r.GET("/api/crowdfunding/:task_id/funding", ch.GetFunding)
	r.POST("/api/irl-agents/tasks", dh.CreateTasks)
	return r
}

func do(r http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.Body {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func TestCreateCampaign_RequiresJSONContentType(t *testing.T) {
	svc := &fakeCampaignService{}
	w := do(newTestEngine(svc, &fakeDispatchService{}), http.MethodPost, "/api/crowdfunding", "text/plain", validBody)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", w.Code)
	}
	if decodeError(t, w).Code != apperrors.CodeUnsupportedMediaType || svc.createCalls != 0 {
		t.Errorf("unexpected response %s", w.Body.String())
	}
}

func TestCreateCampaign_InvalidReceiverNeverReachesLogic(t *testing.T) {
	svc := &fakeCampaignService{}
	body := strings.Replace(validBody, "0x1111111111111111111111111111111111111111", "0x123", 1)
	w := do(newTestEngine(svc, &fakeDispatchService{}), http.MethodPost, "/api/crowdfunding", "application/json; charset=utf-8", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	e := decodeError(t, w)
	if e.Code != apperrors.CodeInvalidPayload || len(e.Issues) != 1 || e.Issues[0].Path != "receiver_address" {
		t.Errorf("unexpected error %+v", e)
	}
	if svc.createCalls != 0 {
		t.Errorf("logic must not be called for invalid payloads")
	}
}

func TestCreateCampaign_Success(t *testing.T) {
	addr := "0x00000000000000000000000000000000000000C1"
	svc := &fakeCampaignService{createRes: &logic.CreateResult{TxHash: "0xabc", ContractAddress: &addr}}
	w := do(newTestEngine(svc, &fakeDispatchService{}), http.MethodPost, "/api/crowdfunding", "application/json", validBody)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res CreateCampaignResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.OK || res.TxHash != "0xabc" || res.ContractAddress == nil || *res.ContractAddress != addr {
		t.Errorf("unexpected response %+v", res)
	}
}

func TestCreateCampaign_NullContractAddressIsSerialized(t *testing.T) {
	svc := &fakeCampaignService{createRes: &logic.CreateResult{TxHash: "0xabc"}}
	w := do(newTestEngine(svc, &fakeDispatchService{}), http.MethodPost, "/api/crowdfunding", "application/json", validBody)

	if !strings.Contains(w.Body.String(), `"contractAddress":null`) {
		t.Errorf("expected explicit null contractAddress, got %s", w.Body.String())
	}
}

func TestCreateCampaign_EnvMissingBody(t *testing.T) {
	svc := &fakeCampaignService{createErr: apperrors.ErrEnvMissing.WithDetails([]string{"PRIVATE_KEY", "RPC_URL"})}
	w := do(newTestEngine(svc, &fakeDispatchService{}), http.MethodPost, "/api/crowdfunding", "application/json", validBody)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"details":["PRIVATE_KEY","RPC_URL"]`) {
		t.Errorf("missing names not listed: %s", w.Body.String())
	}
}

func TestGetCampaign_NotFound(t *testing.T) {
	svc := &fakeCampaignService{detailErr: apperrors.ErrNotFound}
	w := do(newTestEngine(svc, &fakeDispatchService{}), http.MethodGet, "/api/crowdfunding/nope", "", "")

	if w.Code != http.StatusNotFound || decodeError(t, w).Code != apperrors.CodeNotFound {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestGetCampaignsAndFunding_PassQueryParameters(t *testing.T) {
	svc := &fakeCampaignService{}
	r := newTestEngine(svc, &fakeDispatchService{})

	if w := do(r, http.MethodGet, "/api/crowdfunding?limit=5&offset=10", "", ""); w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if svc.limit != 5 || svc.offset != 10 {
		t.Errorf("paging = %d/%d", svc.limit, svc.offset)
	}

	if w := do(r, http.MethodGet, "/api/crowdfunding/t1/funding?account=0xabc&amount=1.5", "", ""); w.Code != http.StatusOK {
		t.Fatalf("funding status = %d", w.Code)
	}
	if svc.account != "0xabc" || svc.amount != "1.5" {
		t.Errorf("query = %s/%s", svc.account, svc.amount)
	}
}

func TestCreateTasks(t *testing.T) {
	svc := &fakeDispatchService{res: &logic.DispatchResult{OK: true, Message: "Tasks created successfully"}}
	r := newTestEngine(&fakeCampaignService{}, svc)

	w := do(r, http.MethodPost, "/api/irl-agents/tasks", "application/json", `{"task_id":"t1"}`)
	if w.Code != http.StatusOK || svc.taskId != "t1" {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/api/irl-agents/tasks", "application/json", `{"task_id":""}`)
	if w.Code != http.StatusBadRequest || svc.calls != 1 {
		t.Errorf("empty task_id should be rejected before dispatch, got %d", w.Code)
	}

	svc.err = apperrors.ErrIrlAgentsAPI.WithDetails("bad gateway").WithStatus(502)
	w = do(r, http.MethodPost, "/api/irl-agents/tasks", "application/json", `{"task_id":"t1"}`)
	e := decodeError(t, w)
	if w.Code != http.StatusInternalServerError || e.Status != 502 || e.Details != "bad gateway" {
		t.Errorf("unexpected upstream error %d %+v", w.Code, e)
	}
}
