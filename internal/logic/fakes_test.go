package logic

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/blues/cleanfund/internal/chain"
	"github.com/blues/cleanfund/internal/funding"
	"github.com/blues/cleanfund/internal/irlagents"
	"github.com/blues/cleanfund/internal/model"
	"github.com/blues/cleanfund/internal/repository"
	"github.com/ethereum/go-ethereum/common"
)

// memStore 内存版活动存储，upsert 语义与仓储层一致
type memStore struct {
	mu      sync.Mutex
	rows    map[string]*model.CampaignModel
	upserts int

	upsertErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*model.CampaignModel{}}
}

func (s *memStore) Upsert(_ context.Context, c *model.CampaignModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	if existing, ok := s.rows[c.TaskId]; ok {
		row := *c
		row.Id = existing.Id
		row.DeployTxHash = existing.DeployTxHash
		row.ContractAddress = existing.ContractAddress
		row.DispatchStatus = existing.DispatchStatus
		row.DispatchedAt = existing.DispatchedAt
		row.DispatchAttempts = existing.DispatchAttempts
		row.NextDispatchAt = existing.NextDispatchAt
		s.rows[c.TaskId] = &row
		return nil
	}
	row := *c
	row.Id = int64(len(s.rows) + 1)
	s.rows[c.TaskId] = &row
	return nil
}

func (s *memStore) GetByTaskId(_ context.Context, taskId string) (*model.CampaignModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[taskId]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (s *memStore) List(_ context.Context, limit, offset int) ([]model.CampaignModel, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CampaignModel
	for _, row := range s.rows {
		out = append(out, *row)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memStore) UpdateDeployment(_ context.Context, taskId, txHash string, contractAddress *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row, ok := s.rows[taskId]
	if !ok {
		return repository.ErrNotFound
	}
	row.DeployTxHash = &txHash
	if contractAddress != nil {
		row.ContractAddress = contractAddress
	}
	return nil
}

func (s *memStore) ClaimDispatch(_ context.Context, taskId string, _ time.Duration) (bool, model.DispatchStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[taskId]
	if !ok {
		return false, "", repository.ErrNotFound
	}
	if row.DispatchStatus != model.DispatchStatusNone && row.DispatchStatus != model.DispatchStatusAbandoned {
		return false, row.DispatchStatus, nil
	}
	row.DispatchStatus = model.DispatchStatusDispatching
	return true, row.DispatchStatus, nil
}

func (s *memStore) CompleteDispatch(_ context.Context, taskId string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[taskId]
	row.DispatchStatus = model.DispatchStatusDispatched
	row.DispatchedAt = &at
	return nil
}

func (s *memStore) ReleaseDispatch(_ context.Context, taskId string, retry model.DispatchRetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[taskId]
	row.DispatchStatus = retry.Status
	row.DispatchAttempts = retry.Attempts
	row.NextDispatchAt = retry.NextAt
	return nil
}

func (s *memStore) put(row *model.CampaignModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.TaskId] = row
}

// fakeDeployer 记录部署调用
type fakeDeployer struct {
	calls    int
	receiver string
	target   float64
	result   *chain.DeployResult
	err      error

	resolveCalls int
	resolved     *common.Address
	resolveErr   error
}

func (d *fakeDeployer) Deploy(_ context.Context, receiver string, target float64) (*chain.DeployResult, error) {
	d.calls++
	d.receiver = receiver
	d.target = target
	return d.result, d.err
}

func (d *fakeDeployer) Resolve(_ context.Context, _ string) (*common.Address, error) {
	d.resolveCalls++
	return d.resolved, d.resolveErr
}

func deployerFactory(d *fakeDeployer, created *int) DeployerFactory {
	return func(context.Context) (Deployer, error) {
		*created++
		return d, nil
	}
}

// fakeTaskClient 记录外部 API 调用
type fakeTaskClient struct {
	apiKey   bool
	calls    int
	received []irlagents.Task
	response json.RawMessage
	err      error
}

func (c *fakeTaskClient) HasAPIKey() bool { return c.apiKey }

func (c *fakeTaskClient) CreateTasks(_ context.Context, tasks []irlagents.Task) (json.RawMessage, error) {
	c.calls++
	c.received = tasks
	return c.response, c.err
}

type memRecords struct {
	records []model.DispatchRecordModel
}

func (r *memRecords) Create(_ context.Context, record *model.DispatchRecordModel) error {
	r.records = append(r.records, *record)
	return nil
}

func (r *memRecords) ListByTaskId(_ context.Context, taskId string) ([]model.DispatchRecordModel, error) {
	var out []model.DispatchRecordModel
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].TaskId == taskId {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

type fakeReader struct {
	snapshot *funding.Snapshot
	err      error
	account  *common.Address
}

func (r *fakeReader) Snapshot(_ context.Context, _ string, account *common.Address) (*funding.Snapshot, error) {
	r.account = account
	if r.err != nil {
		return nil, r.err
	}
	s := *r.snapshot
	s.Account = account
	return &s, nil
}
