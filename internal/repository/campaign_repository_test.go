package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/blues/cleanfund/internal/config"
	"github.com/blues/cleanfund/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// newDryRunDB 生成 SQL 但不连接数据库
func newDryRunDB(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: DSN(config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", DBName: "cleanfund", SSLMode: "disable",
	})}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormLogger.Default.LogMode(gormLogger.Silent),
		NamingStrategy:       &schema.NamingStrategy{SingularTable: true},
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}

	var captured []string
	capture := func(tx *gorm.DB) {
		captured = append(captured, tx.Statement.SQL.String())
	}
	if err := db.Callback().Create().After("gorm:create").Register("test:capture_create", capture); err != nil {
		t.Fatalf("register create callback: %v", err)
	}
	if err := db.Callback().Update().After("gorm:update").Register("test:capture_update", capture); err != nil {
		t.Fatalf("register update callback: %v", err)
	}
	if err := db.Callback().Query().After("gorm:query").Register("test:capture_query", capture); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	return db, &captured
}

func TestCampaignRepository_UpsertKeepsDeploymentColumns(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewCampaignRepository(db)

	err := repo.Upsert(context.Background(), &model.CampaignModel{
		TaskId:          "t1",
		ReceiverAddress: "0x0000000000000000000000000000000000000001",
		CreatedAt:       "2024-01-01T00:00:00.000Z",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(*captured) != 1 {
		t.Fatalf("captured = %v", *captured)
	}

	sql := (*captured)[0]
	if !strings.Contains(sql, `INSERT INTO "crowdfunding_submissions"`) {
		t.Fatalf("unexpected table: %s", sql)
	}
	if !strings.Contains(sql, `ON CONFLICT ("task_id") DO UPDATE SET`) {
		t.Fatalf("missing upsert clause: %s", sql)
	}
	for _, col := range []string{"target_amount", "receiver_address", "created_at", "task_specifics"} {
		if !strings.Contains(sql, `"`+col+`"="excluded"."`+col+`"`) {
			t.Errorf("expected %s to be overwritten: %s", col, sql)
		}
	}
	for _, col := range []string{"contract_address", "deploy_tx_hash", "dispatch_status", "dispatched_at", "dispatch_attempts", "next_dispatch_at"} {
		if strings.Contains(sql, `"`+col+`"="excluded"."`+col+`"`) {
			t.Errorf("%s must survive a resubmission: %s", col, sql)
		}
	}
}

func TestCampaignRepository_UpdateDeploymentWithoutAddress(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewCampaignRepository(db)

	// dry run reports zero affected rows
	_ = repo.UpdateDeployment(context.Background(), "t1", "0xabc", nil)
	if len(*captured) != 1 {
		t.Fatalf("captured = %v", *captured)
	}
	sql := (*captured)[0]
	if !strings.Contains(sql, `"deploy_tx_hash"=`) {
		t.Fatalf("tx hash not written: %s", sql)
	}
	if strings.Contains(sql, "contract_address") {
		t.Fatalf("contract_address must not be cleared: %s", sql)
	}
}

func TestCampaignRepository_ListOrdersByCreatedAtDesc(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewCampaignRepository(db)

	if _, _, err := repo.List(context.Background(), 20, 40); err != nil {
		t.Fatalf("List: %v", err)
	}
	last := (*captured)[len(*captured)-1]
	if !strings.Contains(last, "ORDER BY created_at DESC") || !strings.Contains(last, "LIMIT") {
		t.Fatalf("unexpected list query: %s", last)
	}
}

func TestCampaignRepository_ClaimDispatchIsConditional(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewCampaignRepository(db)

	// dry run 不影响任何行，抢占失败后会回读当前状态
	claimed, _, _ := repo.ClaimDispatch(context.Background(), "t1", 10*time.Minute)
	if claimed {
		t.Fatalf("dry run must not report a claim")
	}
	if len(*captured) == 0 {
		t.Fatalf("nothing captured")
	}
	sql := (*captured)[0]
	if !strings.HasPrefix(sql, `UPDATE "crowdfunding_submissions" SET`) {
		t.Fatalf("unexpected claim statement: %s", sql)
	}
	if !strings.Contains(sql, "dispatch_status IS NULL OR dispatch_status IN") || !strings.Contains(sql, "updated_at <") {
		t.Fatalf("claim must only take unclaimed or stale rows: %s", sql)
	}
}

func TestCampaignRepository_ListPendingDispatchUsesCursorAndRetryTime(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewCampaignRepository(db)

	if _, err := repo.ListPendingDispatch(context.Background(), 200, time.Now(), 50); err != nil {
		t.Fatalf("ListPendingDispatch: %v", err)
	}
	sql := (*captured)[len(*captured)-1]
	for _, want := range []string{"id >", "next_dispatch_at IS NULL OR next_dispatch_at <=", "ORDER BY id ASC", "LIMIT"} {
		if !strings.Contains(sql, want) {
			t.Errorf("query missing %q: %s", want, sql)
		}
	}
}

func TestCampaignRepository_ReleaseDispatchWritesRetry(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewCampaignRepository(db)

	next := time.Now().Add(time.Minute)
	_ = repo.ReleaseDispatch(context.Background(), "t1", model.DispatchRetry{Status: model.DispatchStatusNone, Attempts: 2, NextAt: &next})
	sql := (*captured)[0]
	for _, col := range []string{`"dispatch_status"=`, `"dispatch_attempts"=`, `"next_dispatch_at"=`} {
		if !strings.Contains(sql, col) {
			t.Errorf("release missing %s: %s", col, sql)
		}
	}
}
