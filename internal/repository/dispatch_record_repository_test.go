package repository

import (
	"context"
	"strings"
	"testing"
)

func TestDispatchRecordRepository_ListByTaskIdNewestFirst(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewDispatchRecordRepository(db)

	if _, err := repo.ListByTaskId(context.Background(), "t1"); err != nil {
		t.Fatalf("ListByTaskId: %v", err)
	}
	if len(*captured) == 0 {
		t.Fatalf("nothing captured")
	}
	sql := (*captured)[len(*captured)-1]
	for _, want := range []string{`FROM "dispatch_record"`, "task_id = $1", "ORDER BY created_at DESC"} {
		if !strings.Contains(sql, want) {
			t.Errorf("query missing %q: %s", want, sql)
		}
	}
}
