package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, WorkerJobReasonDeadlineExceeded},
		{"canceled", context.Canceled, WorkerJobReasonDeadlineExceeded},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, WorkerJobReasonDBLockTimeout},
		{"serialization", &pgconn.PgError{Code: "40001"}, WorkerJobReasonSerializationFailure},
		{"unique pg", &pgconn.PgError{Code: "23505"}, WorkerJobReasonUniqueViolation},
		{"unique gorm", gorm.ErrDuplicatedKey, WorkerJobReasonUniqueViolation},
		{"plain", errors.New("boom"), WorkerJobReasonUnknown},
	}

	for _, tc := range cases {
		if got := classifyJobReason(tc.err); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestClassifyWorkerErrorType(t *testing.T) {
	if got := ClassifyWorkerErrorType(context.DeadlineExceeded); got != WorkerErrorTypeDeadlineExceeded {
		t.Fatalf("deadline: got %q", got)
	}
	if got := ClassifyWorkerErrorType(gorm.ErrRecordNotFound); got != WorkerErrorTypeBusinessRule {
		t.Fatalf("not found should be business rule, got %q", got)
	}
	if got := ClassifyWorkerErrorType(&pgconn.PgError{Code: "40001"}); got != WorkerErrorTypeDB {
		t.Fatalf("pg error should be db, got %q", got)
	}
}

func TestWorkerMetricsNilSafe(t *testing.T) {
	var m *WorkerMetrics
	m.IncJobRun("delivery")
	m.ObserveJobDuration("delivery", time.Second)
	m.IncJobError("delivery", errors.New("boom"))
	m.AddBatchProcessed("delivery", "jobs", 3)
}

func TestWorkerMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newWorkerMetrics(reg, Config{ServiceName: "zapflow-test", Environment: "test"})
	m.IncJobRun("delivery")
	m.AddBatchProcessed("delivery", "jobs", 2)
	m.IncBatchDeferred("delivery", WorkerBatchDeferredReasonSkipLockedEmpty)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}
