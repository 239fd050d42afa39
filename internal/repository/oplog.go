package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/pagecraft/internal/domain"
)

// OperationLog persists finished operations. Session contents are never
// stored, only counters.
type OperationLog struct {
	db *pgxpool.Pool
}

func NewOperationLog(db *pgxpool.Pool) *OperationLog {
	return &OperationLog{db: db}
}

const insertOperation = `
INSERT INTO operation_log (id, user_id, op, state, error_kind, inputs, outputs, output_bytes, duration_ms, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Record writes one record. Failures are logged and never reach the user.
func (l *OperationLog) Record(ctx context.Context, rec domain.OperationRecord) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		slog.Error("operation log: bad id", "id", rec.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = l.db.Exec(ctx, insertOperation,
		id,
		rec.UserID,
		string(rec.Op),
		string(rec.State),
		rec.ErrorKind,
		rec.Inputs,
		rec.Outputs,
		rec.OutputBytes,
		rec.Duration.Milliseconds(),
		rec.StartedAt,
	)
	if err != nil {
		slog.Error("operation log: insert failed", "op_id", rec.ID, "error", err)
	}
}

// Prune deletes records started before the cutoff.
func (l *OperationLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.db.Exec(ctx, `DELETE FROM operation_log WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune operation log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// OpTotal counts outcomes of one operation.
type OpTotal struct {
	Op        domain.Operation
	Succeeded int64
	Failed    int64
}

// Totals returns per-operation counts since the given time.
func (l *OperationLog) Totals(ctx context.Context, since time.Time) ([]OpTotal, error) {
	rows, err := l.db.Query(ctx, `
SELECT op,
       COUNT(*) FILTER (WHERE state = 'succeeded'),
       COUNT(*) FILTER (WHERE state = 'failed')
FROM operation_log
WHERE started_at >= $1
GROUP BY op
ORDER BY op`, since)
	if err != nil {
		return nil, fmt.Errorf("query operation totals: %w", err)
	}
	defer rows.Close()

	var totals []OpTotal
	for rows.Next() {
		var t OpTotal
		var op string
		if err := rows.Scan(&op, &t.Succeeded, &t.Failed); err != nil {
			return nil, fmt.Errorf("scan operation totals: %w", err)
		}
		t.Op = domain.Operation(op)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
