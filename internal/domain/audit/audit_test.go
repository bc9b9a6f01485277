package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	sql  string
	args []any
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = sql
	e.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (e *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not used")
}

func (e *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not used")
}

func (e *execRecorder) Begin(context.Context) (pgx.Tx, error) {
	panic("not used")
}

func TestRecordMarshalsState(t *testing.T) {
	db := &execRecorder{}
	svc := New(db)

	err := svc.Record(context.Background(), "u1", ActionApprove, "request", "r1", "req-1", "10.0.0.1",
		map[string]string{"status": "pending"}, map[string]string{"status": "approved"})
	require.NoError(t, err)
	assert.Contains(t, db.sql, "INSERT INTO audit_events")
	require.Len(t, db.args, 8)
	assert.Equal(t, "u1", db.args[0])
	assert.JSONEq(t, `{"status":"pending"}`, string(db.args[4].([]byte)))
	assert.JSONEq(t, `{"status":"approved"}`, string(db.args[5].([]byte)))
	assert.Equal(t, "10.0.0.1", db.args[7])

	require.NoError(t, svc.Record(context.Background(), "u1", ActionCreate, "request", "r1", "", "", nil, nil))
	assert.Nil(t, db.args[4].([]byte))
}

func TestRecordOnNilServiceIsNoop(t *testing.T) {
	var svc *Service
	assert.NoError(t, svc.Record(context.Background(), "u1", ActionCreate, "request", "r1", "", "", nil, nil))
}

func TestBuildBaseQuery(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{})
	assert.Equal(t, "SELECT COUNT(1) FROM audit_events WHERE 1=1", query)
	assert.Empty(t, args)

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	query, args = buildBaseQuery("SELECT id", Filter{Action: ActionApprove, EntityType: "request", ActorUser: "u1", From: from})
	assert.Equal(t, "SELECT id FROM audit_events WHERE 1=1 AND action = $1 AND entity_type = $2 AND actor_user_id = $3 AND created_at >= $4", query)
	assert.Equal(t, []any{ActionApprove, "request", "u1", from}, args)
}
