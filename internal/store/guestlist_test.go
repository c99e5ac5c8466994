package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

// dateRow answers the date lock and the registration count
type dateRow struct {
	err      error
	active   bool
	capacity *int
	taken    int
	isCount  bool
}

func (r dateRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.isCount {
		*dest[0].(*int) = r.taken
		return nil
	}
	*dest[0].(*bool) = r.active
	*dest[1].(**int) = r.capacity
	return nil
}

type registrationQuerier struct {
	date       dateRow
	statements []string
}

func (q *registrationQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.statements = append(q.statements, sql)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *registrationQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (q *registrationQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.statements = append(q.statements, sql)
	row := q.date
	row.isCount = strings.Contains(sql, "COUNT(*)")
	return row
}

func newRegistration() *model.GuestListRegistration {
	return &model.GuestListRegistration{ID: uuid.New(), EventID: uuid.New(), DateID: uuid.New(), FullName: "Ana"}
}

func TestInsertRegistration_LocksDateBeforeCounting(t *testing.T) {
	capacity := 10
	q := &registrationQuerier{date: dateRow{active: true, capacity: &capacity, taken: 9}}

	require.NoError(t, insertRegistration(context.Background(), q, newRegistration(), "e", "p"))

	require.Len(t, q.statements, 3)
	assert.Contains(t, q.statements[0], "FOR UPDATE")
	assert.Contains(t, q.statements[1], "COUNT(*)")
	assert.True(t, strings.HasPrefix(q.statements[2], "INSERT INTO guest_list_registrations"))
}

func TestInsertRegistration_FullDateRejected(t *testing.T) {
	capacity := 10
	q := &registrationQuerier{date: dateRow{active: true, capacity: &capacity, taken: 10}}

	err := insertRegistration(context.Background(), q, newRegistration(), "e", "p")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Len(t, q.statements, 2)
}

func TestInsertRegistration_InactiveOrMissingDate(t *testing.T) {
	q := &registrationQuerier{date: dateRow{active: false}}
	assert.True(t, errors.Is(insertRegistration(context.Background(), q, newRegistration(), "e", "p"), ErrNotFound))

	q = &registrationQuerier{date: dateRow{err: pgx.ErrNoRows}}
	assert.True(t, errors.Is(insertRegistration(context.Background(), q, newRegistration(), "e", "p"), ErrNotFound))
	assert.Len(t, q.statements, 1)
}

func TestInsertRegistration_UnlimitedDateSkipsCount(t *testing.T) {
	q := &registrationQuerier{date: dateRow{active: true}}

	require.NoError(t, insertRegistration(context.Background(), q, newRegistration(), "e", "p"))
	require.Len(t, q.statements, 2)
	assert.NotContains(t, q.statements[1], "COUNT(*)")
}
