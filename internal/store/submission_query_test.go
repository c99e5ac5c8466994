package store

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

func TestBuildSubmissionWhere_AgencyOnly(t *testing.T) {
	agencyID := uuid.New()
	where, args := buildSubmissionWhere(agencyID, SubmissionQuery{})
	assert.Equal(t, "WHERE s.agency_id = $1", where)
	assert.Equal(t, []any{agencyID}, args)
}

func TestBuildSubmissionWhere_AllFiltersServerSide(t *testing.T) {
	agencyID, eventID := uuid.New(), uuid.New()
	post := 2
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	where, args := buildSubmissionWhere(agencyID, SubmissionQuery{
		EventID:    &eventID,
		PostNumber: &post,
		Status:     model.StatusPending,
		Type:       model.SubmissionPost,
		Search:     "ana_50%",
		DateStart:  &start,
		DateEnd:    &end,
	})

	assert.Contains(t, where, "s.event_id = $2")
	assert.Contains(t, where, "p.post_number = $3")
	assert.Contains(t, where, "s.status = $4")
	assert.Contains(t, where, "s.submission_type = $5")
	assert.Contains(t, where, "s.submitted_at >= $6")
	assert.Contains(t, where, "s.submitted_at < $7")
	assert.Contains(t, where, "pr.full_name ILIKE $8 OR pr.email ILIKE $8 OR pr.instagram ILIKE $8")
	assert.Len(t, args, 8)
	assert.Equal(t, `%ana\_50\%%`, args[7])
}

func TestBuildSubmissionWhere_GuestScope(t *testing.T) {
	allowed := []uuid.UUID{uuid.New(), uuid.New()}
	where, args := buildSubmissionWhere(uuid.New(), SubmissionQuery{AllowedEventIDs: allowed})
	assert.Contains(t, where, "s.event_id = ANY($2)")
	assert.Equal(t, allowed, args[1])
}

func TestBuildSubmissionPageQuery_Pagination(t *testing.T) {
	pageSQL, countSQL, pageArgs, countArgs := buildSubmissionPageQuery(uuid.New(), SubmissionQuery{
		Status: model.StatusApproved,
		Limit:  50,
		Offset: 100,
	})

	assert.True(t, strings.HasPrefix(countSQL, "SELECT COUNT(*)"))
	assert.NotContains(t, countSQL, "LIMIT")
	assert.Contains(t, pageSQL, "ORDER BY s.submitted_at DESC, s.id DESC")
	assert.Contains(t, pageSQL, "LIMIT $3 OFFSET $4")
	assert.Len(t, countArgs, 2)
	assert.Equal(t, []any{50, 100}, pageArgs[2:])
}

func TestBuildSubmissionPageQuery_NoLimitReturnsAll(t *testing.T) {
	pageSQL, _, pageArgs, countArgs := buildSubmissionPageQuery(uuid.New(), SubmissionQuery{})
	assert.NotContains(t, pageSQL, "LIMIT")
	assert.Equal(t, countArgs, pageArgs)
}

func TestBuildStatusChange_SingleStatementWithAuditRows(t *testing.T) {
	agencyID, actor := uuid.New(), uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	query, args := buildStatusChange(agencyID, StatusChange{
		IDs:   ids,
		To:    model.StatusApproved,
		From:  []model.SubmissionStatus{model.StatusPending},
		Actor: actor,
	})

	assert.Equal(t, 1, strings.Count(query, "UPDATE submissions"))
	assert.Contains(t, query, "id = ANY($2)")
	assert.Contains(t, query, "INSERT INTO submission_logs")
	assert.Equal(t, agencyID, args[0])
	assert.Equal(t, ids, args[1])
	assert.Equal(t, []string{"pending"}, args[2])
	assert.Equal(t, "approved", args[3])
	assert.Equal(t, actor, args[4])
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\\b\%c\_d`, escapeLike(`a\b%c_d`))
}
