package service

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-allocation-api/internal/dto"
	"github.com/noah-isme/defense-allocation-api/internal/models"
	"github.com/noah-isme/defense-allocation-api/internal/notification"
	"github.com/noah-isme/defense-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
)

var examDay = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

type allocationFixture struct {
	svc       *AllocationService
	mock      sqlmock.Sqlmock
	catalog   *catalogStub
	store     *defenseStoreStub
	publisher *publisherStub
	metrics   *metricsStub
}

func newAllocationFixture(t *testing.T, rng Randomizer) *allocationFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	catalog := twoAreaCatalog()
	catalog.defenseTypes = map[string]models.DefenseType{"DT": {ID: "DT", Name: "Internal exam"}}
	students := careerStub{"S1": "C", "S2": "C", "S3": "C"}
	store := newDefenseStoreStub()
	publisher := &publisherStub{}
	metrics := &metricsStub{}

	defenses := NewDefenseService(store, publisher, nil, nil)
	svc := NewAllocationService(tx, catalog, students, NewAllocationPlanner(catalog, rng), defenses, publisher, metrics, nil, nil)

	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return &allocationFixture{svc: svc, mock: mock, catalog: catalog, store: store, publisher: publisher, metrics: metrics}
}

func autoRequest(studentIDs ...string) dto.AllocateDefensesRequest {
	return dto.AllocateDefensesRequest{
		StudentIDs:    studentIDs,
		DefenseTypeID: "DT",
		ScheduledAt:   examDay,
		AutoPickArea:  true,
		AutoPickCase:  true,
	}
}

func TestAllocateDefensesAssignsExclusiveCases(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		f := newAllocationFixture(t, NewSeededRandomizer(seed))
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()

		result, err := f.svc.AllocateDefenses(context.Background(), autoRequest("S1", "S2"))
		require.NoError(t, err)
		require.Len(t, result, 2)

		seen := map[string]bool{}
		for _, summary := range result {
			require.NotNil(t, summary.CaseStudyID)
			require.NotNil(t, summary.AreaID)
			assert.Equal(t, models.DefenseStatusAssigned, summary.Status)
			assert.False(t, seen[*summary.CaseStudyID], "case study %s reused with seed %d", *summary.CaseStudyID, seed)
			seen[*summary.CaseStudyID] = true
		}

		events := f.publisher.published()
		require.Len(t, events, 2)
		for _, event := range events {
			assert.Equal(t, notification.PurposeSchedule, event.Purpose)
		}
		assert.Equal(t, []string{"ok"}, f.metrics.outcomes)
		assert.Equal(t, 2, f.metrics.created[string(models.DefenseStatusAssigned)])
		require.Len(t, f.catalog.locked, 1)
		assert.Equal(t, examDay, f.catalog.locked[0])
	}
}

func TestAllocateDefensesExcludesCasesScheduledThatDay(t *testing.T) {
	f := newAllocationFixture(t, firstRandomizer{})
	f.catalog.consumed = []string{"X"}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.AllocateDefenses(context.Background(), autoRequest("S1"))
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Y", *result[0].CaseStudyID)
	assert.Equal(t, "A2", *result[0].AreaID)
	assert.Equal(t, "Databases", *result[0].AreaName)
	assert.Equal(t, "Internal exam", result[0].DefenseTypeName)
}

func TestAllocateDefensesExhaustionRollsBack(t *testing.T) {
	f := newAllocationFixture(t, firstRandomizer{})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	result, err := f.svc.AllocateDefenses(context.Background(), autoRequest("S1", "S2", "S3"))
	requireAppError(t, err, appErrors.ErrNoAvailableCaseStudy)
	assert.Nil(t, result)
	assert.Empty(t, f.publisher.published())
	assert.Equal(t, []string{appErrors.ErrNoAvailableCaseStudy.Code}, f.metrics.outcomes)
}

func TestAllocateDefensesExhaustionDiscardsInsertedRows(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })

	catalog := twoAreaCatalog()
	catalog.defenseTypes = map[string]models.DefenseType{"DT": {ID: "DT", Name: "Internal exam"}}
	publisher := &publisherStub{}
	defenses := NewDefenseService(repository.NewDefenseRepository(tx.db), publisher, nil, nil)
	svc := NewAllocationService(tx, catalog, careerStub{"S1": "C", "S2": "C", "S3": "C"},
		NewAllocationPlanner(catalog, NewSeededRandomizer(7)), defenses, publisher, nil, nil, nil)

	// Both inserts go through the transaction, which is rolled back instead of committed.
	mock.ExpectBegin()
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT 1 FROM defenses").WillReturnRows(sqlmock.NewRows([]string{"exists"}))
		mock.ExpectExec("INSERT INTO defenses").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectRollback()

	result, err := svc.AllocateDefenses(context.Background(), autoRequest("S1", "S2", "S3"))
	requireAppError(t, err, appErrors.ErrNoAvailableCaseStudy)
	assert.Nil(t, result)
	assert.Empty(t, publisher.published())
}

func TestAllocateDefensesRejectsSecondBatchForSameSlot(t *testing.T) {
	f := newAllocationFixture(t, firstRandomizer{})
	req := dto.AllocateDefensesRequest{
		StudentIDs:    []string{"S1"},
		DefenseTypeID: "DT",
		ScheduledAt:   examDay,
		AreaID:        strPtr("A1"),
	}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	first, err := f.svc.AllocateDefenses(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, models.DefenseStatusPending, first[0].Status)
	assert.Nil(t, first[0].CaseStudyID)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.AllocateDefenses(context.Background(), req)
	requireAppError(t, err, appErrors.ErrDuplicateDefense)
	assert.Len(t, f.publisher.published(), 1)
}

func TestAllocateDefensesValidation(t *testing.T) {
	tests := []struct {
		name string
		req  dto.AllocateDefensesRequest
	}{
		{name: "no students", req: dto.AllocateDefensesRequest{DefenseTypeID: "DT", ScheduledAt: examDay}},
		{name: "empty student id", req: dto.AllocateDefensesRequest{StudentIDs: []string{""}, DefenseTypeID: "DT", ScheduledAt: examDay}},
		{name: "no defense type", req: dto.AllocateDefensesRequest{StudentIDs: []string{"S1"}, ScheduledAt: examDay}},
		{name: "no date", req: dto.AllocateDefensesRequest{StudentIDs: []string{"S1"}, DefenseTypeID: "DT"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newAllocationFixture(t, firstRandomizer{})
			_, err := f.svc.AllocateDefenses(context.Background(), tc.req)
			requireAppError(t, err, appErrors.ErrValidation)
		})
	}
}

func TestAllocateDefensesNotFound(t *testing.T) {
	t.Run("defense type", func(t *testing.T) {
		f := newAllocationFixture(t, firstRandomizer{})
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
		req := autoRequest("S1")
		req.DefenseTypeID = "missing"
		_, err := f.svc.AllocateDefenses(context.Background(), req)
		requireAppError(t, err, appErrors.ErrDefenseTypeNotFound)
	})

	t.Run("student", func(t *testing.T) {
		f := newAllocationFixture(t, firstRandomizer{})
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
		_, err := f.svc.AllocateDefenses(context.Background(), autoRequest("S1", "ghost"))
		requireAppError(t, err, appErrors.ErrStudentNotFound)
		assert.Empty(t, f.publisher.published())
	})
}

func TestAllocateDefensesInfrastructureFailure(t *testing.T) {
	f := newAllocationFixture(t, firstRandomizer{})
	f.catalog.err = errors.New("connection reset")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.AllocateDefenses(context.Background(), autoRequest("S1"))
	requireAppError(t, err, appErrors.ErrInternal)
}

func TestAllocateDefensesCommitFailure(t *testing.T) {
	f := newAllocationFixture(t, firstRandomizer{})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	_, err := f.svc.AllocateDefenses(context.Background(), autoRequest("S1"))
	requireAppError(t, err, appErrors.ErrInternal)
	assert.Empty(t, f.publisher.published())
}
