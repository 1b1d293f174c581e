package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokestack/smokestack-backend/internal/checklist/domain"
	"github.com/smokestack/smokestack-backend/internal/checklist/events"
	"github.com/smokestack/smokestack-backend/internal/checklist/repository"
	"github.com/smokestack/smokestack-backend/pkg/errors"
	"github.com/smokestack/smokestack-backend/pkg/logger"
	"github.com/smokestack/smokestack-backend/pkg/messaging"
	"github.com/smokestack/smokestack-backend/pkg/storectx"
	"github.com/smokestack/smokestack-backend/pkg/testutil"
)

type fixedStaffPool struct {
	ids []string
}

func (p *fixedStaffPool) ActiveIDs(ctx context.Context) ([]string, error) {
	return p.ids, nil
}

func newChecklistService(t *testing.T, pool []string) (*ChecklistService, *testutil.MockDB, *testutil.MockPublisher) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	pub := testutil.NewMockPublisher()
	svc := NewChecklistService(
		repository.NewChecklistRepository(mockDB.DB),
		repository.NewTemplateRepository(mockDB.DB),
		&fixedStaffPool{ids: pool},
		events.NewChecklistEventPublisher(pub, logger.Nop()),
		logger.Nop(),
	)
	return svc, mockDB, pub
}

func taskColumns() []string {
	return []string{
		"id", "store_id", "checklist_id", "title", "description", "position", "status",
		"assigned_to", "last_actor_id", "performance_rating", "started_at", "completed_at",
		"created_at", "updated_at",
	}
}

func TestTransitionRejectsInvalidMove(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	taskID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "team_member")

	svc, mockDB, pub := newChecklistService(t, nil)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM checklist_tasks",
		testutil.MockRows(taskColumns()...).
			AddRow(taskID, storeID, uuid.New().String(), "Fire up the pits", nil, 0, domain.StatusSkipped,
				nil, nil, nil, nil, nil, now, now),
	)

	_, err := svc.Transition(ctx, TransitionInput{TaskID: taskID, To: domain.StatusInProgress})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_STATE_TRANSITION", appErr.Code)

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestTransitionRejectsRatingOutsideCompletion(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	taskID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "team_member")

	svc, mockDB, _ := newChecklistService(t, nil)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM checklist_tasks",
		testutil.MockRows(taskColumns()...).
			AddRow(taskID, storeID, uuid.New().String(), "Wipe down tables", nil, 0, domain.StatusPending,
				nil, nil, nil, nil, nil, now, now),
	)

	rating := domain.RatingMet
	_, err := svc.Transition(ctx, TransitionInput{TaskID: taskID, To: domain.StatusInProgress, Rating: &rating})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}

func TestTransitionStampsActorAndStart(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	taskID := uuid.New().String()
	checklistID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "pitmaster")

	svc, mockDB, pub := newChecklistService(t, nil)

	now := time.Now().UTC()
	mockDB.ExpectStoreQuery(storeID, "FROM checklist_tasks",
		testutil.MockRows(taskColumns()...).
			AddRow(taskID, storeID, checklistID, "Stock the line", nil, 0, domain.StatusPending,
				nil, nil, nil, nil, nil, now, now),
	)
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectExec("UPDATE checklist_tasks").
		WithArgs(taskID, domain.StatusInProgress, actorID, nil, testutil.AnyTime{}, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	task, err := svc.Transition(ctx, TransitionInput{TaskID: taskID, To: domain.StatusInProgress})
	require.NoError(t, err)
	require.NotNil(t, task.LastActorID)
	assert.Equal(t, actorID, *task.LastActorID)
	require.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestCompletingLastTaskPublishesEvent(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	taskID := uuid.New().String()
	checklistID := uuid.New().String()
	templateID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, pub := newChecklistService(t, nil)

	now := time.Now().UTC()
	started := now.Add(-10 * time.Minute)
	rating := domain.RatingExceeded

	mockDB.ExpectStoreQuery(storeID, "FROM checklist_tasks",
		testutil.MockRows(taskColumns()...).
			AddRow(taskID, storeID, checklistID, "Close out registers", nil, 1, domain.StatusInProgress,
				nil, &actorID, nil, &started, nil, now, now),
	)
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectExec("UPDATE checklist_tasks").
		WithArgs(taskID, domain.StatusCompleted, actorID, rating, started, testutil.AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	// Refetch for the completion check: one checklist, both tasks terminal.
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM checklists").
		WillReturnRows(testutil.MockRows("id", "store_id", "template_id", "date", "deadline", "created_at").
			AddRow(checklistID, storeID, templateID, now, nil, now))
	mockDB.Mock.ExpectQuery("FROM checklist_tasks").
		WillReturnRows(testutil.MockRows(taskColumns()...).
			AddRow(uuid.New().String(), storeID, checklistID, "Wrap brisket", nil, 0, domain.StatusCompleted,
				nil, &actorID, nil, &started, &now, now, now).
			AddRow(taskID, storeID, checklistID, "Close out registers", nil, 1, domain.StatusCompleted,
				nil, &actorID, &rating, &started, &now, now, now))
	mockDB.ExpectCommit()

	// Template lookup for the event payload.
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM checklist_templates").
		WillReturnRows(testutil.MockRows("id", "store_id", "name", "description", "shift_type", "is_active", "created_at", "updated_at").
			AddRow(templateID, storeID, "Closing duties", nil, "closing", true, now, now))
	mockDB.Mock.ExpectQuery("FROM checklist_template_tasks").
		WillReturnRows(testutil.MockRows("id", "store_id", "template_id", "title", "description", "position", "created_at"))
	mockDB.ExpectCommit()

	task, err := svc.Transition(ctx, TransitionInput{TaskID: taskID, To: domain.StatusCompleted, Rating: &rating})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	require.NotNil(t, task.PerformanceRating)
	assert.Equal(t, rating, *task.PerformanceRating)

	pub.AssertEventPublished(t, messaging.EventChecklistComplete)
	require.Len(t, pub.PublishedEvents, 1)
	payload, ok := pub.PublishedEvents[0].Payload.(messaging.ChecklistCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, checklistID, payload.ChecklistID)
	assert.Equal(t, "Closing duties", payload.TemplateName)
	assert.Equal(t, 100, payload.Progress)

	mockDB.ExpectationsWereMet(t)
}

func TestReopenClearsCompletionFields(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	taskID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "manager")

	svc, mockDB, pub := newChecklistService(t, nil)

	now := time.Now().UTC()
	started := now.Add(-time.Hour)
	completed := now.Add(-30 * time.Minute)
	rating := domain.RatingBelow

	mockDB.ExpectStoreQuery(storeID, "FROM checklist_tasks",
		testutil.MockRows(taskColumns()...).
			AddRow(taskID, storeID, uuid.New().String(), "Scrub smoker grates", nil, 0, domain.StatusCompleted,
				nil, &actorID, &rating, &started, &completed, now, now),
	)
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectExec("UPDATE checklist_tasks").
		WithArgs(taskID, domain.StatusInProgress, actorID, nil, started, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	task, err := svc.Transition(ctx, TransitionInput{TaskID: taskID, To: domain.StatusInProgress})
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)
	assert.Nil(t, task.PerformanceRating)
	require.NotNil(t, task.StartedAt)
	assert.Equal(t, started, *task.StartedAt)

	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestGenerateDailyReturnsExistingChecklist(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	checklistID := uuid.New().String()
	templateID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, _ := newChecklistService(t, nil)

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mockDB.ExpectStoreQuery(storeID, "FROM checklists",
		testutil.MockRows("id", "store_id", "template_id", "date", "deadline", "created_at").
			AddRow(checklistID, storeID, templateID, date, nil, now),
	)
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM checklists").
		WillReturnRows(testutil.MockRows("id", "store_id", "template_id", "date", "deadline", "created_at").
			AddRow(checklistID, storeID, templateID, date, nil, now))
	mockDB.Mock.ExpectQuery("FROM checklist_tasks").
		WillReturnRows(testutil.MockRows(taskColumns()...).
			AddRow(uuid.New().String(), storeID, checklistID, "Light the pits", nil, 0, domain.StatusPending,
				nil, nil, nil, nil, nil, now, now))
	mockDB.ExpectCommit()

	cl, err := svc.GenerateDaily(ctx, templateID, date, nil)
	require.NoError(t, err)
	assert.Equal(t, checklistID, cl.ID)
	assert.Equal(t, domain.ChecklistPending, cl.Status)
	assert.Equal(t, 0, cl.Progress)

	mockDB.ExpectationsWereMet(t)
}

func TestAssignTaskMovesStaffFromPool(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	checklistID := uuid.New().String()
	taskID := uuid.New().String()
	sarah := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, _ := newChecklistService(t, []string{sarah})

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM checklists").
		WillReturnRows(testutil.MockRows("id", "store_id", "template_id", "date", "deadline", "created_at").
			AddRow(checklistID, storeID, uuid.New().String(), now, nil, now))
	mockDB.Mock.ExpectQuery("FROM checklist_tasks").
		WillReturnRows(testutil.MockRows(taskColumns()...).
			AddRow(taskID, storeID, checklistID, "Trim brisket", nil, 0, domain.StatusPending,
				nil, nil, nil, nil, nil, now, now))
	mockDB.Mock.ExpectExec("UPDATE checklist_tasks SET assigned_to").
		WithArgs(taskID, sarah).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	err := svc.AssignTask(ctx, checklistID, taskID, sarah)
	require.NoError(t, err)

	mockDB.ExpectationsWereMet(t)
}

func TestAssignTaskRejectsUnknownStaff(t *testing.T) {
	storeID := uuid.New().String()
	actorID := uuid.New().String()
	checklistID := uuid.New().String()
	taskID := uuid.New().String()
	ctx := storectx.WithScope(context.Background(), storeID, actorID, "shift_leader")

	svc, mockDB, _ := newChecklistService(t, nil)

	now := time.Now().UTC()
	mockDB.ExpectStoreBegin(storeID)
	mockDB.Mock.ExpectQuery("FROM checklists").
		WillReturnRows(testutil.MockRows("id", "store_id", "template_id", "date", "deadline", "created_at").
			AddRow(checklistID, storeID, uuid.New().String(), now, nil, now))
	mockDB.Mock.ExpectQuery("FROM checklist_tasks").
		WillReturnRows(testutil.MockRows(taskColumns()...).
			AddRow(taskID, storeID, checklistID, "Trim brisket", nil, 0, domain.StatusPending,
				nil, nil, nil, nil, nil, now, now))
	mockDB.ExpectRollback()

	err := svc.AssignTask(ctx, checklistID, taskID, uuid.New().String())
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, "BAD_REQUEST", appErr.Code)

	mockDB.ExpectationsWereMet(t)
}
