package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskboard/internal/history"
	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/testutil"
)

func newTask(creator, assignee *model.User, status model.TaskStatus, priority model.TaskPriority) *model.Task {
	return &model.Task{
		Title:       "Write report",
		Description: "Quarterly numbers",
		Status:      status,
		Priority:    priority,
		DueDate:     time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		AssignedTo:  assignee.ID,
		CreatedBy:   creator.ID,
	}
}

type taskFixture struct {
	db       *gorm.DB
	repo     *repository.TaskRepository
	manager  *model.User
	alice    *model.User
	bob      *model.User
	aliceJob *model.Task
	bobJob   *model.Task
}

func setupTasks(t *testing.T) taskFixture {
	db := testutil.NewDB(t)
	f := taskFixture{
		db:      db,
		repo:    repository.NewTaskRepository(db),
		manager: testutil.CreateUser(t, db, "manager", model.RoleManager),
		alice:   testutil.CreateUser(t, db, "alice", model.RoleUser),
		bob:     testutil.CreateUser(t, db, "bob", model.RoleUser),
	}
	f.aliceJob = newTask(f.manager, f.alice, model.StatusPending, model.PriorityHigh)
	f.bobJob = newTask(f.manager, f.bob, model.StatusCompleted, model.PriorityLow)
	require.NoError(t, f.repo.Create(context.Background(), f.aliceJob))
	require.NoError(t, f.repo.Create(context.Background(), f.bobJob))
	return f
}

func taskIDs(tasks []model.Task) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func TestTaskRepository_CreateWithAttachments(t *testing.T) {
	f := setupTasks(t)
	task := newTask(f.manager, f.alice, model.StatusPending, model.PriorityMedium)
	task.Attachments = []model.Attachment{
		{URL: "http://files/a.pdf", Filename: "a.pdf", UploadedAt: time.Now()},
		{URL: "http://files/b.png", Filename: "b.png", UploadedAt: time.Now()},
	}

	require.NoError(t, f.repo.Create(context.Background(), task))

	got, err := f.repo.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 2)
	assert.Equal(t, "a.pdf", got.Attachments[0].Filename)
	assert.Equal(t, "b.png", got.Attachments[1].Filename)
	assert.Equal(t, f.alice.Email, got.Assignee.Email)
	assert.Equal(t, f.manager.Email, got.Creator.Email)
	assert.Empty(t, got.History)
}

func TestTaskRepository_GetByID_NotFound(t *testing.T) {
	repo := repository.NewTaskRepository(testutil.NewDB(t))

	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, repository.ErrTaskNotFound)
}

func TestTaskRepository_Find(t *testing.T) {
	f := setupTasks(t)
	pending := model.StatusPending
	low := model.PriorityLow

	tests := []struct {
		name   string
		filter model.TaskFilter
		want   []uuid.UUID
	}{
		{"unrestricted", model.TaskFilter{}, []uuid.UUID{f.aliceJob.ID, f.bobJob.ID}},
		{"by status", model.TaskFilter{Status: &pending}, []uuid.UUID{f.aliceJob.ID}},
		{"by priority", model.TaskFilter{Priority: &low}, []uuid.UUID{f.bobJob.ID}},
		{"single assignee", model.TaskFilter{AssignedTo: []uuid.UUID{f.bob.ID}}, []uuid.UUID{f.bobJob.ID}},
		{"assignee set", model.TaskFilter{AssignedTo: []uuid.UUID{f.alice.ID, f.bob.ID}}, []uuid.UUID{f.aliceJob.ID, f.bobJob.ID}},
		{"empty assignee set", model.TaskFilter{AssignedTo: []uuid.UUID{}}, []uuid.UUID{}},
		{"status and assignee", model.TaskFilter{Status: &pending, AssignedTo: []uuid.UUID{f.bob.ID}}, []uuid.UUID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := f.repo.Find(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.NotNil(t, tasks)
			assert.ElementsMatch(t, tt.want, taskIDs(tasks))
		})
	}
}

func TestTaskRepository_UpdateAppendsHistory(t *testing.T) {
	f := setupTasks(t)
	ctx := context.Background()

	task, err := f.repo.GetByID(ctx, f.aliceJob.ID)
	require.NoError(t, err)

	title := "Write annual report"
	status := model.StatusInProgress
	entries := history.Apply(task, history.Patch{Title: &title, Status: &status}, f.alice.ID, time.Now())
	require.Len(t, entries, 2)
	require.NoError(t, f.repo.Update(ctx, task, entries, nil))

	task, err = f.repo.GetByID(ctx, f.aliceJob.ID)
	require.NoError(t, err)
	low := model.PriorityLow
	more := history.Apply(task, history.Patch{Priority: &low}, f.manager.ID, time.Now())
	attachment := []model.Attachment{{URL: "http://files/c.txt", Filename: "c.txt", UploadedAt: time.Now()}}
	require.NoError(t, f.repo.Update(ctx, task, more, attachment))

	got, err := f.repo.GetByID(ctx, f.aliceJob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write annual report", got.Title)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, model.PriorityLow, got.Priority)
	require.Len(t, got.History, 3)
	assert.Equal(t, history.FieldTitle, got.History[0].Field)
	assert.Equal(t, "Write report", got.History[0].OldValue)
	assert.Equal(t, f.alice.Email, got.History[0].Updater.Email)
	assert.Equal(t, history.FieldStatus, got.History[1].Field)
	assert.Equal(t, history.FieldPriority, got.History[2].Field)
	assert.Equal(t, f.manager.Email, got.History[2].Updater.Email)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "c.txt", got.Attachments[0].Filename)
}

func TestTaskRepository_UpdateMissingTask(t *testing.T) {
	f := setupTasks(t)
	ghost := newTask(f.manager, f.alice, model.StatusPending, model.PriorityLow)
	ghost.ID = uuid.New()

	err := f.repo.Update(context.Background(), ghost, nil, nil)

	assert.ErrorIs(t, err, repository.ErrTaskNotFound)
	_, err = f.repo.GetByID(context.Background(), ghost.ID)
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)
}

func TestTaskRepository_Delete(t *testing.T) {
	f := setupTasks(t)
	ctx := context.Background()

	task, err := f.repo.GetByID(ctx, f.aliceJob.ID)
	require.NoError(t, err)
	title := "Renamed"
	entries := history.Apply(task, history.Patch{Title: &title}, f.manager.ID, time.Now())
	attachment := []model.Attachment{{URL: "http://files/d.txt", Filename: "d.txt", UploadedAt: time.Now()}}
	require.NoError(t, f.repo.Update(ctx, task, entries, attachment))

	require.NoError(t, f.repo.Delete(ctx, f.aliceJob.ID))

	_, err = f.repo.GetByID(ctx, f.aliceJob.ID)
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)

	var historyRows, attachmentRows int64
	require.NoError(t, f.db.Model(&model.HistoryEntry{}).Where("task_id = ?", f.aliceJob.ID).Count(&historyRows).Error)
	require.NoError(t, f.db.Model(&model.Attachment{}).Where("task_id = ?", f.aliceJob.ID).Count(&attachmentRows).Error)
	assert.Zero(t, historyRows)
	assert.Zero(t, attachmentRows)

	remaining, err := f.repo.Find(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.bobJob.ID}, taskIDs(remaining))

	assert.ErrorIs(t, f.repo.Delete(ctx, f.aliceJob.ID), repository.ErrTaskNotFound)
}
