package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskboard/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	Find(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Update(ctx context.Context, task *model.Task, entries []model.HistoryEntry, attachments []model.Attachment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ TaskRepositoryInterface = (*TaskRepository)(nil)

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// withRelations preloads the users shown next to a task.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Assignee").
		Preload("Creator").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("History.Updater")
}

// Create inserts the task together with its initial attachments.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}
		for i := range task.Attachments {
			task.Attachments[i].TaskID = task.ID
		}
		if len(task.Attachments) > 0 {
			if err := tx.Create(&task.Attachments).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a task with its related users, attachments and history.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := withRelations(r.db.WithContext(ctx)).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// Find lists the tasks matching filter, oldest first.
func (r *TaskRepository) Find(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	tasks := []model.Task{}
	if filter.AssignedTo != nil && len(filter.AssignedTo) == 0 {
		return tasks, nil
	}

	q := withRelations(r.db.WithContext(ctx))
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", string(*filter.Priority))
	}
	switch len(filter.AssignedTo) {
	case 0:
	case 1:
		q = q.Where("assigned_to = ?", filter.AssignedTo[0])
	default:
		q = q.Where("assigned_to IN ?", filter.AssignedTo)
	}

	if err := q.Order("created_at").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update saves the task's own columns and appends the new history entries
// and attachments in one transaction. Existing child rows are never rewritten.
// The write is not conditional: the last concurrent writer wins on fields.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task, entries []model.HistoryEntry, attachments []model.Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(task).Select("*").Omit(clause.Associations).Updates(task)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}

		if len(entries) > 0 {
			for i := range entries {
				entries[i].TaskID = task.ID
			}
			if err := tx.Omit(clause.Associations).Create(&entries).Error; err != nil {
				return err
			}
		}
		if len(attachments) > 0 {
			for i := range attachments {
				attachments[i].TaskID = task.ID
			}
			if err := tx.Create(&attachments).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a task by its ID, with its history and attachment rows.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.HistoryEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&model.Attachment{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Task{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		return nil
	})
}
