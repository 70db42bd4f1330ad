package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Task struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Title       string       `gorm:"not null"`
	Description string       `gorm:"not null"`
	Status      TaskStatus   `gorm:"type:varchar(20);not null;index"`
	Priority    TaskPriority `gorm:"type:varchar(10);not null;index"`
	DueDate     time.Time    `gorm:"not null"`
	AssignedTo  uuid.UUID    `gorm:"type:uuid;not null;index"`
	CreatedBy   uuid.UUID    `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Assignee    User           `gorm:"foreignKey:AssignedTo"`
	Creator     User           `gorm:"foreignKey:CreatedBy"`
	Attachments []Attachment   `gorm:"constraint:OnDelete:CASCADE"`
	History     []HistoryEntry `gorm:"constraint:OnDelete:CASCADE"`
}

func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Attachment is a file stored in object storage and linked to a task.
type Attachment struct {
	ID         uint      `gorm:"primaryKey"`
	TaskID     uuid.UUID `gorm:"type:uuid;not null;index"`
	URL        string    `gorm:"not null"`
	Filename   string    `gorm:"not null"`
	UploadedAt time.Time `gorm:"not null"`
}

func (Attachment) TableName() string { return "task_attachments" }

// HistoryEntry records one field transition of a task. Entries are never
// updated once written.
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey"`
	TaskID    uuid.UUID `gorm:"type:uuid;not null;index"`
	UpdatedBy uuid.UUID `gorm:"type:uuid;not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
	Field     string    `gorm:"not null"`
	OldValue  string
	NewValue  string

	Updater User `gorm:"foreignKey:UpdatedBy"`
}

func (HistoryEntry) TableName() string { return "task_history" }

// TaskFilter selects the tasks a caller may read.
type TaskFilter struct {
	Status   *TaskStatus
	Priority *TaskPriority
	// AssignedTo limits results to tasks assigned to one of the listed users.
	// A nil slice leaves assignment unrestricted; an empty slice matches nothing.
	AssignedTo []uuid.UUID
}

// Admits reports whether task satisfies the filter.
func (f TaskFilter) Admits(task *Task) bool {
	if f.Status != nil && task.Status != *f.Status {
		return false
	}
	if f.Priority != nil && task.Priority != *f.Priority {
		return false
	}
	return f.AssignedTo == nil || slices.Contains(f.AssignedTo, task.AssignedTo)
}
