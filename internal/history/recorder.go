// Package history applies partial task updates and records one immutable
// history entry per field that changed.
package history

import (
	"time"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// Field names as they appear in history entries.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldAssignedTo  = "assignedTo"
	FieldPriority    = "priority"
	FieldDueDate     = "dueDate"
	FieldStatus      = "status"
)

// DateLayout is the canonical textual form of due dates in history entries.
const DateLayout = time.RFC3339

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	AssignedTo  *uuid.UUID
	Priority    *model.TaskPriority
	DueDate     *time.Time
	Status      *model.TaskStatus
}

// Empty reports whether the patch sets no field.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.AssignedTo == nil &&
		p.Priority == nil && p.DueDate == nil && p.Status == nil
}

// Apply sets every field of p whose textual value differs from the task's
// current one and appends a history entry for it. All entries of one call
// share updatedBy and at. The new entries are returned in field order.
func Apply(task *model.Task, p Patch, updatedBy uuid.UUID, at time.Time) []model.HistoryEntry {
	var entries []model.HistoryEntry
	record := func(field, oldValue, newValue string) bool {
		if oldValue == newValue {
			return false
		}
		entries = append(entries, model.HistoryEntry{
			TaskID:    task.ID,
			UpdatedBy: updatedBy,
			UpdatedAt: at,
			Field:     field,
			OldValue:  oldValue,
			NewValue:  newValue,
		})
		return true
	}

	if p.Title != nil && record(FieldTitle, task.Title, *p.Title) {
		task.Title = *p.Title
	}
	if p.Description != nil && record(FieldDescription, task.Description, *p.Description) {
		task.Description = *p.Description
	}
	if p.AssignedTo != nil && record(FieldAssignedTo, task.AssignedTo.String(), p.AssignedTo.String()) {
		task.AssignedTo = *p.AssignedTo
		task.Assignee = model.User{}
	}
	if p.Priority != nil && record(FieldPriority, string(task.Priority), string(*p.Priority)) {
		task.Priority = *p.Priority
	}
	if p.DueDate != nil && record(FieldDueDate, FormatDate(task.DueDate), FormatDate(*p.DueDate)) {
		task.DueDate = *p.DueDate
	}
	if p.Status != nil && record(FieldStatus, string(task.Status), string(*p.Status)) {
		task.Status = *p.Status
	}

	task.History = append(task.History, entries...)
	return entries
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
