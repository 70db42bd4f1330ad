// Package access decides which tasks a caller may read.
package access

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"taskboard/internal/apperr"
	"taskboard/internal/model"
)

// UserDirectory lists the ids of accounts holding a role.
type UserDirectory interface {
	ListIDsByRole(ctx context.Context, role model.Role) ([]uuid.UUID, error)
}

// Query holds the optional list parameters. Fields are empty when absent;
// MyTasks reports presence of the parameter, whatever its value.
type Query struct {
	Status     string
	Priority   string
	AssignedTo string
	MyTasks    bool
}

type FilterBuilder struct {
	users UserDirectory
}

func NewFilterBuilder(users UserDirectory) *FilterBuilder {
	return &FilterBuilder{users: users}
}

// Build returns the predicate selecting the tasks actor may read.
//
// myTasks scopes any role to its own tasks. Otherwise users see their own
// tasks, managers see tasks of plain users (optionally one of them), and
// admins see everything (optionally one assignee). Status and priority
// narrow the result in every case. Unknown roles are refused.
func (b *FilterBuilder) Build(ctx context.Context, actor model.Actor, q Query) (model.TaskFilter, error) {
	var filter model.TaskFilter
	if actor.ID == uuid.Nil {
		return filter, apperr.Unauthorized("Unauthorized: Invalid token")
	}

	if q.Status != "" {
		s := model.TaskStatus(q.Status)
		if !s.Valid() {
			return filter, apperr.Validation("Invalid status", map[string]string{"status": "Invalid status"})
		}
		filter.Status = &s
	}
	if q.Priority != "" {
		p := model.TaskPriority(q.Priority)
		if !p.Valid() {
			return filter, apperr.Validation("Invalid priority", map[string]string{"priority": "Invalid priority"})
		}
		filter.Priority = &p
	}

	if q.MyTasks {
		filter.AssignedTo = []uuid.UUID{actor.ID}
		return filter, nil
	}

	switch actor.Role {
	case model.RoleUser:
		filter.AssignedTo = []uuid.UUID{actor.ID}

	case model.RoleManager:
		ids, err := b.users.ListIDsByRole(ctx, model.RoleUser)
		if err != nil {
			return filter, apperr.Internal("Server Error", fmt.Errorf("list plain users: %w", err))
		}
		if q.AssignedTo == "" {
			if ids == nil {
				ids = []uuid.UUID{}
			}
			filter.AssignedTo = ids
			break
		}
		id, err := uuid.Parse(q.AssignedTo)
		if err != nil || !slices.Contains(ids, id) {
			return filter, apperr.Forbidden("Managers can only filter tasks assigned to users")
		}
		filter.AssignedTo = []uuid.UUID{id}

	case model.RoleAdmin:
		if q.AssignedTo != "" {
			id, err := uuid.Parse(q.AssignedTo)
			if err != nil {
				return filter, apperr.Validation("Invalid assignedTo", map[string]string{"assignedTo": "Invalid assignedTo"})
			}
			filter.AssignedTo = []uuid.UUID{id}
		}

	default:
		return filter, apperr.Forbidden("Access Denied")
	}

	return filter, nil
}
