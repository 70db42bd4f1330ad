package handler

import (
	"time"

	"taskboard/internal/model"
)

// UserSummary is the part of a user shown next to a task. Role is only
// filled in for the assignee.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// UserResponse представляет пользователя без пароля
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type UsersResponse struct {
	Success bool           `json:"success"`
	Users   []UserResponse `json:"users"`
}

// AuthResponse возвращается при регистрации и входе
type AuthResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

type AttachmentResponse struct {
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type ChangeResponse struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

type HistoryResponse struct {
	UpdatedBy UserSummary    `json:"updatedBy"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Changes   ChangeResponse `json:"changes"`
}

// TaskResponse представляет ответ с данными задачи
type TaskResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	Priority    string               `json:"priority"`
	DueDate     time.Time            `json:"dueDate"`
	AssignedTo  UserSummary          `json:"assignedTo"`
	CreatedBy   UserSummary          `json:"createdBy"`
	Attachments []AttachmentResponse `json:"attachments"`
	History     []HistoryResponse    `json:"history"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func newUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func summarize(u *model.User) UserSummary {
	return UserSummary{ID: u.ID.String(), Name: u.Name, Email: u.Email}
}

func newTaskResponse(t *model.Task) TaskResponse {
	assignee := summarize(&t.Assignee)
	assignee.Role = string(t.Assignee.Role)

	attachments := make([]AttachmentResponse, 0, len(t.Attachments))
	for _, a := range t.Attachments {
		attachments = append(attachments, AttachmentResponse{
			URL:        a.URL,
			Filename:   a.Filename,
			UploadedAt: a.UploadedAt,
		})
	}

	history := make([]HistoryResponse, 0, len(t.History))
	for _, h := range t.History {
		history = append(history, HistoryResponse{
			UpdatedBy: summarize(&h.Updater),
			UpdatedAt: h.UpdatedAt,
			Changes: ChangeResponse{
				Field:    h.Field,
				OldValue: h.OldValue,
				NewValue: h.NewValue,
			},
		})
	}

	return TaskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		AssignedTo:  assignee,
		CreatedBy:   summarize(&t.Creator),
		Attachments: attachments,
		History:     history,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
