package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/access"
	"taskboard/internal/apperr"
	"taskboard/internal/history"
	"taskboard/internal/middleware"
	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserLookup resolves assignees.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type TaskHandler struct {
	tasks    repository.TaskRepositoryInterface
	users    UserLookup
	filters  *access.FilterBuilder
	uploader *storage.Uploader
	now      func() time.Time
}

func NewTaskHandler(
	tasks repository.TaskRepositoryInterface,
	users UserLookup,
	filters *access.FilterBuilder,
	uploader *storage.Uploader,
) *TaskHandler {
	registerValidators()
	return &TaskHandler{
		tasks:    tasks,
		users:    users,
		filters:  filters,
		uploader: uploader,
		now:      time.Now,
	}
}

// CreateTaskRequest представляет запрос на создание задачи (JSON или multipart)
type CreateTaskRequest struct {
	Title       string `form:"title" json:"title" binding:"required"`
	Description string `form:"description" json:"description" binding:"required"`
	AssignedTo  string `form:"assignedTo" json:"assignedTo" binding:"required,uuid"`
	Status      string `form:"status" json:"status" binding:"required,oneof=pending in-progress completed"`
	Priority    string `form:"priority" json:"priority" binding:"required,oneof=low medium high"`
	DueDate     string `form:"dueDate" json:"dueDate" binding:"required,duedate"`
}

// UpdateTaskRequest представляет частичное обновление; отсутствующие поля не меняются
type UpdateTaskRequest struct {
	Title       *string `form:"title" json:"title"`
	Description *string `form:"description" json:"description"`
	AssignedTo  *string `form:"assignedTo" json:"assignedTo" binding:"omitempty,uuid"`
	Priority    *string `form:"priority" json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *string `form:"dueDate" json:"dueDate" binding:"omitempty,duedate"`
	Status      *string `form:"status" json:"status" binding:"omitempty,oneof=pending in-progress completed"`
}

var taskMessages = map[string]string{
	"Title.required":       "Title is required",
	"Description.required": "Description is required",
	"AssignedTo.required":  "AssignedTo is required",
	"AssignedTo.uuid":      "Invalid assignedTo",
	"Status.required":      "Status is required",
	"Status.oneof":         "Invalid status",
	"Priority.required":    "Priority is required",
	"Priority.oneof":       "Invalid priority",
	"DueDate.required":     "Due Date is required",
	"DueDate.duedate":      "Invalid due date",
}

func (r *CreateTaskRequest) validateText() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Title) == "" {
		fields["title"] = taskMessages["Title.required"]
	}
	if strings.TrimSpace(r.Description) == "" {
		fields["description"] = taskMessages["Description.required"]
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed", fields)
	}
	return nil
}

func (r *UpdateTaskRequest) patch() (history.Patch, error) {
	var p history.Patch
	fields := map[string]string{}

	if r.Title != nil {
		if title := strings.TrimSpace(*r.Title); title == "" {
			fields["title"] = taskMessages["Title.required"]
		} else {
			p.Title = &title
		}
	}
	if r.Description != nil {
		if description := strings.TrimSpace(*r.Description); description == "" {
			fields["description"] = taskMessages["Description.required"]
		} else {
			p.Description = &description
		}
	}
	if len(fields) > 0 {
		return p, apperr.Validation("Validation failed", fields)
	}

	if r.AssignedTo != nil {
		id := uuid.MustParse(*r.AssignedTo)
		p.AssignedTo = &id
	}
	if r.Priority != nil {
		priority := model.TaskPriority(*r.Priority)
		p.Priority = &priority
	}
	if r.DueDate != nil {
		due, _ := parseDueDate(*r.DueDate)
		p.DueDate = &due
	}
	if r.Status != nil {
		status := model.TaskStatus(*r.Status)
		p.Status = &status
	}
	return p, nil
}

func actorOrAbort(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondError(c, apperr.Unauthorized("Unauthorized: Invalid token"))
	}
	return actor, ok
}

// taskID parses the :id parameter. A malformed id cannot name a task.
func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.NotFound("Task not found"))
		return uuid.Nil, false
	}
	return id, true
}

// attachmentFiles returns the files sent in the "attachments" form field.
// A request that is not multipart carries no files.
func attachmentFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, bindingError(err, taskMessages)
	}
	return append(form.File["attachments"], form.File["attachments[]"]...), nil
}

func (h *TaskHandler) requireAssignee(ctx context.Context, id uuid.UUID) error {
	if _, err := h.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("Assigned user not found")
		}
		return apperr.Internal("Failed to retrieve user", err)
	}
	return nil
}

func (h *TaskHandler) getTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := h.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, apperr.NotFound("Task not found")
		}
		return nil, apperr.Internal("Failed to retrieve task", err)
	}
	return task, nil
}

// Create создает новую задачу от имени текущего пользователя
func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, bindingError(err, taskMessages))
		return
	}
	if err := req.validateText(); err != nil {
		respondError(c, err)
		return
	}

	assignee := uuid.MustParse(req.AssignedTo)
	if err := h.requireAssignee(c.Request.Context(), assignee); err != nil {
		respondError(c, err)
		return
	}
	due, _ := parseDueDate(req.DueDate)

	files, err := attachmentFiles(c)
	if err != nil {
		respondError(c, err)
		return
	}
	attachments, err := h.uploader.UploadAll(c.Request.Context(), files)
	if err != nil {
		respondError(c, err)
		return
	}

	task := &model.Task{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      model.TaskStatus(req.Status),
		Priority:    model.TaskPriority(req.Priority),
		DueDate:     due,
		AssignedTo:  assignee,
		CreatedBy:   actor.ID,
		Attachments: attachments,
	}
	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		h.uploader.Discard(attachments)
		respondError(c, apperr.Internal("Failed to create task", err))
		return
	}

	created, err := h.getTask(c.Request.Context(), task.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(created))
}

// List возвращает задачи, видимые текущему пользователю
func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	_, myTasks := c.GetQuery("myTasks")
	filter, err := h.filters.Build(c.Request.Context(), actor, access.Query{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		AssignedTo: c.Query("assignedTo"),
		MyTasks:    myTasks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	slog.Debug("filter applied",
		"user_id", actor.ID,
		"role", actor.Role,
		"status", filter.Status,
		"priority", filter.Priority,
		"assigned_to", filter.AssignedTo)

	tasks, err := h.tasks.Find(c.Request.Context(), filter)
	if err != nil {
		respondError(c, apperr.Internal("Failed to retrieve tasks", err))
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, newTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetByID возвращает задачу, если она видна текущему пользователю
func (h *TaskHandler) GetByID(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	filter, err := h.filters.Build(c.Request.Context(), actor, access.Query{})
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.getTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !filter.Admits(task) {
		respondError(c, apperr.NotFound("Task not found"))
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

// Update применяет частичное обновление и дописывает историю изменений.
// Параметр запроса status меняет только статус; поля тела запроса в этом
// случае не читаются, но вложения принимаются. Запись не условная: при одновременных правках поля
// перезаписывает последний.
func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var p history.Patch
	if status, set := c.GetQuery("status"); set {
		s := model.TaskStatus(status)
		if !s.Valid() {
			respondError(c, apperr.Validation("Invalid status", map[string]string{"status": "Invalid status"}))
			return
		}
		p.Status = &s
	} else if c.Request.ContentLength != 0 {
		var req UpdateTaskRequest
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, bindingError(err, taskMessages))
			return
		}
		var err error
		if p, err = req.patch(); err != nil {
			respondError(c, err)
			return
		}
	}

	files, err := attachmentFiles(c)
	if err != nil {
		respondError(c, err)
		return
	}

	task, err := h.getTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if p.Empty() && len(files) == 0 {
		c.JSON(http.StatusOK, newTaskResponse(task))
		return
	}
	if p.AssignedTo != nil && *p.AssignedTo != task.AssignedTo {
		if err := h.requireAssignee(c.Request.Context(), *p.AssignedTo); err != nil {
			respondError(c, err)
			return
		}
	}

	attachments, err := h.uploader.UploadAll(c.Request.Context(), files)
	if err != nil {
		respondError(c, err)
		return
	}

	entries := history.Apply(task, p, actor.ID, h.now().UTC())
	if len(entries) == 0 && len(attachments) == 0 {
		c.JSON(http.StatusOK, newTaskResponse(task))
		return
	}

	if err := h.tasks.Update(c.Request.Context(), task, entries, attachments); err != nil {
		h.uploader.Discard(attachments)
		if errors.Is(err, repository.ErrTaskNotFound) {
			respondError(c, apperr.NotFound("Task not found"))
			return
		}
		respondError(c, apperr.Internal("Failed to update task", err))
		return
	}

	updated, err := h.getTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(updated))
}

// Delete удаляет задачу. Разрешено автору задачи и администратору.
func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.getTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if actor.Role != model.RoleAdmin && task.CreatedBy != actor.ID {
		respondError(c, apperr.Forbidden("Not authorized to delete this task"))
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			respondError(c, apperr.NotFound("Task not found"))
			return
		}
		respondError(c, apperr.Internal("Failed to delete task", err))
		return
	}
	h.uploader.Discard(task.Attachments)

	c.JSON(http.StatusOK, MessageResponse{Message: "Task removed"})
}
