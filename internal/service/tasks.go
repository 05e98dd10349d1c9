package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "focustimer/backend/internal/errors"
	"focustimer/backend/internal/model"
	"focustimer/backend/internal/stream"
)

type AddTaskInput struct {
	Text    string     `json:"text"`
	Date    string     `json:"date"`
	StartAt *time.Time `json:"startAt"`
	EndAt   *time.Time `json:"endAt"`
}

func (s *FocusService) ListTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Task(nil), s.tasks...)
}

func (s *FocusService) ListCompleted() []model.CompletedTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CompletedTask(nil), s.completed...)
}

func (s *FocusService) AddTask(input AddTaskInput) (*model.Task, *apperrors.APIError) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, apperrors.BadRequest("invalid_task", "task text is required")
	}
	if input.StartAt != nil && input.EndAt != nil && input.EndAt.Before(*input.StartAt) {
		return nil, apperrors.BadRequest("invalid_task", "task must end after it starts")
	}

	task := model.Task{
		ID:      uuid.NewString(),
		Text:    text,
		Date:    input.Date,
		StartAt: input.StartAt,
		EndAt:   input.EndAt,
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	s.scheduleSave()
	return &task, nil
}

// DeleteTask removes a pending task. A session already running for it keeps
// running under the name it started with.
func (s *FocusService) DeleteTask(id string) *apperrors.APIError {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	index := -1
	for i, task := range s.tasks {
		if task.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		s.mu.Unlock()
		return apperrors.NotFound("task_not_found", "task not found")
	}
	s.tasks = append(s.tasks[:index:index], s.tasks[index+1:]...)
	s.mu.Unlock()

	s.scheduleSave()
	return nil
}

func (s *FocusService) Notices() []model.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notice(nil), s.notices...)
}

func (s *FocusService) DismissNotice(id string) *apperrors.APIError {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, notice := range s.notices {
		if notice.ID == id {
			s.notices = append(s.notices[:i:i], s.notices[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("notice_not_found", "notice not found")
}

func (s *FocusService) findTask(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}

func (s *FocusService) markCompleted(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, task := range s.tasks {
		if task.ID != id {
			continue
		}
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
		s.completed = append(s.completed, model.CompletedTask{Task: task, CompletedAt: at})
		return
	}
}

func (s *FocusService) addNotice(kind, message string) {
	notice := model.Notice{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: s.clock.Now(),
	}
	s.mu.Lock()
	s.notices = append(s.notices, notice)
	s.mu.Unlock()

	s.hub.Publish(stream.Event{Type: stream.EventNotice, Data: notice, At: notice.CreatedAt})
}
