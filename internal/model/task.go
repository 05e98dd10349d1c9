package model

import "time"

type Task struct {
	ID      string     `json:"id"`
	Text    string     `json:"text"`
	Date    string     `json:"date,omitempty"`
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
}

type CompletedTask struct {
	Task
	CompletedAt time.Time `json:"completedAt"`
}

// Notice is a dismissible, non-fatal message for the UI.
type Notice struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
