package chatapi

import (
	"encoding/json"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/jobx"
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Question string `json:"question"`
	LLMType  string `json:"llm_type,omitempty"`
}

type ChatResponse struct {
	Response     string `json:"response"`
	Success      bool   `json:"success"`
	Warning      string `json:"warning,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	RequestID    string `json:"request_id"`
}

// TaskRequest is the body of POST /api/v1/chat/tasks. TaskID overrides the
// caller identity as the task's history namespace.
type TaskRequest struct {
	TaskID  string `json:"task_id,omitempty"`
	Content string `json:"content"`
	LLMType string `json:"llm_type,omitempty"`
}

type TaskAccepted struct {
	JobID string `json:"job_id"`
}

type TaskStatus struct {
	JobID     string          `json:"job_id"`
	Status    jobx.JobStatus  `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type SessionResponse struct {
	Identity     string    `json:"identity"`
	Exists       bool      `json:"exists"`
	MessageCount int       `json:"message_count"`
	LastActiveAt time.Time `json:"last_active_at,omitempty"`
	AgeHours     float64   `json:"age_hours"`
}

type CacheStatsResponse struct {
	Total      int            `json:"total"`
	ByKind     map[string]int `json:"by_kind"`
	MaxEntries int            `json:"max_entries"`
}
