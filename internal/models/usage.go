package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// MessageTypeUsageStatistics is the discriminator value clients use to
// recognize the usage record appended after a run's event stream.
const MessageTypeUsageStatistics = "usage_statistics"

// UsageStatistics is the aggregate token accounting for one run. It is the
// only record type permitted as a usage task result and is streamed to the
// client as the final data frame before the terminal marker.
type UsageStatistics struct {
	MessageType      string `json:"message_type"`
	CompletionTokens int    `json:"completion_tokens"`
	PromptTokens     int    `json:"prompt_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	StepCount        int    `json:"step_count"`
	RunID            string `json:"run_id,omitempty"`
}

// NewUsageStatistics creates an empty usage record for a run.
func NewUsageStatistics(runID string) *UsageStatistics {
	return &UsageStatistics{
		MessageType: MessageTypeUsageStatistics,
		RunID:       runID,
	}
}

// Add folds one step's token counts into the aggregate.
func (u *UsageStatistics) Add(promptTokens, completionTokens int) {
	u.PromptTokens += promptTokens
	u.CompletionTokens += completionTokens
	u.TotalTokens += promptTokens + completionTokens
	u.StepCount++
}

// StreamFields returns the canonical field mapping serialized into the SSE
// data frame for this record.
func (u *UsageStatistics) StreamFields() map[string]any {
	return map[string]any{
		"message_type":      u.MessageType,
		"completion_tokens": u.CompletionTokens,
		"prompt_tokens":     u.PromptTokens,
		"total_tokens":      u.TotalTokens,
		"step_count":        u.StepCount,
		"run_id":            u.RunID,
	}
}

// Metadata is a JSON column holding free-form key/values on usage rows.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Metadata: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

func (Metadata) GormDataType() string {
	return "json"
}

func (Metadata) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	case "sqlite":
		return "TEXT"
	default:
		return "TEXT"
	}
}

// RunUsage is the persisted per-run usage row.
type RunUsage struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID            string    `gorm:"size:100;index;default:''" json:"run_id"`
	RequestID        string    `gorm:"size:100;index;default:''" json:"request_id,omitzero"`
	UserID           string    `gorm:"size:255;index;default:''" json:"user_id,omitempty"`
	Provider         string    `gorm:"size:50;default:''" json:"provider"`
	Model            string    `gorm:"size:100;default:''" json:"model"`
	PromptTokens     int       `gorm:"default:0" json:"prompt_tokens"`
	CompletionTokens int       `gorm:"default:0" json:"completion_tokens"`
	TotalTokens      int       `gorm:"default:0" json:"total_tokens"`
	StepCount        int       `gorm:"default:0" json:"step_count"`
	StatusCode       int       `gorm:"default:0" json:"status_code"`
	LatencyMs        int       `gorm:"default:0" json:"latency_ms"`
	ErrorMessage     string    `gorm:"type:text;default:''" json:"error_message,omitzero"`
	Metadata         Metadata  `json:"metadata"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (RunUsage) TableName() string {
	return "run_usages"
}

// RecordUsageParams carries everything needed to persist one RunUsage row.
type RecordUsageParams struct {
	RunID            string
	RequestID        string
	UserID           string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	StepCount        int
	StatusCode       int
	LatencyMs        int
	ErrorMessage     string
	Metadata         Metadata
}

// UsageStats aggregates persisted runs for reporting endpoints.
type UsageStats struct {
	TotalRuns    int64   `json:"total_runs"`
	TotalTokens  int64   `json:"total_tokens"`
	SuccessRuns  int64   `json:"success_runs"`
	FailedRuns   int64   `json:"failed_runs"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// UsageByPeriod groups aggregate stats under a period label (day, week, ...).
type UsageByPeriod struct {
	Period string     `json:"period"`
	Stats  UsageStats `json:"stats"`
}
