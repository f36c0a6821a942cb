package dto

import "time"

// Виды переходов состояния здоровья ветки
const (
	TransitionBroken = "broken"
	TransitionFlaky  = "flaky"
	TransitionFixed  = "fixed"
)

// HealthTransitionDTO описывает переход состояния здоровья основной ветки:
// сборка сломала ветку, оказалась flaky или починила ее
type HealthTransitionDTO struct {
	Transition  string    `json:"transition"`
	BuildName   string    `json:"build_name"`
	BuildTypeID string    `json:"build_type_id"`
	Branch      string    `json:"branch"`
	BuildURL    string    `json:"build_url"`
	TaskID      int       `json:"task_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
