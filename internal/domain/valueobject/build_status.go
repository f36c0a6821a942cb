package valueobject

import (
	"fmt"
	"strings"
)

// BuildStatus — результат сборки, который сообщает CI сервер (Value Object)
// Иммутабельный объект
type BuildStatus string

const (
	StatusSuccess BuildStatus = "success"
	StatusFailure BuildStatus = "failure"
	StatusRunning BuildStatus = "running"
	StatusUnknown BuildStatus = "unknown"
)

// ParseBuildStatus нормализует строку от webhook в BuildStatus
func ParseBuildStatus(raw string) BuildStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success":
		return StatusSuccess
	case "failure":
		return StatusFailure
	case "running":
		return StatusRunning
	default:
		return StatusUnknown
	}
}

// Validate проверяет что статус известен
func (s BuildStatus) Validate() error {
	switch s {
	case StatusSuccess, StatusFailure, StatusRunning, StatusUnknown:
		return nil
	}
	return fmt.Errorf("invalid build status: %q", string(s))
}

// IsCompleted — завершилась ли сборка (running события не меняют health state)
func (s BuildStatus) IsCompleted() bool {
	return s == StatusSuccess || s == StatusFailure
}

// BadgeColor возвращает цвет статусного badge на панели
func (s BuildStatus) BadgeColor() string {
	switch s {
	case StatusSuccess:
		return "brightgreen"
	case StatusUnknown:
		return "lightgrey"
	default:
		return "red"
	}
}

func (s BuildStatus) String() string {
	return string(s)
}
