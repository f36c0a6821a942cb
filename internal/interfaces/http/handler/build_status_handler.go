package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dreschagin/ci-buildbot/internal/application/dto"
	"github.com/dreschagin/ci-buildbot/internal/application/usecase"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// BuildStatusHandler принимает webhook о завершении сборки
type BuildStatusHandler struct {
	completion *usecase.HandleBuildCompletionUseCase
	logger     *logger.Logger
}

// NewBuildStatusHandler создает новый handler
func NewBuildStatusHandler(completion *usecase.HandleBuildCompletionUseCase, log *logger.Logger) *BuildStatusHandler {
	return &BuildStatusHandler{
		completion: completion,
		logger:     log,
	}
}

// HandleStatus обрабатывает POST /status.
// Контракт: 200 успех, 415 нечитаемый payload, 400 неразрешенные
// placeholder'ы, 500 внутренний сбой
func (h *BuildStatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload dto.BuildEventDTO
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("Unparseable build status payload", "error", err.Error())
		http.Error(w, "Unparseable payload", http.StatusUnsupportedMediaType)
		return
	}

	event, err := payload.ToEntity()
	if err != nil {
		h.logger.Warn("Invalid build status payload", "error", err.Error())
		http.Error(w, "Unparseable payload", http.StatusUnsupportedMediaType)
		return
	}

	if err := h.completion.Execute(r.Context(), event); err != nil {
		if errors.Is(err, usecase.ErrUnresolvedEvent) {
			http.Error(w, "Unresolved placeholder identifiers", http.StatusBadRequest)
			return
		}
		h.logger.Error("Build event processing failed", err,
			"build_id", payload.BuildID,
			"build_type_id", payload.BuildTypeID,
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
