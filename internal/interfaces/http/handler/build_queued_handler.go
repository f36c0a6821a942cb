package handler

import (
	"net/http"
	"strconv"

	"github.com/dreschagin/ci-buildbot/internal/application/dto"
	"github.com/dreschagin/ci-buildbot/internal/application/usecase"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// BuildQueuedHandler принимает уведомление о постановке сборки в очередь
// и заранее привязывает ссылку на нее к build target, чтобы review UI
// показывал ссылку еще до завершения сборки
type BuildQueuedHandler struct {
	link   *usecase.SyncBuildLinkUseCase
	logger *logger.Logger
}

// NewBuildQueuedHandler создает новый handler
func NewBuildQueuedHandler(link *usecase.SyncBuildLinkUseCase, log *logger.Logger) *BuildQueuedHandler {
	return &BuildQueuedHandler{
		link:   link,
		logger: log,
	}
}

// HandleQueued обрабатывает POST /buildQueued (параметры в query string)
func (h *BuildQueuedHandler) HandleQueued(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	buildID, err := strconv.Atoi(query.Get("buildId"))
	if err != nil || buildID <= 0 {
		http.Error(w, "Invalid buildId", http.StatusBadRequest)
		return
	}

	queued := dto.BuildQueuedDTO{
		BuildID:         buildID,
		BuildName:       query.Get("buildName"),
		BuildTargetPHID: query.Get("targetPHID"),
	}
	if queued.BuildName == "" || queued.BuildTargetPHID == "" {
		http.Error(w, "Missing buildName or targetPHID", http.StatusBadRequest)
		return
	}

	if err := h.link.Execute(r.Context(), queued.BuildTargetPHID, queued.BuildName, queued.BuildID); err != nil {
		h.logger.Error("Queued build link sync failed", err, "build_id", queued.BuildID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
