package port

import "github.com/dreschagin/ci-buildbot/internal/application/dto"

// PanelNotifier определяет интерфейс для live-уведомлений (Port)
// Реализация будет в Infrastructure слое (WebSocket Hub)
type PanelNotifier interface {
	// BroadcastPanelUpdate отправляет обновление панели всем подключенным клиентам
	BroadcastPanelUpdate(update *dto.PanelUpdateDTO)

	// BroadcastHealthTransition отправляет переход состояния ветки всем клиентам
	BroadcastHealthTransition(transition *dto.HealthTransitionDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
