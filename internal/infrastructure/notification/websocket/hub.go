package websocket

import (
	"sync"

	"github.com/dreschagin/ci-buildbot/internal/application/dto"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// Hub управляет WebSocket клиентами и рассылает им live-обновления панели
// и переходы состояния здоровья ветки
// Реализует интерфейс port.PanelNotifier
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для broadcast обновлений панели
	broadcastPanel chan *dto.PanelUpdateDTO

	// Канал для broadcast переходов здоровья ветки
	broadcastHealth chan *dto.HealthTransitionDTO

	// Канал для регистрации клиентов
	register chan *Client

	// Канал для удаления клиентов
	unregister chan *Client

	// Mutex для защиты clients map
	mu sync.RWMutex

	// Logger
	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:         make(map[*Client]bool),
		broadcastPanel:  make(chan *dto.PanelUpdateDTO, 256),
		broadcastHealth: make(chan *dto.HealthTransitionDTO, 256),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		logger:          logger,
	}
}

// Run запускает hub (должен быть запущен в отдельной goroutine)
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case update := <-h.broadcastPanel:
			// Полный Lock: рассылка может вытеснять отставших клиентов,
			// а это запись в clients map
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- Message{Type: "panel_update", Data: update}:
					// Сообщение отправлено
				default:
					// Канал клиента заполнен, закрываем соединение
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Client channel full, disconnected")
				}
			}
			h.mu.Unlock()

		case transition := <-h.broadcastHealth:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- Message{Type: "health_transition", Data: transition}:
					// Переход отправлен
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Health transition broadcasted", "transition", transition.Transition)
		}
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastPanelUpdate отправляет обновление панели всем клиентам (реализация port.PanelNotifier)
func (h *Hub) BroadcastPanelUpdate(update *dto.PanelUpdateDTO) {
	select {
	case h.broadcastPanel <- update:
		// Обновление отправлено в канал
	default:
		h.logger.Warn("Broadcast channel full, dropping panel update")
	}
}

// BroadcastHealthTransition отправляет переход состояния всем клиентам (реализация port.PanelNotifier)
func (h *Hub) BroadcastHealthTransition(transition *dto.HealthTransitionDTO) {
	select {
	case h.broadcastHealth <- transition:
		// Переход отправлен в канал
	default:
		h.logger.Warn("Broadcast channel full, dropping health transition")
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.PanelNotifier)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"` // "panel_update" или "health_transition"
	Data interface{} `json:"data"`
}
