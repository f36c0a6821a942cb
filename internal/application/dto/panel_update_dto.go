package dto

import "time"

// PanelUpdateDTO описывает публикацию нового содержимого status panel.
// Отправляется live-подписчикам и в message broker после каждого обновления.
type PanelUpdateDTO struct {
	PanelID     int       `json:"panel_id"`
	ContentSize int       `json:"content_size"`
	Projects    []string  `json:"projects"`
	UpdatedAt   time.Time `json:"updated_at"`
}
