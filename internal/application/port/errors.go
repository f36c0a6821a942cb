package port

import "errors"

// Общие ошибки, которые адаптеры Infrastructure возвращают портам
var (
	// ErrNotFound — запрошенный объект отсутствует во внешней системе
	ErrNotFound = errors.New("not found")

	// ErrConfigUnavailable — файл конфигурации сборок недоступен в репозитории
	ErrConfigUnavailable = errors.New("build configuration file unavailable")
)
