package service

import (
	"fmt"
	"net/url"

	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
)

// PanelEntry — одна строка таблицы status panel
type PanelEntry struct {
	DisplayName string
	ViewURL     string
	Status      valueobject.BuildStatus
	StatusText  string
}

// PanelSection — таблица одного проекта
type PanelSection struct {
	ProjectName string
	Entries     []PanelEntry
}

// PanelRenderer рендерит remarkup-таблицы status panel (Domain Service)
type PanelRenderer struct {
	badgeBaseURL string
	badgeLabel   string
	badgeLogo    string
}

// NewPanelRenderer создает renderer. badgeLogo может быть пустым —
// тогда параметр logo в badge URL не добавляется.
func NewPanelRenderer(badgeBaseURL, badgeLabel, badgeLogo string) *PanelRenderer {
	return &PanelRenderer{
		badgeBaseURL: badgeBaseURL,
		badgeLabel:   badgeLabel,
		badgeLogo:    badgeLogo,
	}
}

// RenderSection рендерит заголовок проекта и по строке на каждую сборку,
// с пустой строкой-разделителем после таблицы
func (r *PanelRenderer) RenderSection(section PanelSection) string {
	content := fmt.Sprintf("| %s | Status |\n|---|---|\n", section.ProjectName)
	for _, entry := range section.Entries {
		content += r.renderEntry(entry)
	}
	return content + "\n"
}

// RenderSections рендерит все секции в порядке первого появления проекта
func (r *PanelRenderer) RenderSections(sections []PanelSection) string {
	content := ""
	for _, section := range sections {
		content += r.RenderSection(section)
	}
	return content
}

func (r *PanelRenderer) renderEntry(entry PanelEntry) string {
	statusText := entry.StatusText
	if statusText == "" {
		statusText = entry.Status.String()
	}

	badge := r.BadgeURL(statusText, entry.Status.BadgeColor())

	name := entry.DisplayName
	if entry.ViewURL != "" {
		name = fmt.Sprintf("[[%s | %s]]", entry.ViewURL, entry.DisplayName)
	}

	return fmt.Sprintf("| %s | {image uri=\"%s\", alt=\"%s\"} |\n", name, badge, statusText)
}

// BadgeURL строит URL растрового статусного badge. Значения параметров
// экранируются (label и statusText содержат пробелы), порядок параметров
// фиксирован, чтобы повторная публикация одинакового состояния давала
// байт-в-байт одинаковый контент.
func (r *PanelRenderer) BadgeURL(message, color string) string {
	u := fmt.Sprintf("%s?label=%s&message=%s&color=%s",
		r.badgeBaseURL, url.QueryEscape(r.badgeLabel), url.QueryEscape(message), url.QueryEscape(color))
	if r.badgeLogo != "" {
		u += "&logo=" + url.QueryEscape(r.badgeLogo)
	}
	return u
}
