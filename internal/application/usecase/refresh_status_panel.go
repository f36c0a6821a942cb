package usecase

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreschagin/ci-buildbot/internal/application/dto"
	"github.com/dreschagin/ci-buildbot/internal/application/port"
	"github.com/dreschagin/ci-buildbot/internal/domain/entity"
	"github.com/dreschagin/ci-buildbot/internal/domain/service"
	"github.com/dreschagin/ci-buildbot/internal/domain/valueobject"
	"github.com/dreschagin/ci-buildbot/pkg/logger"
)

// panelConfigEntry — одна сборка из внешнего файла конфигураций,
// в порядке объявления в файле
type panelConfigEntry struct {
	Name   string
	Hidden bool
}

// RefreshStatusPanelUseCase пересобирает status panel с нуля на каждом
// завершении сборки: свежий конфиг, свежая карта ассоциаций, полная
// перезапись контента панели. Никакого состояния между проходами.
type RefreshStatusPanelUseCase struct {
	ci             port.CIServer
	review         port.ReviewTracker
	legacy         port.LegacyCI
	renderer       *service.PanelRenderer
	legacyRenderer *service.PanelRenderer
	logger         *logger.Logger

	configFilePath string
	panelID        int
	primaryBranch  string
	fallbackGroup  string
	legacyRepo     string
	legacyBranch   string
	legacyLabel    string
	legacyBuildURL string
}

// RefreshStatusPanelParams — настройки аггрегатора панели
type RefreshStatusPanelParams struct {
	ConfigFilePath string
	PanelID        int
	PrimaryBranch  string
	FallbackGroup  string
	LegacyRepo     string
	LegacyBranch   string
	LegacyLabel    string
	LegacyBuildURL string
}

// NewRefreshStatusPanelUseCase создает новый use case
func NewRefreshStatusPanelUseCase(
	ci port.CIServer,
	review port.ReviewTracker,
	legacy port.LegacyCI,
	renderer *service.PanelRenderer,
	legacyRenderer *service.PanelRenderer,
	params RefreshStatusPanelParams,
	log *logger.Logger,
) *RefreshStatusPanelUseCase {
	return &RefreshStatusPanelUseCase{
		ci:             ci,
		review:         review,
		legacy:         legacy,
		renderer:       renderer,
		legacyRenderer: legacyRenderer,
		logger:         log,
		configFilePath: params.ConfigFilePath,
		panelID:        params.PanelID,
		primaryBranch:  params.PrimaryBranch,
		fallbackGroup:  params.FallbackGroup,
		legacyRepo:     params.LegacyRepo,
		legacyBranch:   params.LegacyBranch,
		legacyLabel:    params.LegacyLabel,
		legacyBuildURL: params.LegacyBuildURL,
	}
}

// Execute перестраивает и публикует панель. event — сборка, завершение
// которой запустило проход: ее статус берется из свежего build info,
// остальные строки используют "последнюю известную" сборку.
func (uc *RefreshStatusPanelUseCase) Execute(ctx context.Context, event *entity.BuildEvent) (*dto.PanelUpdateDTO, error) {
	// 1. Свежий конфиг: авторитетный источник мог измениться между событиями
	raw, err := uc.review.GetFileContent(ctx, uc.configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch panel config: %w", err)
	}

	entries, err := parseBuildConfigurations(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse panel config: %w", err)
	}

	// 2. Свежая карта ассоциаций: конфигурации добавляются и удаляются
	associated, err := uc.ci.AssociateConfigurationNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to associate configuration names: %w", err)
	}

	// 3. Блок legacy CI рендерится первым, безусловно
	content := uc.legacyRenderer.RenderSection(uc.legacySection(ctx))

	// 4-5. Секции по проектам: порядок первого появления проекта,
	// внутри проекта порядок конфига
	sections := uc.buildSections(ctx, event, entries, associated)
	content += uc.renderer.RenderSections(sections)

	// 6. Полная перезапись: идемпотентно и не боится пропущенных проходов
	if err := uc.review.SetPanelContent(ctx, uc.panelID, content); err != nil {
		return nil, fmt.Errorf("failed to publish status panel: %w", err)
	}

	projects := make([]string, 0, len(sections))
	for _, section := range sections {
		projects = append(projects, section.ProjectName)
	}

	uc.logger.Debug("Status panel republished",
		"panel_id", uc.panelID, "projects", len(sections), "content_size", len(content))

	return &dto.PanelUpdateDTO{
		PanelID:     uc.panelID,
		ContentSize: len(content),
		Projects:    projects,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// legacySection — фиксированный блок со статусом legacy CI. Недоступность
// legacy API деградирует до Unknown badge, но не срывает проход.
func (uc *RefreshStatusPanelUseCase) legacySection(ctx context.Context) service.PanelSection {
	entry := service.PanelEntry{
		DisplayName: uc.legacyBranch,
		ViewURL:     uc.legacyBuildURL,
		Status:      valueobject.StatusUnknown,
	}

	status, err := uc.legacy.GetBranchStatus(ctx, uc.legacyRepo, uc.legacyBranch)
	if err != nil {
		uc.logger.Warn("Legacy CI status unavailable", "error", err.Error())
	} else {
		entry.Status = legacyBuildStatus(status.State)
		entry.StatusText = status.State
		if status.BuildURL != "" {
			entry.ViewURL = status.BuildURL
		}
	}

	return service.PanelSection{
		ProjectName: uc.legacyLabel,
		Entries:     []service.PanelEntry{entry},
	}
}

func (uc *RefreshStatusPanelUseCase) buildSections(
	ctx context.Context,
	event *entity.BuildEvent,
	entries []panelConfigEntry,
	associated map[string]port.AssociatedBuild,
) []service.PanelSection {
	order := make([]string, 0)
	byProject := make(map[string]*service.PanelSection)

	appendEntry := func(project string, entry service.PanelEntry) {
		section, ok := byProject[project]
		if !ok {
			section = &service.PanelSection{ProjectName: project}
			byProject[project] = section
			order = append(order, project)
		}
		section.Entries = append(section.Entries, entry)
	}

	for _, configured := range entries {
		if configured.Hidden {
			continue
		}

		assoc, ok := associated[configured.Name]
		if !ok {
			// Конфигурация удалена из CI или еще не заведена
			appendEntry(uc.fallbackGroup, service.PanelEntry{
				DisplayName: configured.Name,
				Status:      valueobject.StatusUnknown,
			})
			continue
		}

		status, statusText := uc.entryStatus(ctx, event, assoc)
		entry := service.PanelEntry{
			DisplayName: assoc.BuildName,
			ViewURL:     uc.ci.ConvertToGuestURL(uc.ci.TypeBuildURL(assoc.BuildTypeID)),
			Status:      status,
		}
		// Пояснение сервера ("Tests failed: 2 (2 new)") показывается
		// только на сломанных строках, зеленые остаются лаконичными
		if status == valueobject.StatusFailure {
			entry.StatusText = statusText
		}
		appendEntry(assoc.ProjectName, entry)
	}

	sections := make([]service.PanelSection, 0, len(order))
	for _, project := range order {
		sections = append(sections, *byProject[project])
	}
	return sections
}

// entryStatus определяет статус строки и текстовое пояснение CI сервера.
// Для конфигурации, чье завершение запустило этот проход, статус
// перечитывается живым запросом: это единственная строка с гарантированно
// актуальными данными.
func (uc *RefreshStatusPanelUseCase) entryStatus(ctx context.Context, event *entity.BuildEvent, assoc port.AssociatedBuild) (valueobject.BuildStatus, string) {
	if event != nil && assoc.BuildTypeID == event.BuildTypeID() {
		info, err := uc.ci.GetBuildInfo(ctx, event.BuildID())
		if err == nil {
			return valueobject.ParseBuildStatus(info.Status), info.StatusText
		}
		uc.logger.Warn("Fresh build info unavailable, falling back to event status",
			"build_id", event.BuildID(), "error", err.Error())
		return event.Status(), ""
	}

	latest, err := uc.ci.GetLatestCompletedBuild(ctx, assoc.BuildTypeID, uc.primaryBranch)
	if err != nil {
		uc.logger.Warn("Latest build lookup failed", "build_type_id", assoc.BuildTypeID, "error", err.Error())
		return valueobject.StatusUnknown, ""
	}
	if latest == nil {
		return valueobject.StatusUnknown, ""
	}
	return valueobject.ParseBuildStatus(latest.Status), latest.StatusText
}

func legacyBuildStatus(state string) valueobject.BuildStatus {
	switch state {
	case "passed":
		return valueobject.StatusSuccess
	case "failed", "errored":
		return valueobject.StatusFailure
	default:
		return valueobject.StatusUnknown
	}
}

// parseBuildConfigurations читает builds-секцию YAML документа, сохраняя
// порядок объявления сборок (map с потерей порядка здесь не годится:
// порядок строк панели повторяет порядок файла)
func parseBuildConfigurations(raw []byte) ([]panelConfigEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config document is not a mapping")
	}

	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "builds" {
			continue
		}

		builds := root.Content[i+1]
		if builds.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("builds section is not a mapping")
		}

		entries := make([]panelConfigEntry, 0, len(builds.Content)/2)
		for j := 0; j+1 < len(builds.Content); j += 2 {
			entry := panelConfigEntry{Name: builds.Content[j].Value}

			body := builds.Content[j+1]
			if body.Kind == yaml.MappingNode {
				var flags struct {
					HideOnStatusPanel bool `yaml:"hideOnStatusPanel"`
				}
				if err := body.Decode(&flags); err != nil {
					return nil, fmt.Errorf("invalid build entry %q: %w", entry.Name, err)
				}
				entry.Hidden = flags.HideOnStatusPanel
			}

			entries = append(entries, entry)
		}
		return entries, nil
	}

	return nil, fmt.Errorf("builds section is missing")
}
