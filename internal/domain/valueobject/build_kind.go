package valueobject

// BuildKind — логическая классификация завершившейся сборки.
// Вычисляется один раз на событие и матчится исчерпывающе,
// вместо разбросанных по коду сравнений имени ветки.
type BuildKind int

const (
	// KindUnclassified — событие не подошло ни под одну категорию;
	// это не ошибка, такие события просто не порождают действий
	KindUnclassified BuildKind = iota

	// KindIgnored — build type помечен ignore-суффиксом
	KindIgnored

	// KindInvalid — ветка осталась unresolved placeholder'ом
	KindInvalid

	// KindPrimary — сборка на primary integration branch
	KindPrimary

	// KindReview — сборка review-ветки (pseudo-ref диффа)
	KindReview

	// KindLand — сборка auto-land конфигурации
	KindLand
)

func (k BuildKind) String() string {
	switch k {
	case KindIgnored:
		return "ignored"
	case KindInvalid:
		return "invalid"
	case KindPrimary:
		return "primary"
	case KindReview:
		return "review"
	case KindLand:
		return "land"
	default:
		return "unclassified"
	}
}
