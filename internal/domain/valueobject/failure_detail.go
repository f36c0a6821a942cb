package valueobject

// FailureDetailKind различает три исхода Failure Locator'а.
// Явный tagged union вместо сигнальных возвратов (nil / список / словарь).
type FailureDetailKind int

const (
	// DetailNone — ни build problem, ни упавших тестов найти не удалось
	DetailNone FailureDetailKind = iota

	// DetailBuildProblem — единственная build-level проблема со сниппетом лога
	DetailBuildProblem

	// DetailTestFailures — упорядоченный список упавших тестов
	DetailTestFailures
)

// BuildProblem — первая build-level проблема сборки
type BuildProblem struct {
	Details string
	LogURL  string
	Snippet string
}

// TestFailure — один упавший тест
type TestFailure struct {
	Name   string
	LogURL string
}

// FailureDetail — результат поиска причины падения сборки
// Иммутабельный объект
type FailureDetail struct {
	kind    FailureDetailKind
	problem BuildProblem
	tests   []TestFailure
}

// NoDetail — явный исход "подробности недоступны" (не ошибка)
func NoDetail() FailureDetail {
	return FailureDetail{kind: DetailNone}
}

// ProblemDetail создает исход с единственной build problem
func ProblemDetail(problem BuildProblem) FailureDetail {
	return FailureDetail{kind: DetailBuildProblem, problem: problem}
}

// TestsDetail создает исход со списком упавших тестов (порядок сохраняется)
func TestsDetail(tests []TestFailure) FailureDetail {
	copied := make([]TestFailure, len(tests))
	copy(copied, tests)
	return FailureDetail{kind: DetailTestFailures, tests: copied}
}

func (d FailureDetail) Kind() FailureDetailKind {
	return d.kind
}

func (d FailureDetail) Problem() BuildProblem {
	return d.problem
}

func (d FailureDetail) Tests() []TestFailure {
	tests := make([]TestFailure, len(d.tests))
	copy(tests, d.tests)
	return tests
}
