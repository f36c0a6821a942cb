package service

import (
	"fmt"
	"regexp"
	"strings"
)

// Текстовый summary от lcov выглядит так:
//
//	Summary coverage rate:
//	  lines......: 82.3% (91410 of 111040 lines)
//	  functions..: 74.1% (6686 of 9020 functions)
//	  branches...: 45.0% (188886 of 420030 branches)
var coverageLinePattern = regexp.MustCompile(`^\s*(\w+)\.+: ([0-9.]+%) \((\d+) of (\d+) .+$`)

// CoverageReportParser конвертирует текстовый coverage summary в remarkup
// таблицу для панели (Domain Service, stateless)
type CoverageReportParser struct{}

// NewCoverageReportParser создает новый parser
func NewCoverageReportParser() *CoverageReportParser {
	return &CoverageReportParser{}
}

// Render возвращает таблицу покрытия. Строки, не похожие на summary,
// молча пропускаются, так что мусор от разных версий lcov не мешает.
func (p *CoverageReportParser) Render(coverageSummary string) string {
	report := "| Granularity | % hit | # hit | # total |\n"
	report += "| ----------- | ----- | ----- | ------- |\n"

	for _, line := range strings.Split(coverageSummary, "\n") {
		m := coverageLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		report += fmt.Sprintf("| %s | %s | %s | %s |\n",
			capitalize(m[1]), m[2], m[3], m[4])
	}

	return report
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
