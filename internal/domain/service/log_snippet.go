package service

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// maxDecodedLogBytes ограничивает размер распакованного лога,
// чтобы битый или злонамеренный артефакт не съел всю память
const maxDecodedLogBytes = 64 << 20

// LogSnippetExtractor вырезает из сырого лога сборки ограниченный фрагмент
// вокруг маркерной строки (Domain Service, stateless)
type LogSnippetExtractor struct{}

// NewLogSnippetExtractor создает новый extractor
func NewLogSnippetExtractor() *LogSnippetExtractor {
	return &LogSnippetExtractor{}
}

// Extract возвращает maxLines строк перед первым вхождением маркера плюс
// саму маркерную строку. Отсутствие маркера — нормальная ветка, не ошибка:
// в этом случае возвращается хвост лога того же размера.
func (e *LogSnippetExtractor) Extract(logText, marker string, maxLines int) string {
	if maxLines < 0 {
		maxLines = 0
	}

	lines := strings.Split(logText, "\n")

	if marker != "" {
		for i, line := range lines {
			if !strings.Contains(line, marker) {
				continue
			}
			start := i - maxLines
			if start < 0 {
				start = 0
			}
			return strings.TrimRight(strings.Join(lines[start:i+1], "\n"), " \t\r\n")
		}
	}

	// Маркер не найден: отдаем хвост в пределах того же бюджета строк
	start := len(lines) - maxLines - 1
	if start < 0 {
		start = 0
	}
	return strings.TrimRight(strings.Join(lines[start:], "\n"), " \t\r\n")
}

// ExtractFromCompressed распаковывает gzip-артефакт лога и применяет Extract.
// Байты, которые не декодируются как UTF-8, заменяются на replacement rune.
func (e *LogSnippetExtractor) ExtractFromCompressed(r io.Reader, marker string, maxLines int) (string, error) {
	text, err := DecodeCompressedLog(r)
	if err != nil {
		return "", err
	}
	return e.Extract(text, marker, maxLines), nil
}

// DecodeCompressedLog распаковывает gzip поток в валидный UTF-8 текст
func DecodeCompressedLog(r io.Reader) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to open gzip log artifact: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(io.LimitReader(gz, maxDecodedLogBytes))
	if err != nil {
		return "", fmt.Errorf("failed to decompress log artifact: %w", err)
	}

	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}
