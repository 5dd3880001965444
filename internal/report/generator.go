// Package report выгружает итоги прогона маршрутизации в XLSX, PDF и JSON.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fpgaroute/pkg/apperror"
)

// Поддерживаемые форматы
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
	FormatJSON = "json"
)

// Generator интерфейс генератора отчётов
type Generator interface {
	Generate(ctx context.Context, run *Run) ([]byte, error)
	Format() string
}

// New возвращает генератор формата
func New(format string) (Generator, error) {
	switch strings.ToLower(format) {
	case FormatXLSX:
		return NewExcelGenerator(), nil
	case FormatPDF:
		return NewPDFGenerator(), nil
	case FormatJSON:
		return NewJSONGenerator(), nil
	default:
		return nil, apperror.NewWithField(apperror.CodeInvalidArgument,
			fmt.Sprintf("unsupported report format %q", format), "report.formats")
	}
}

// WriteFiles пишет отчёт во всех форматах в dir; имя файла - run.Name
// с расширением формата. Возвращает пути записанных файлов.
func WriteFiles(ctx context.Context, dir string, formats []string, run *Run) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	var paths []string
	for _, format := range formats {
		gen, err := New(format)
		if err != nil {
			return paths, err
		}
		data, err := gen.Generate(ctx, run)
		if err != nil {
			return paths, fmt.Errorf("generate %s report: %w", gen.Format(), err)
		}
		path := filepath.Join(dir, fileName(run.Name)+"."+gen.Format())
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func fileName(name string) string {
	if name == "" {
		return "routing"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}

// =====================================================
// Общие утилиты генераторов
// =====================================================

func title(run *Run) string {
	if run.Title != "" {
		return run.Title
	}
	return "Connection Routing Report"
}

func formatGrid(d DeviceInfo) string {
	return fmt.Sprintf("%dx%dx%d", d.Width, d.Height, d.Layers)
}

func formatFloat(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatDuration(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1000 {
		return fmt.Sprintf("%.2f ms", ms)
	}
	return fmt.Sprintf("%.2f s", ms/1000)
}

// colName преобразует индекс колонки в буквенное обозначение (0 -> A, 26 -> AA)
func colName(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

func cell(colIndex, row int) string {
	return fmt.Sprintf("%s%d", colName(colIndex), row)
}
