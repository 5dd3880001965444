package report

import (
	"bytes"
	"context"

	"github.com/xuri/excelize/v2"
)

// ExcelGenerator генератор XLSX отчётов: листы Summary, Connections, Heap
type ExcelGenerator struct{}

// NewExcelGenerator создаёт новый генератор
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// Format возвращает формат генератора
func (g *ExcelGenerator) Format() string { return FormatXLSX }

// Generate генерирует XLSX отчёт
func (g *ExcelGenerator) Generate(ctx context.Context, run *Run) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	if err := g.writeSummary(f, run, headerStyle); err != nil {
		return nil, err
	}
	if err := g.writeConnections(f, run, headerStyle); err != nil {
		return nil, err
	}
	if len(run.Heap) > 0 {
		if err := g.writeHeap(f, run, headerStyle); err != nil {
			return nil, err
		}
	}

	// Дефолтный лист больше не нужен
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const (
	sheetSummary     = "Summary"
	sheetConnections = "Connections"
	sheetHeap        = "Heap"
)

func (g *ExcelGenerator) writeSummary(f *excelize.File, run *Run, headerStyle int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	row := 1
	f.SetCellValue(sheetSummary, cell(0, row), title(run))
	f.MergeCell(sheetSummary, cell(0, row), cell(3, row))
	row += 2

	section := func(name string, items [][2]any) {
		f.SetCellValue(sheetSummary, cell(0, row), name)
		f.SetCellStyle(sheetSummary, cell(0, row), cell(1, row), headerStyle)
		row++
		for _, kv := range items {
			f.SetCellValue(sheetSummary, cell(0, row), kv[0])
			f.SetCellValue(sheetSummary, cell(1, row), kv[1])
			row++
		}
		row++
	}

	section("Device", [][2]any{
		{"Grid", formatGrid(run.Device)},
		{"Nodes", run.Device.Nodes},
		{"Edges", run.Device.Edges},
		{"Fingerprint", run.Device.Fingerprint},
	})
	section("Router", [][2]any{
		{"Threads", run.Threads},
		{"Queue", run.Queue},
		{"Pruning", run.Pruning},
	})
	section("Outcome", [][2]any{
		{"Nets", run.Nets},
		{"Connections", len(run.Connections)},
		{"Routed", run.Routed},
		{"Unroutable", run.Unroutable},
		{"Route Rate", formatPercent(run.RouteRate())},
		{"Retries", run.Retries},
		{"Cache Hits", run.CacheHits},
		{"High Fanout Nets", run.HighFanoutNets},
		{"High Fanout Fallbacks", run.Fallbacks},
		{"Overused Nodes", run.Overused},
	})
	section("Search", [][2]any{
		{"Searches", run.Searches},
		{"Heap Pushes", run.HeapPushes},
		{"Heap Pops", run.HeapPops},
		{"Search Time", formatDuration(run.SearchTime)},
		{"Total Time", formatDuration(run.Duration)},
	})

	f.SetColWidth(sheetSummary, "A", "A", 24)
	f.SetColWidth(sheetSummary, "B", "B", 20)
	return nil
}

func (g *ExcelGenerator) writeConnections(f *excelize.File, run *Run, headerStyle int) error {
	if _, err := f.NewSheet(sheetConnections); err != nil {
		return err
	}

	headers := []string{
		"Net", "Sink Index", "Sink Node", "Criticality", "Status", "Mode", "Attempts",
		"From Cache", "Path Length", "Backward Cost", "Delay", "Pushes", "Pops", "Time (ms)",
	}
	for i, h := range headers {
		f.SetCellValue(sheetConnections, cell(i, 1), h)
	}
	f.SetCellStyle(sheetConnections, cell(0, 1), cell(len(headers)-1, 1), headerStyle)

	for i, c := range run.Connections {
		row := i + 2
		values := []any{
			c.Net, c.SinkIndex, c.Sink, c.Criticality, c.Status, c.Mode, c.Attempts,
			c.FromCache, c.PathLength, c.BackwardCost, c.Delay, c.Pushes, c.Pops,
			float64(c.Duration.Microseconds()) / 1000,
		}
		for col, v := range values {
			f.SetCellValue(sheetConnections, cell(col, row), v)
		}
	}
	return f.AutoFilter(sheetConnections, cell(0, 1)+":"+cell(len(headers)-1, max(len(run.Connections)+1, 2)), nil)
}

func (g *ExcelGenerator) writeHeap(f *excelize.File, run *Run, headerStyle int) error {
	if _, err := f.NewSheet(sheetHeap); err != nil {
		return err
	}

	headers := []string{"Node Type", "Cluster", "Pushes", "Pops"}
	for i, h := range headers {
		f.SetCellValue(sheetHeap, cell(i, 1), h)
	}
	f.SetCellStyle(sheetHeap, cell(0, 1), cell(len(headers)-1, 1), headerStyle)

	for i, h := range run.Heap {
		row := i + 2
		f.SetCellValue(sheetHeap, cell(0, row), h.NodeType)
		f.SetCellValue(sheetHeap, cell(1, row), h.Cluster)
		f.SetCellValue(sheetHeap, cell(2, row), h.Pushes)
		f.SetCellValue(sheetHeap, cell(3, row), h.Pops)
	}
	return nil
}
