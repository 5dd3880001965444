package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// PDFGenerator генератор PDF сводки: карточки итогов, таблица операций
// с очередью и самые дорогие соединения
type PDFGenerator struct{}

// NewPDFGenerator создаёт новый генератор
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Format возвращает формат генератора
func (g *PDFGenerator) Format() string { return FormatPDF }

// Стили
var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}
	successColor   = &props.Color{Red: 39, Green: 174, Blue: 96}
	dangerColor    = &props.Color{Red: 231, Green: 76, Blue: 60}
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241}
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141}

	titleStyle = props.Text{
		Size:  22,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  15,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   5,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricValueStyle = props.Text{
		Size:  18,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: primaryColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
	}

	tableHeaderStyle = &props.Cell{
		BackgroundColor: primaryColor,
	}

	tableHeaderTextStyle = props.Text{
		Size:  9,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  9,
		Align: align.Center,
	}
)

// maxPDFConnections - сколько самых дорогих соединений попадает в PDF
const maxPDFConnections = 20

// Generate генерирует PDF отчёт
func (g *PDFGenerator) Generate(ctx context.Context, run *Run) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	g.addHeader(m, run)

	g.addSection(m, "Outcome")
	rateColor := successColor
	if run.Unroutable > 0 {
		rateColor = dangerColor
	}
	g.addMetricCards(m, []metricCard{
		{Label: "Connections", Value: fmt.Sprintf("%d", len(run.Connections)), Highlight: true},
		{Label: "Routed", Value: formatPercent(run.RouteRate()), Highlight: true, Color: rateColor},
		{Label: "Unroutable", Value: fmt.Sprintf("%d", run.Unroutable), Highlight: true},
	})
	m.AddRow(5)
	g.addMetricCards(m, []metricCard{
		{Label: "Nets", Value: fmt.Sprintf("%d", run.Nets)},
		{Label: "Retries", Value: fmt.Sprintf("%d", run.Retries)},
		{Label: "Cache Hits", Value: fmt.Sprintf("%d", run.CacheHits)},
		{Label: "Overused", Value: fmt.Sprintf("%d", run.Overused)},
	})

	g.addSection(m, "Search")
	g.addMetricCards(m, []metricCard{
		{Label: "Heap Pushes", Value: fmt.Sprintf("%d", run.HeapPushes)},
		{Label: "Heap Pops", Value: fmt.Sprintf("%d", run.HeapPops)},
		{Label: "Search Time", Value: formatDuration(run.SearchTime)},
		{Label: "Total Time", Value: formatDuration(run.Duration)},
	})

	if len(run.Heap) > 0 {
		g.addSection(m, "Heap Operations by Node Type")
		g.addHeapTable(m, run.Heap)
	}

	if len(run.Connections) > 0 {
		g.addSection(m, "Most Expensive Connections")
		g.addConnectionsTable(m, run.Connections)
	}

	g.addFooter(m, run)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func (g *PDFGenerator) addHeader(m core.Maroto, run *Run) {
	m.AddRow(15,
		text.NewCol(12, title(run), titleStyle),
	)
	m.AddRow(5,
		line.NewCol(12),
	)
	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Device: %s, %d nodes, %d edges",
			formatGrid(run.Device), run.Device.Nodes, run.Device.Edges), smallStyle),
		text.NewCol(6, fmt.Sprintf("Router: %d threads, %s queue, %s pruning",
			run.Threads, run.Queue, run.Pruning),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(8)
}

type metricCard struct {
	Label     string
	Value     string
	Highlight bool
	Color     *props.Color
}

func (g *PDFGenerator) addMetricCards(m core.Maroto, cards []metricCard) {
	if len(cards) == 0 {
		return
	}

	colSize := max(12/len(cards), 2)
	var cols []core.Col
	for _, card := range cards {
		valueStyle := metricValueStyle
		if !card.Highlight {
			valueStyle.Size = 13
		}
		if card.Color != nil {
			valueStyle.Color = card.Color
		}
		cols = append(cols,
			col.New(colSize).Add(
				text.New(card.Value, valueStyle),
				text.New(card.Label, metricLabelStyle),
			),
		)
	}
	m.AddRow(20, cols...)
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, h2Style),
	)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: primaryColor}),
	)
	m.AddRow(5)
}

func (g *PDFGenerator) addHeapTable(m core.Maroto, rows []HeapRow) {
	m.AddRow(8,
		text.NewCol(3, "Node Type", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Cluster", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Pushes", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Pops", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)
	for _, r := range rows {
		m.AddRow(6,
			text.NewCol(3, r.NodeType, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, r.Cluster, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, fmt.Sprintf("%d", r.Pushes), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, fmt.Sprintf("%d", r.Pops), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

// addConnectionsTable выводит соединения с наибольшим числом извлечений
// из очереди
func (g *PDFGenerator) addConnectionsTable(m core.Maroto, conns []ConnectionRecord) {
	top := make([]ConnectionRecord, len(conns))
	copy(top, conns)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Pops > top[j].Pops })
	if len(top) > maxPDFConnections {
		top = top[:maxPDFConnections]
	}

	m.AddRow(8,
		text.NewCol(2, "Net", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Sink", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Status", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Cost", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Delay", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Pops", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)
	for _, c := range top {
		statusStyle := tableCellTextStyle
		if c.Status != "found" {
			statusStyle.Color = dangerColor
		}
		m.AddRow(6,
			text.NewCol(2, fmt.Sprintf("%d", c.Net), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", c.Sink), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, c.Status, statusStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(c.BackwardCost, 4), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(c.Delay, 4), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", c.Pops), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
	if len(conns) > len(top) {
		m.AddRow(6,
			text.NewCol(12, fmt.Sprintf("... and %d more connections", len(conns)-len(top)), smallStyle),
		)
	}
}

func (g *PDFGenerator) addFooter(m core.Maroto, run *Run) {
	m.AddRow(10)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: lightGrayColor}),
	)
	m.AddRow(6,
		text.NewCol(12,
			fmt.Sprintf("Generated by fpgaroute | %s", run.GeneratedAt.Format("2006-01-02 15:04:05")),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Center},
		),
	)
}
