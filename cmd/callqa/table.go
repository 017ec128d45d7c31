package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const defaultColumnWidth = 60

// column describes one table column. Numeric columns (scores, counts,
// weights) align right; width caps the column before go-pretty wraps it.
type column struct {
	title   string
	numeric bool
	width   int
}

func textCol(title string) column { return column{title: title} }

func numCol(title string) column { return column{title: title, numeric: true} }

// wideCol is a text column for free-form model output such as reasons and
// intents.
func wideCol(title string, width int) column { return column{title: title, width: width} }

// renderTable draws rows under cols. Missing cells render blank and cells
// beyond len(cols) are dropped.
func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		width := c.width
		if width <= 0 {
			width = defaultColumnWidth
		}
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft, WidthMax: width}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}
