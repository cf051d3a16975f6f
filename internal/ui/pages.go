package ui

import (
	"fmt"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"cube-demo/internal/cube"
	"cube-demo/internal/domain"
)

func appPage(title string, body ...gomponents.Node) gomponents.Node {
	return html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text(title+" | Cube")),
			html.Link(html.Rel("stylesheet"), html.Href("/static/app.css")),
		),
		html.Body(
			html.Main(
				html.Class("layout"),
				html.H1(html.Class("page-title"), gomponents.Text(title)),
				gomponents.Group(body),
			),
		),
	)
}

func errorPage(title, message string) gomponents.Node {
	return appPage(title,
		html.P(gomponents.Text(message)),
		html.P(html.A(html.Href("/"), gomponents.Text("Back to dashboard"))),
	)
}

// filterSidebar renders one multi-select per dimension, populated from the
// unfiltered value lists so options never vanish as the selection narrows.
func filterSidebar(dims []string, options map[string][]string, active cube.Criteria, query string) gomponents.Node {
	fields := make([]gomponents.Node, 0, len(dims))
	for _, dim := range dims {
		selected := map[string]bool{}
		for _, v := range active[dim] {
			selected[v] = true
		}
		opts := make([]gomponents.Node, 0, len(options[dim]))
		for _, v := range options[dim] {
			attrs := []gomponents.Node{html.Value(v), gomponents.Text(v)}
			if selected[v] {
				attrs = append(attrs, html.Selected())
			}
			opts = append(opts, html.Option(attrs...))
		}
		fields = append(fields,
			html.Label(gomponents.Text(dim)),
			html.Select(
				html.Name("dim:"+dim),
				html.Multiple(),
				gomponents.Group(opts),
			),
		)
	}

	return html.Div(
		html.Class("card sidebar"),
		html.H2(gomponents.Text("Filters")),
		html.Form(
			html.Method("post"),
			html.Action("/filters"),
			html.Input(html.Type("hidden"), html.Name("query"), html.Value(query)),
			gomponents.Group(fields),
			html.Button(html.Type("submit"), gomponents.Text("Apply")),
		),
		html.Form(
			html.Method("post"),
			html.Action("/filters/reset"),
			html.Input(html.Type("hidden"), html.Name("query"), html.Value(query)),
			html.Button(html.Type("submit"), html.Class("secondary"), gomponents.Text("Reset all")),
		),
	)
}

func queryPicker(queries []cube.QueryDef, selected string) gomponents.Node {
	links := make([]gomponents.Node, 0, len(queries))
	for _, q := range queries {
		className := ""
		if q.Name == selected {
			className = "active"
		}
		links = append(links, html.A(
			html.Href("/?query="+q.Name),
			html.Class(className),
			gomponents.Text(q.Name),
		))
	}
	return html.Nav(html.Class("nav"), gomponents.Group(links))
}

func resultTable(res *cube.Result) gomponents.Node {
	head := make([]gomponents.Node, 0, len(res.Columns))
	for _, col := range res.Columns {
		head = append(head, html.Th(gomponents.Text(col)))
	}

	rows := make([]gomponents.Node, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]gomponents.Node, 0, len(row))
		for _, cell := range row {
			text := domain.FormatValue(cell)
			if cell == nil {
				text = "-"
			}
			cells = append(cells, html.Td(gomponents.Text(text)))
		}
		rows = append(rows, html.Tr(cells...))
	}

	return html.Div(
		html.Class("card table-wrap"),
		html.Table(
			html.THead(html.Tr(head...)),
			html.TBody(rows...),
		),
	)
}

// barChart renders a CSS bar per row for the first metric column, scaled
// against the largest value.
func barChart(res *cube.Result, labelCol, valueCol int) gomponents.Node {
	maxVal := 0.0
	for _, row := range res.Rows {
		if f, ok := row[valueCol].(float64); ok && f > maxVal {
			maxVal = f
		}
	}
	if maxVal == 0 {
		return nil
	}

	bars := make([]gomponents.Node, 0, len(res.Rows))
	for _, row := range res.Rows {
		f, ok := row[valueCol].(float64)
		if !ok || f < 0 {
			continue
		}
		label := domain.FormatValue(row[labelCol])
		if row[labelCol] == nil {
			label = "-"
		}
		bars = append(bars,
			html.Div(
				html.Class("bar-row"),
				html.Span(html.Class("bar-label"), gomponents.Text(label)),
				html.Div(
					html.Class("bar"),
					html.StyleAttr(fmt.Sprintf("width: %.1f%%", f/maxVal*100)),
				),
				html.Span(html.Class("bar-value"), gomponents.Text(domain.FormatValue(row[valueCol]))),
			),
		)
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text(res.Columns[valueCol])),
		gomponents.Group(bars),
	)
}

func definitionsCard(metrics []cube.MetricDef, computed []cube.ComputedMetricDef) gomponents.Node {
	items := make([]gomponents.Node, 0, len(metrics)+len(computed))
	for _, m := range metrics {
		items = append(items, html.Li(
			html.Strong(gomponents.Text(m.Name)),
			gomponents.Text(" = "+m.Aggregation.Name()+"("+m.Expression+")"),
		))
	}
	for _, cm := range computed {
		suffix := ""
		if cm.HasFill {
			suffix = " (fillna " + domain.FormatValue(cm.FillValue) + ")"
		}
		items = append(items, html.Li(
			html.Strong(gomponents.Text(cm.Name)),
			gomponents.Text(" = "+cm.Expression+suffix),
		))
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Definitions")),
		html.Ul(items...),
	)
}
