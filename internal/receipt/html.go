package receipt

import (
	"bytes"
	"html/template"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Receipt {{.Number}}</title>
<style>
@page { size: 58mm auto; margin: 0; }
body { font-family: "Courier New", monospace; font-size: 12px; width: 58mm; margin: 0 auto; padding: 4px; }
.line { white-space: pre; }
.center { text-align: center; }
.right { text-align: right; }
.bold { font-weight: bold; }
.large { font-size: 15px; }
.rule { border-top: 1px dashed #000; margin: 4px 0; }
.pair { display: flex; justify-content: space-between; }
table { width: 100%; border-collapse: collapse; }
td, th { padding: 1px 0; font-weight: normal; }
th { border-bottom: 1px dashed #000; }
</style>
</head>
<body onload="window.print()">
{{range .Rows}}{{if .Rule}}<div class="rule"></div>
{{else if .Pair}}<div class="pair{{if .Bold}} bold{{end}}"><span>{{.Left}}</span><span>{{.Right}}</span></div>
{{else if .Header}}<table><tr>{{range .Cells}}<th class="{{.Class}}">{{.Text}}</th>{{end}}</tr>
{{else if .Cells}}<tr>{{range .Cells}}<td class="{{.Class}}">{{.Text}}</td>{{end}}</tr>
{{else if .CloseTable}}</table>
{{else}}<div class="line {{.Class}}">{{.Text}}</div>
{{end}}{{end}}</body>
</html>
`))

type htmlCell struct {
	Text  string
	Class string
}

type htmlRow struct {
	Rule       bool
	Pair       bool
	Header     bool
	CloseTable bool
	Bold       bool
	Left       string
	Right      string
	Text       string
	Class      string
	Cells      []htmlCell
}

// HTML renders a printable page for browsers that print to the thermal
// printer themselves.
func (l Layout) HTML() (string, error) {
	rows := make([]htmlRow, 0, len(l.Lines)+1)
	inTable := false
	for _, line := range l.Lines {
		if inTable && line.Kind != KindColumns && !(line.Kind == KindText && line.Align == AlignLeft) {
			rows = append(rows, htmlRow{CloseTable: true})
			inTable = false
		}
		switch line.Kind {
		case KindRule:
			rows = append(rows, htmlRow{Rule: true})
		case KindPair:
			rows = append(rows, htmlRow{Pair: true, Bold: line.Bold, Left: line.Left, Right: line.Right})
		case KindColumns:
			cells := make([]htmlCell, len(l.Columns))
			for i, col := range l.Columns {
				cells[i].Class = alignClass(col.Align)
				if i < len(line.Cells) {
					cells[i].Text = line.Cells[i]
				}
			}
			rows = append(rows, htmlRow{Header: !inTable, Cells: cells})
			inTable = true
		case KindBlank:
		default:
			if inTable {
				cells := []htmlCell{{Text: line.Text}, {}, {}, {}}
				rows = append(rows, htmlRow{Cells: cells})
				continue
			}
			class := alignClass(line.Align)
			if line.Bold {
				class += " bold"
			}
			if line.Large {
				class += " large"
			}
			rows = append(rows, htmlRow{Text: line.Text, Class: class})
		}
	}
	if inTable {
		rows = append(rows, htmlRow{CloseTable: true})
	}

	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, struct {
		Number string
		Rows   []htmlRow
	}{Number: l.Number, Rows: rows})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func alignClass(a Align) string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return ""
	}
}
