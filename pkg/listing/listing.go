// Package listing renders the itemized record list shown under the charts.
package listing

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/insights-dashboard/pkg/model"
)

// Field is one labelled line of an entry
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Entry is the display form of one record
type Entry struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Project maps every record to its display entry, in dataset order
func Project(ds model.Dataset) []Entry {
	entries := make([]Entry, len(ds))
	for i, r := range ds {
		entries[i] = Entry{
			Title: r.Title,
			Fields: []Field{
				{"Topic", r.Topic},
				{"Start Year", r.StartYear.String()},
				{"End Year", r.EndYear.String()},
				{"Intensity", r.Intensity.String()},
				{"Likelihood", r.Likelihood.String()},
				{"Relevance", r.Relevance.String()},
				{"Sector", r.Sector},
				{"Region", r.Region},
				{"Country", r.Country},
				{"City", r.City},
				{"Published", FormatPublished(r.Published)},
			},
		}
	}
	return entries
}

// publishedLayouts are the serializations the data source is known to use
var publishedLayouts = []string{
	time.RFC3339,
	"January, 02 2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatPublished renders a serialized date as M/D/YYYY. Empty input stays
// blank and text that is not a known date is shown as is.
func FormatPublished(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
		}
	}
	return s
}

var listTemplate = template.Must(template.New("records").Parse(`<ul class="records">
{{- range .}}
  <li>
    <h3>{{.Title}}</h3>
    {{- range .Fields}}
    <p>{{.Label}}: {{.Value}}</p>
    {{- end}}
  </li>
{{- end}}
</ul>
`))

// WriteHTML writes the record list as an HTML fragment. All text is escaped.
func WriteHTML(w io.Writer, ds model.Dataset) error {
	if err := listTemplate.Execute(w, Project(ds)); err != nil {
		return fmt.Errorf("rendering record list: %w", err)
	}
	return nil
}

// Print writes the record list for a terminal, colored when w is one
func Print(w io.Writer, ds model.Dataset) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if len(ds) == 0 {
		yellow.Fprintln(w, "No records match the current filters")
		return
	}

	bold.Fprintf(w, "Records (%d)\n", len(ds))
	bold.Fprintln(w, strings.Repeat("=", 12))
	for _, e := range Project(ds) {
		cyan.Fprintln(w, e.Title)
		for _, f := range e.Fields {
			if f.Value == "" {
				continue
			}
			fmt.Fprintf(w, "  %-11s %s\n", f.Label+":", f.Value)
		}
		fmt.Fprintln(w)
	}
}
