package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"mutclust/internal/evaluation"
	"mutclust/internal/selection"
)

// SummaryTable renders the best row per model for metric.
func SummaryTable(w io.Writer, results []Result, metric string) error {
	best, err := Best(results, metric)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Best %s per model", metric))

	header := table.Row{"Model", "n", "us"}
	for _, m := range evaluation.MetricNames {
		header = append(header, m)
	}
	t.AppendHeader(header)

	for _, r := range best {
		row := table.Row{r.Model, r.N, r.Undersampling}
		for _, m := range evaluation.MetricNames {
			row = append(row, fmt.Sprintf("%.3f", r.Metrics[m]))
		}
		t.AppendRow(row)
	}
	t.Render()
	return nil
}

// RankingTable renders a feature ranking with the selectors that voted for
// each feature.
func RankingTable(w io.Writer, ranking *selection.Ranking, n int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	// selector names are lower case identifiers, keep them as written
	t.Style().Format.Header = text.FormatDefault

	header := table.Row{"#", "Feature", "Votes"}
	for _, p := range ranking.Picks {
		header = append(header, p.Selector)
	}
	t.AppendHeader(header)

	for i, f := range ranking.Features {
		row := table.Row{i + 1, f, ranking.Votes[f]}
		for _, p := range ranking.Picks {
			mark := ""
			for _, picked := range p.Features {
				if picked == f {
					mark = "x"
					break
				}
			}
			row = append(row, mark)
		}
		t.AppendRow(row)
		if i+1 == n && i+1 < len(ranking.Features) {
			t.AppendSeparator()
		}
	}
	t.AppendFooter(table.Row{"", "selected", strings.Join(ranking.Top(n), ", ")})
	t.Render()
}
