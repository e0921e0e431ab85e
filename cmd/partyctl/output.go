package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"superparty/models"
)

// printer formats command output as a table or JSON.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) *printer {
	return &printer{format: format, w: w}
}

func (p *printer) isJSON() bool {
	return p.format == "json"
}

// json marshals v as indented JSON.
func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows using tabwriter. header is the first row.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for i, h := range header {
		if i > 0 {
			_, _ = fmt.Fprint(tw, "\t")
		}
		_, _ = fmt.Fprint(tw, h)
	}
	_, _ = fmt.Fprintln(tw)
	for _, row := range rows {
		for i, col := range row {
			if i > 0 {
				_, _ = fmt.Fprint(tw, "\t")
			}
			_, _ = fmt.Fprint(tw, col)
		}
		_, _ = fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

func (p *printer) heroes(heroes []models.Hero) error {
	if p.isJSON() {
		return p.json(heroes)
	}
	rows := make([][]string, 0, len(heroes))
	for _, h := range heroes {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(h.ID), 10), h.Name, h.Universe.String(), h.Abilities,
		})
	}
	p.table([]string{"ID", "NAME", "UNIVERSE", "ABILITIES"}, rows)
	return nil
}

func (p *printer) teams(teams []models.Team) error {
	if p.isJSON() {
		return p.json(teams)
	}
	rows := make([][]string, 0, len(teams))
	for _, t := range teams {
		rows = append(rows, []string{strconv.FormatUint(uint64(t.ID), 10), t.Name})
	}
	p.table([]string{"ID", "NAME"}, rows)
	return nil
}

func (p *printer) team(team *models.Team) error {
	if p.isJSON() {
		return p.json(team)
	}
	_, _ = fmt.Fprintf(p.w, "Team %d: %s (%d heroes)\n", team.ID, team.Name, len(team.Heroes))
	if len(team.Heroes) == 0 {
		return nil
	}
	return p.heroes(team.Heroes)
}
