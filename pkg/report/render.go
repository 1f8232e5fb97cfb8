package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"facemetrics/internal/models"
)

var (
	colorCyan  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorGray  = lipgloss.Color("245")
	colorDim   = lipgloss.Color("240")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	keyStyle    = lipgloss.NewStyle().Foreground(colorGray).Width(20)
	headerStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	matchStyle  = lipgloss.NewStyle().Foreground(colorGreen)
)

// WriteText renders the report as terminal tables.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	s := r.Subject
	b.WriteString(titleStyle.Render("Subject") + "\n")
	if s.ID != "" {
		b.WriteString(keyStyle.Render("ID") + " " + s.ID + "\n")
	}
	b.WriteString(keyStyle.Render("Assessment") + " " + fmt.Sprint(s.AssessmentID) + "\n")
	b.WriteString(keyStyle.Render("Age") + " " + fmt.Sprintf("%.1f", s.Age) + "\n")
	b.WriteString(keyStyle.Render("Sex") + " " + s.Sex.String() + "\n")
	b.WriteString(keyStyle.Render("Maternal ethnicity") + " " + ethnicity(s.MaternalEthnicity, s.MaternalEthnicityName) + "\n")
	b.WriteString(keyStyle.Render("Paternal ethnicity") + " " + ethnicity(s.PaternalEthnicity, s.PaternalEthnicityName) + "\n")

	for _, region := range models.Regions {
		rows := r.Region(region)
		if len(rows) == 0 {
			continue
		}
		b.WriteString("\n" + titleStyle.Render(strings.ToUpper(region.String()[:1])+region.String()[1:]) + "\n")
		data := make([][]string, len(rows))
		for i, row := range rows {
			name := row.Name
			if row.Footnote > 0 {
				name = fmt.Sprintf("%s [%d]", name, row.Footnote)
			}
			data[i] = []string{fmt.Sprint(row.ID), name, strings.Join(row.Values, ", "), strings.Join(row.ZScores, ", "), row.Units}
		}
		b.WriteString(newTable("ID", "Metric", "Value", "Z", "Units").Rows(data...).Render() + "\n")
	}

	if len(r.Sources) > 0 {
		b.WriteString("\n")
		for i, src := range r.Sources {
			b.WriteString(dimStyle.Render(fmt.Sprintf("[%d] %s", i+1, src)) + "\n")
		}
	}

	if len(r.Phenotypes) > 0 {
		b.WriteString("\n" + titleStyle.Render("Phenotypic traits") + "\n")
		data := make([][]string, len(r.Phenotypes))
		for i, p := range r.Phenotypes {
			data[i] = []string{p.FormattedID, p.Name, p.Metrics,
				flag(p.SexMatch), flag(p.AgeMatch), flag(p.MaternalEthnicityMatch), flag(p.PaternalEthnicityMatch)}
		}
		b.WriteString(newTable("HPO", "Term", "Metrics", "Sex", "Age", "Mat", "Pat").Rows(data...).Render() + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func ethnicity(code int, name string) string {
	if name == "" {
		return fmt.Sprint(code)
	}
	return fmt.Sprintf("%s (%d)", name, code)
}

func flag(ok bool) string {
	if ok {
		return matchStyle.Render("yes")
	}
	return dimStyle.Render("no")
}
