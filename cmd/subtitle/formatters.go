package subtitle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Taichi-iskw/talk-subtitles/internal/language"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

// Formatter defines interface for output formatting
type Formatter interface {
	FormatStatus(status *model.SubtitleProcessingStatus) (string, error)
	FormatJobs(jobs []*model.SubtitleJob) (string, error)
}

// TableFormatter renders human-readable tables
type TableFormatter struct{}

// FormatStatus renders a summary followed by one row per language
func (f *TableFormatter) FormatStatus(status *model.SubtitleProcessingStatus) (string, error) {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("Job ID: %s\n", status.JobID))
	output.WriteString(fmt.Sprintf("Status: %s\n", status.Status))
	output.WriteString(fmt.Sprintf("Languages: %d/%d completed, %d failed\n",
		status.CompletedLanguages, status.TotalLanguages, status.FailedLanguages))
	output.WriteString(fmt.Sprintf("Updated: %s\n", humanize.Time(status.UpdatedAt)))
	if status.ErrorMessage != "" {
		output.WriteString(fmt.Sprintf("Error: %s\n", status.ErrorMessage))
	}
	output.WriteString("\n")

	rows := make([]table.Row, 0, len(status.Languages))
	for _, l := range status.Languages {
		detail := l.SrtURL
		if l.ErrorMessage != "" {
			detail = truncateString(l.ErrorMessage, 60)
		}
		rows = append(rows, table.Row{l.LanguageCode, l.LanguageName, l.Status, l.RetryCount, detail})
	}
	output.WriteString(renderTable(table.Row{"Code", "Language", "Status", "Retries", "SRT / Error"}, rows, 4))

	return output.String(), nil
}

// FormatJobs renders one row per job
func (f *TableFormatter) FormatJobs(jobs []*model.SubtitleJob) (string, error) {
	rows := make([]table.Row, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, table.Row{
			j.ID,
			j.Status,
			j.SourceType,
			strings.Join(j.LanguageCodes(), ","),
			humanize.Time(j.CreatedAt),
		})
	}
	return renderTable(table.Row{"Job ID", "Status", "Source", "Languages", "Created"}, rows, 0), nil
}

// JSONFormatter formats output as JSON
type JSONFormatter struct{}

// FormatStatus formats the status as JSON
func (f *JSONFormatter) FormatStatus(status *model.SubtitleProcessingStatus) (string, error) {
	return marshalIndent(status)
}

// FormatJobs formats the jobs as JSON
func (f *JSONFormatter) FormatJobs(jobs []*model.SubtitleJob) (string, error) {
	if jobs == nil {
		jobs = []*model.SubtitleJob{}
	}
	return marshalIndent(jobs)
}

func marshalIndent(v any) (string, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// GetFormatter returns the appropriate formatter based on format string
func GetFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "table", "text":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// formatLanguages renders the supported language table
func formatLanguages(languages []language.Language) string {
	rows := make([]table.Row, 0, len(languages))
	for i, l := range languages {
		rows = append(rows, table.Row{strconv.Itoa(i + 1), l.Code, l.Name})
	}
	return renderTable(table.Row{"#", "Code", "Language"}, rows, 1)
}

// renderTable writes rows with a rounded style; rightAligned is a 1-based column number, 0 for none
func renderTable(header table.Row, rows []table.Row, rightAligned int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	if rightAligned > 0 {
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: rightAligned, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		})
	}
	return tw.Render() + "\n"
}
