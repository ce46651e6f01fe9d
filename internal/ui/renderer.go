package ui

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cockroachdb/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gitscan/internal/repos/status"
	"github.com/temirov/gitscan/internal/utils/flags"
)

// Format selects how reports are written.
type Format string

// Supported report formats.
const (
	FormatAuto  Format = "auto"
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

const (
	// PlaceholderWarning marks rows for repositories that could not be read.
	PlaceholderWarning = "could not load repository"

	unsupportedFormatTemplate    = "unsupported report format %q"
	reportFormatErrorMessage     = "report format"
	encodeReportErrorMessage     = "encode report"
	writeReportErrorMessage      = "write report"
	timestampLayoutConstant      = "2006-01-02 15:04"
	shortHashLengthConstant      = 8
	changesIndexLabelConstant    = "index"
	changesWorktreeLabelConstant = "worktree"
	changesSeparatorConstant     = "+"
	listSeparatorConstant        = ", "
	stashPresentLabelConstant    = "yes"
	jsonIndentConstant           = "  "
	headerColorConstant          = "12"
	warningColorConstant         = "1"
	divergedColorConstant        = "3"
	borderColorConstant          = "241"
	headerRowIndexConstant       = table.HeaderRow
	emptyCellConstant            = ""
	yamlIndentConstant           = 2
)

var reportHeaders = []string{
	"NAME", "BRANCH", "AHEAD", "BEHIND", "CHANGES", "UNTRACKED", "STASH",
	"REMOTES", "TAGS", "COMMITS", "LAST COMMIT", "FETCH", "WARNING", "DIRECTORY",
}

var commitHeaders = []string{"HASH", "WHEN", "AUTHOR", "SUMMARY"}

const (
	warningColumnIndex = 12
	aheadColumnIndex   = 2
	behindColumnIndex  = 3
)

// ErrUnsupportedFormat is returned for format names other than the supported ones.
var ErrUnsupportedFormat = errors.New("unsupported report format")

// FormatNames lists the accepted format names with FormatAuto first.
func FormatNames() []string {
	return []string{string(FormatAuto), string(FormatTable), string(FormatCSV), string(FormatJSON), string(FormatYAML)}
}

// ParseFormat normalizes a user supplied format name. An empty name means FormatAuto.
func ParseFormat(raw string) (Format, error) {
	matched, matchError := flags.MatchChoice(raw, FormatNames(), string(FormatAuto))
	if matchError != nil {
		return "", errors.Mark(errors.Wrap(matchError, reportFormatErrorMessage), ErrUnsupportedFormat)
	}
	return Format(matched), nil
}

// Renderer writes reports in one format.
type Renderer struct {
	writer io.Writer
	format Format
}

// NewRenderer resolves FormatAuto to a table on terminals and CSV otherwise.
func NewRenderer(writer io.Writer, format Format) *Renderer {
	if writer == nil {
		writer = os.Stdout
	}
	if format == FormatAuto || len(format) == 0 {
		format = FormatCSV
		if isTerminal(writer) {
			format = FormatTable
		}
	}
	return &Renderer{writer: writer, format: format}
}

// Format reports the resolved output format.
func (renderer *Renderer) Format() Format {
	return renderer.format
}

// RenderEntries writes one row or record per entry, in order.
func (renderer *Renderer) RenderEntries(entries []Entry) error {
	switch renderer.format {
	case FormatJSON:
		return renderer.writeJSON(entries)
	case FormatYAML:
		return renderer.writeYAML(entries)
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, entryRow(entry))
	}
	return renderer.writeRows(reportHeaders, rows, styleReportCell(rows))
}

// RenderCommits writes a commit log.
func (renderer *Renderer) RenderCommits(commits []status.CommitSummary) error {
	switch renderer.format {
	case FormatJSON:
		return renderer.writeJSON(commits)
	case FormatYAML:
		return renderer.writeYAML(commits)
	}

	rows := make([][]string, 0, len(commits))
	for _, commit := range commits {
		rows = append(rows, []string{
			shortHash(commit.Hash),
			commit.When.Local().Format(timestampLayoutConstant),
			commit.Author,
			commit.Summary,
		})
	}
	return renderer.writeRows(commitHeaders, rows, nil)
}

func (renderer *Renderer) writeRows(headers []string, rows [][]string, cellStyle func(row int, column int) lipgloss.Style) error {
	switch renderer.format {
	case FormatCSV:
		csvWriter := csv.NewWriter(renderer.writer)
		if writeError := csvWriter.Write(headers); writeError != nil {
			return errors.Wrap(writeError, writeReportErrorMessage)
		}
		if writeError := csvWriter.WriteAll(rows); writeError != nil {
			return errors.Wrap(writeError, writeReportErrorMessage)
		}
		return nil
	case FormatTable:
		headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(headerColorConstant))
		renderedTable := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorConstant))).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row int, column int) lipgloss.Style {
				if row == headerRowIndexConstant {
					return headerStyle
				}
				if cellStyle != nil {
					return cellStyle(row, column)
				}
				return lipgloss.NewStyle()
			})
		if _, writeError := fmt.Fprintln(renderer.writer, renderedTable.String()); writeError != nil {
			return errors.Wrap(writeError, writeReportErrorMessage)
		}
		return nil
	default:
		return errors.Mark(errors.Newf(unsupportedFormatTemplate, string(renderer.format)), ErrUnsupportedFormat)
	}
}

func (renderer *Renderer) writeJSON(value any) error {
	encoder := json.NewEncoder(renderer.writer)
	encoder.SetIndent("", jsonIndentConstant)
	if encodeError := encoder.Encode(value); encodeError != nil {
		return errors.Wrap(encodeError, encodeReportErrorMessage)
	}
	return nil
}

func (renderer *Renderer) writeYAML(value any) error {
	encoder := yaml.NewEncoder(renderer.writer)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(value); encodeError != nil {
		return errors.Wrap(encodeError, encodeReportErrorMessage)
	}
	if closeError := encoder.Close(); closeError != nil {
		return errors.Wrap(closeError, encodeReportErrorMessage)
	}
	return nil
}

// styleReportCell highlights warnings and diverged counts.
func styleReportCell(rows [][]string) func(row int, column int) lipgloss.Style {
	warningStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(warningColorConstant))
	divergedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(divergedColorConstant))
	return func(row int, column int) lipgloss.Style {
		if row < 0 || row >= len(rows) {
			return lipgloss.NewStyle()
		}
		cell := rows[row][column]
		switch {
		case column == warningColumnIndex && len(cell) > 0:
			return warningStyle
		case (column == aheadColumnIndex || column == behindColumnIndex) && cell != "0" && len(cell) > 0:
			return divergedStyle
		default:
			return lipgloss.NewStyle()
		}
	}
}

func entryRow(entry Entry) []string {
	if entry.Status == nil {
		row := make([]string, len(reportHeaders))
		row[0] = entry.Name
		row[warningColumnIndex] = PlaceholderWarning
		row[len(reportHeaders)-1] = entry.RepositoryDirectory
		return row
	}

	repositoryStatus := entry.Status
	return []string{
		repositoryStatus.Name,
		repositoryStatus.BranchName,
		strconv.Itoa(repositoryStatus.AheadCount),
		strconv.Itoa(repositoryStatus.BehindCount),
		describeChanges(*repositoryStatus),
		strconv.Itoa(repositoryStatus.UntrackedCount),
		describeStash(repositoryStatus.Stash),
		strings.Join(repositoryStatus.Remotes, listSeparatorConstant),
		strconv.Itoa(repositoryStatus.TagCount),
		strconv.Itoa(repositoryStatus.CommitCount),
		describeTime(repositoryStatus.LastCommitTime),
		repositoryStatus.Fetch.String(),
		repositoryStatus.Warning,
		repositoryStatus.RepositoryDirectory,
	}
}

func describeChanges(repositoryStatus status.RepositoryStatus) string {
	labels := []string{}
	if repositoryStatus.IndexChanges {
		labels = append(labels, changesIndexLabelConstant)
	}
	if repositoryStatus.WorkingTreeChanges {
		labels = append(labels, changesWorktreeLabelConstant)
	}
	return strings.Join(labels, changesSeparatorConstant)
}

func describeStash(present bool) string {
	if present {
		return stashPresentLabelConstant
	}
	return emptyCellConstant
}

func describeTime(moment *time.Time) string {
	if moment == nil {
		return emptyCellConstant
	}
	return moment.Local().Format(timestampLayoutConstant)
}

func shortHash(hash string) string {
	if len(hash) <= shortHashLengthConstant {
		return hash
	}
	return hash[:shortHashLengthConstant]
}

func isTerminal(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
