package admin

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
)

const (
	analyticsLimit = 50
	lowScore       = 50
	highScore      = 80
	gradebookSheet = "Gradebook"
)

// Filter narrows analytics by score band.
type Filter string

const (
	FilterAll  Filter = "all"
	FilterLow  Filter = "low"
	FilterHigh Filter = "high"
)

// ParseFilter maps a query value onto a Filter. Unknown values mean all.
func ParseFilter(v string) Filter {
	switch Filter(strings.ToLower(strings.TrimSpace(v))) {
	case FilterLow:
		return FilterLow
	case FilterHigh:
		return FilterHigh
	}
	return FilterAll
}

func (f Filter) match(score int) bool {
	switch f {
	case FilterLow:
		return score < lowScore
	case FilterHigh:
		return score >= highScore
	}
	return true
}

// Analytics is the recent-results table of the gradebook.
type Analytics struct {
	Filter       Filter              `json:"filter"`
	Query        string              `json:"query"`
	Results      []curriculum.Result `json:"results"`
	AverageScore int                 `json:"average_score"`
}

// Analytics returns the latest progress rows that match filter and query.
// The query matches student email or topic id, ignoring case.
func (s *Service) Analytics(ctx context.Context, filter Filter, query string) (Analytics, error) {
	rows, err := s.store.RecentResults(ctx, analyticsLimit)
	if err != nil {
		return Analytics{}, fmt.Errorf("list results: %w", err)
	}
	return FilterResults(rows, filter, query), nil
}

// FilterResults applies the analytics filter and search to rows.
func FilterResults(rows []curriculum.Result, filter Filter, query string) Analytics {
	q := strings.ToLower(strings.TrimSpace(query))
	out := Analytics{Filter: filter, Query: query, Results: []curriculum.Result{}}

	sum := 0
	for _, r := range rows {
		if !filter.match(r.Score) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.StudentEmail), q) &&
			!strings.Contains(strings.ToLower(r.TopicID), q) {
			continue
		}
		out.Results = append(out.Results, r)
		sum += r.Score
	}
	if n := len(out.Results); n > 0 {
		out.AverageScore = int(math.Round(float64(sum) / float64(n)))
	}
	return out
}

var gradebookHeader = []any{"Student", "Topic", "Title", "Subject", "Status", "Score", "Updated"}

// ExportGradebook writes every progress row as an xlsx workbook to w.
func (s *Service) ExportGradebook(ctx context.Context, w io.Writer) error {
	rows, err := s.store.RecentResults(ctx, 0)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gradebookSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(gradebookSheet, "A1", &gradebookHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetRowStyle(gradebookSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.StudentEmail,
			r.TopicID,
			r.TopicTitle,
			string(r.Subject),
			string(r.Status),
			r.Score,
			r.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(gradebookSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(gradebookSheet, "A", "A", 32); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}
	if err := f.SetColWidth(gradebookSheet, "C", "C", 40); err != nil {
		return fmt.Errorf("size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
