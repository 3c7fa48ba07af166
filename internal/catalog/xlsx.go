package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kensaku/internal/models"
)

// loadXLSX reads movies from the first sheet of a workbook. The header row must
// name id, title and description columns (any order, case-insensitive).
func loadXLSX(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return New(nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return New(nil)
	}

	cols := map[string]int{"id": -1, "title": -1, "description": -1}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, ok := cols[key]; ok {
			cols[key] = i
		}
	}
	for name, idx := range cols {
		if idx < 0 {
			return nil, fmt.Errorf("catalog sheet missing %q column", name)
		}
	}

	movies := make([]*models.Movie, 0, len(rows)-1)
	for n, row := range rows[1:] {
		idText := cell(row, cols["id"])
		if idText == "" {
			continue
		}
		id, err := strconv.Atoi(idText)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid id %q: %w", n+2, idText, err)
		}
		movies = append(movies, &models.Movie{
			ID:          id,
			Title:       cell(row, cols["title"]),
			Description: cell(row, cols["description"]),
		})
	}
	return New(movies)
}

// cell returns row[i] trimmed, or "" for short rows (excelize drops trailing empty cells).
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
