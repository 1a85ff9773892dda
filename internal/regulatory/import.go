// Package regulatory imports restriction standards from published tables and
// propagates their twelve category usage limits onto stored ingredients by
// registry number.
package regulatory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"essentia/internal/enrich"
	applog "essentia/internal/log"
	"essentia/internal/store"
	"essentia/models"
)

// Service runs imports and limit syncs against one store.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// RowError records one rejected import row. The line number counts from the
// top of the file, header included.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

// ImportStats summarizes one import run. Rejected rows are collected rather
// than aborting the run; a single bad line must not lose the amendment.
type ImportStats struct {
	Rows    int
	Created int
	Updated int
	Errors  []RowError
}

// ImportFile imports a standards table, dispatching on the file extension:
// .pdf is scanned for prohibition entries, anything else is parsed as a
// delimited table.
func (s *Service) ImportFile(ctx context.Context, path string, ownerID uint) (*ImportStats, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read standards file: %w", err)
		}
		return s.ImportPDF(ctx, data, ownerID)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open standards file: %w", err)
	}
	defer f.Close()
	return s.ImportCSV(ctx, f, ownerID)
}

// ImportCSV parses a delimited standards table and upserts one standard per
// valid row. The delimiter is sniffed from the header line; rows without a
// valid registry number are rejected individually.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, ownerID uint) (*ImportStats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read standards table: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = sniffDelimiter(string(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse standards table: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("standards table is empty")
	}

	header, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{}
	for i, row := range rows[1:] {
		line := i + 2
		std, err := buildStandard(header, row, ownerID)
		if err != nil {
			stats.Errors = append(stats.Errors, RowError{Line: line, Err: err})
			continue
		}
		stats.Rows++

		created, err := s.store.UpsertRegulatory(ctx, std)
		if err != nil {
			stats.Errors = append(stats.Errors, RowError{Line: line, Err: err})
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	applog.Info(ctx, "standards import finished",
		"rows", stats.Rows, "created", stats.Created,
		"updated", stats.Updated, "rejected", len(stats.Errors))
	return stats, nil
}

// sniffDelimiter picks the separator that splits the first line into the
// most fields. Published tables arrive as comma, semicolon, or tab files.
func sniffDelimiter(data string) rune {
	line, _, _ := strings.Cut(data, "\n")

	best := ','
	bestCount := strings.Count(line, ",")
	for _, sep := range []rune{';', '\t'} {
		if n := strings.Count(line, string(sep)); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

// columnAliases maps the header spellings seen across table revisions onto
// canonical column keys. Category columns are handled separately.
var columnAliases = map[string][]string{
	"name":      {"name", "material", "material name", "ingredient", "substance"},
	"cas":       {"cas", "cas number", "cas no", "cas no.", "cas #", "cas registry number"},
	"amendment": {"amendment", "amendment number", "last amendment"},
	"type":      {"type", "restriction type", "standard type"},
	"risk":      {"risk", "intrinsic property", "critical effect"},
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(s, `"`)))
}

// mapHeader resolves each header cell to a column key. The name column is
// required; everything else is optional.
func mapHeader(row []string) (map[string]int, error) {
	header := make(map[string]int)
	for idx, cell := range row {
		key := normalizeHeader(cell)
		if key == "" {
			continue
		}
		if cat, ok := categoryIndex(key); ok {
			header[models.CategoryColumns[cat]] = idx
			continue
		}
		for canonical, aliases := range columnAliases {
			for _, alias := range aliases {
				if key == alias {
					header[canonical] = idx
				}
			}
		}
	}
	if _, ok := header["name"]; !ok {
		return nil, fmt.Errorf("standards table has no recognizable name column: %q", row)
	}
	return header, nil
}

// categoryIndex recognizes "cat 1", "cat1", "category 1", and "cat 5a"
// style headers, returning the zero-based category index.
func categoryIndex(key string) (int, bool) {
	for _, prefix := range []string{"category", "cat"} {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(strings.TrimLeft(rest, ". "))
		rest = strings.TrimRight(rest, "abcd")
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > 12 {
			return 0, false
		}
		return n - 1, true
	}
	return 0, false
}

func cell(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func buildStandard(header map[string]int, row []string, ownerID uint) (*models.RegulatoryStandard, error) {
	name := cell(header, row, "name")
	if name == "" {
		return nil, errors.New("missing material name")
	}

	rawCAS := cell(header, row, "cas")
	cas := enrich.ExtractCAS(rawCAS)
	if cas == "" {
		return nil, fmt.Errorf("no valid CAS number in %q", rawCAS)
	}

	std := &models.RegulatoryStandard{
		Name:      name,
		CAS:       cas,
		Amendment: cell(header, row, "amendment"),
		Type:      cell(header, row, "type"),
		Risk:      cell(header, row, "risk"),
		OwnerID:   ownerID,
	}

	var limits [12]float64
	for i, column := range models.CategoryColumns {
		limits[i] = ParseLimit(cell(header, row, column))
	}
	std.SetCategoryLimits(limits)
	return std, nil
}

// ParseLimit converts one limit cell to a percentage. Blank cells and the
// "not restricted" markers mean unrestricted. Everything that is not a
// percentage between 0 and 100 is a prohibition: a cell we cannot read must
// never relax a limit, so one garbage cell costs a category, not the row.
func ParseLimit(value string) float64 {
	v := strings.TrimSpace(value)
	switch strings.ToUpper(v) {
	case "", "-", "N/A", "NA", "NR", "NOT RESTRICTED":
		return models.LimitUnrestricted
	}

	v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
	v = strings.ReplaceAll(v, ",", ".")
	limit, err := strconv.ParseFloat(v, 64)
	if err != nil || limit < 0 || limit > 100 {
		return models.LimitProhibited
	}
	return limit
}
