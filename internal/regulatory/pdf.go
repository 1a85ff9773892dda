package regulatory

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"essentia/internal/enrich"
	applog "essentia/internal/log"
	"essentia/models"
)

// ImportPDF scans a published prohibition notice for entries and stores each
// as a fully prohibited standard. Notices list one material per line with its
// registry number; tabular amendments should be imported as CSV instead.
func (s *Service) ImportPDF(ctx context.Context, data []byte, ownerID uint) (*ImportStats, error) {
	text, err := extractPDFText(data)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	standards := parseProhibitions(text)
	if len(standards) == 0 {
		return nil, fmt.Errorf("no prohibition entries found in pdf")
	}

	stats := &ImportStats{}
	for _, std := range standards {
		std.OwnerID = ownerID
		stats.Rows++

		created, err := s.store.UpsertRegulatory(ctx, std)
		if err != nil {
			stats.Errors = append(stats.Errors, RowError{Err: err})
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	applog.Info(ctx, "prohibition import finished",
		"rows", stats.Rows, "created", stats.Created,
		"updated", stats.Updated, "rejected", len(stats.Errors))
	return stats, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// parseProhibitions extracts prohibited materials from notice text. A line
// counts when it carries a registry number and a prohibition keyword; the
// material name is the text preceding the registry number.
func parseProhibitions(text string) []*models.RegulatoryStandard {
	var (
		standards []*models.RegulatoryStandard
		seen      = make(map[string]struct{})
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "prohibit") && !strings.Contains(lower, "banned") {
			continue
		}
		cas := enrich.ExtractCAS(line)
		if cas == "" {
			continue
		}
		if _, dup := seen[cas]; dup {
			continue
		}
		seen[cas] = struct{}{}

		name := prohibitionName(line, cas)
		if name == "" {
			name = cas
		}

		std := &models.RegulatoryStandard{
			Name: name,
			CAS:  cas,
			Type: "prohibition",
		}
		std.SetCategoryLimits([12]float64{})
		standards = append(standards, std)
	}
	return standards
}

func prohibitionName(line, cas string) string {
	name, _, _ := strings.Cut(line, cas)
	name = strings.Trim(name, " \t,;:-")
	return name
}
