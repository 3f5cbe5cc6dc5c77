package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"go-office-trash/internal/model"
	"go-office-trash/internal/util"
)

const (
	ExportJSON = "json"
	ExportCSV  = "csv"
)

var csvHeader = []string{
	"id",
	"entity_type",
	"original_id",
	"entity_name",
	"deleted_by_name",
	"deleted_at",
	"delete_reason",
	"delete_type",
	"can_restore",
	"restore_complexity",
	"retention_days",
	"auto_delete_at",
	"size",
	"dependencies_count",
}

// Export renders the active trash, newest deletion first. It returns the
// document body and its content type.
func (s *TrashService) Export(ctx context.Context, format string) ([]byte, string, error) {
	entries, err := s.trash.ListActive(ctx)
	if err != nil {
		return nil, "", err
	}
	sort.SliceStable(entries, func(i int, j int) bool {
		return entries[i].DeletedAt.After(entries[j].DeletedAt)
	})

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", ExportJSON:
		body, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("encode trash export: %w", err)
		}
		return body, "application/json", nil
	case ExportCSV:
		body, err := exportCSV(entries)
		if err != nil {
			return nil, "", err
		}
		return body, "text/csv; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: export format must be json or csv", model.ErrInvalidInput)
	}
}

func exportCSV(entries []model.TrashEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.ID,
			string(e.EntityType),
			util.CSVCell(e.OriginalID),
			util.CSVCell(e.EntityName),
			util.CSVCell(e.DeletedByName),
			e.DeletedAt.UTC().Format(time.RFC3339),
			util.CSVCell(e.DeleteReason),
			string(e.DeleteType),
			strconv.FormatBool(e.CanRestore),
			string(e.RestoreComplexity),
			strconv.Itoa(e.RetentionDays),
			e.AutoDeleteAt.UTC().Format(time.RFC3339),
			humanBytes(e.Size),
			strconv.Itoa(e.DependenciesCount),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func humanBytes(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(size))
}
