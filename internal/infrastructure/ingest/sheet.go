package ingest

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// Sheet names of the authored workbook.
const (
	fusionSheet = "cards"
	graphSheet  = "nodes"
)

// SheetReader loads authored fusion cards and graph nodes from an xlsx
// workbook. The first row of each sheet is a header; columns are matched by
// header name so authors can reorder them.
type SheetReader struct{}

func NewSheetReader() *SheetReader {
	return &SheetReader{}
}

// ReadFusionCards loads the cards sheet. Expected headers: id, axis,
// fusion_key, text, saju_refs, astro_refs. Reference cells hold
// semicolon-separated tokens.
func (r *SheetReader) ReadFusionCards(path string) ([]domain.VectorRecord, error) {
	rows, err := readSheet(path, fusionSheet)
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows, func(row map[string]string) (domain.VectorRecord, bool) {
		id := row["id"]
		text := row["text"]
		if id == "" || text == "" {
			return domain.VectorRecord{}, false
		}
		return domain.VectorRecord{
			ID:   id,
			Text: text,
			Metadata: map[string]any{
				domain.MetaDomain:    domain.CrossDomainTag,
				domain.MetaAxis:      string(domain.ParseAxis(row["axis"])),
				domain.MetaFusionKey: row["fusion_key"],
				domain.MetaSajuRefs:  splitRefs(row["saju_refs"]),
				domain.MetaAstroRefs: splitRefs(row["astro_refs"]),
			},
		}, true
	})
}

// ReadGraphNodes loads the nodes sheet. Expected headers: id, domain, title,
// text, axis. The domain column holds saju or astro.
func (r *SheetReader) ReadGraphNodes(path string) ([]domain.VectorRecord, error) {
	rows, err := readSheet(path, graphSheet)
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows, func(row map[string]string) (domain.VectorRecord, bool) {
		id := row["id"]
		text := row["text"]
		if id == "" || text == "" {
			return domain.VectorRecord{}, false
		}
		return domain.VectorRecord{
			ID:   id,
			Text: text,
			Metadata: map[string]any{
				domain.MetaDomain: row["domain"],
				domain.MetaAxis:   string(domain.ParseAxis(row["axis"])),
				"title":           row["title"],
			},
		}, true
	})
}

func readSheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func recordsFromRows(rows [][]string, build func(map[string]string) (domain.VectorRecord, bool)) ([]domain.VectorRecord, error) {
	if len(rows) < 2 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	out := make([]domain.VectorRecord, 0, len(rows)-1)
	seen := make(map[string]struct{}, len(rows)-1)
	for _, raw := range rows[1:] {
		row := make(map[string]string, len(header))
		for i, cell := range raw {
			if i >= len(header) || header[i] == "" {
				continue
			}
			row[header[i]] = strings.TrimSpace(cell)
		}
		rec, ok := build(row)
		if !ok {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}

func splitRefs(raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ";", ",")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
