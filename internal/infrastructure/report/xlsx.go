// Package report renders document processing reports as spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
)

const (
	summarySheet = "Résumé"
	pagesSheet   = "Pages"
	maxCellText  = 32000
)

type XLSXWriter struct{}

func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

func (XLSXWriter) WriteReport(w io.Writer, doc *domain.Document, pages []domain.ExtractedPage) error {
	if doc == nil {
		return fmt.Errorf("write report: nil document")
	}
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(pagesSheet); err != nil {
		return fmt.Errorf("create pages sheet: %w", err)
	}

	s := doc.Summary
	summary := [][2]any{
		{"Document", doc.Filename},
		{"Identifiant", doc.ID},
		{"Statut", string(doc.Status)},
		{"Erreur", doc.Error},
		{"Pages", s.TotalPages},
		{"Pages natives", s.NativePages},
		{"Pages numérisées", s.ScannedPages},
		{"Images", s.TotalImages},
		{"Tableaux", s.TotalTables},
		{"Chunks", doc.ChunkCount},
		{"Durée (s)", s.ProcessingTime.Seconds()},
	}
	for i, kv := range summary {
		if err := setRow(f, summarySheet, i+1, kv[0], kv[1]); err != nil {
			return err
		}
	}

	headers := []any{"Page", "Type", "Statut", "Méthode", "Images", "Tableaux", "Erreur", "Contenu"}
	if err := setRow(f, pagesSheet, 1, headers...); err != nil {
		return err
	}
	for i, p := range pages {
		err := setRow(f, pagesSheet, i+2,
			p.PageNumber, string(p.Type), string(p.Status), p.ProcessingMethod,
			len(p.Images), len(p.Tables), p.Error, truncate(p.Content, maxCellText),
		)
		if err != nil {
			return err
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)
	_ = f.SetColWidth(pagesSheet, "G", "G", 30)
	_ = f.SetColWidth(pagesSheet, "H", "H", 80)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// truncate keeps text under the spreadsheet cell limit.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
