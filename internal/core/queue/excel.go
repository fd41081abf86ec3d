package queue

import (
	"context"
	"fmt"
	"strings"

	"storyboard/internal/logger"

	"github.com/xuri/excelize/v2"
)

const statusHeader = "状态"

// ExcelQueue reads work items from a spreadsheet with title and URL columns.
// A status column is inserted as the fourth column when absent; rows whose
// status equals CompletionMarker are skipped.
type ExcelQueue struct {
	log      *logger.Logger
	path     string
	enricher *TitleEnricher
	// statusCol is the 1-based status column index, resolved during Load.
	statusCol int
}

func NewExcelQueue(path string, enricher *TitleEnricher) *ExcelQueue {
	return &ExcelQueue{log: logger.New("ExcelQueue"), path: path, enricher: enricher}
}

func (q *ExcelQueue) Load(ctx context.Context) ([]WorkItem, error) {
	f, err := excelize.OpenFile(q.path)
	if err != nil {
		return nil, fmt.Errorf("open queue spreadsheet %s: %w", q.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetList()[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read queue rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	statusIdx := -1
	for i, h := range rows[0] {
		if strings.TrimSpace(h) == statusHeader {
			statusIdx = i
			break
		}
	}
	if statusIdx == -1 {
		// Insert as the fourth column, shifting anything already there
		if err := f.InsertCols(sheet, "D", 1); err != nil {
			return nil, fmt.Errorf("insert status column: %w", err)
		}
		if err := f.SetCellValue(sheet, "D1", statusHeader); err != nil {
			return nil, fmt.Errorf("write status header: %w", err)
		}
		if err := f.Save(); err != nil {
			return nil, fmt.Errorf("save queue after status column insert: %w", err)
		}
		statusIdx = 3
		if rows, err = f.GetRows(sheet); err != nil {
			return nil, fmt.Errorf("re-read queue rows: %w", err)
		}
	}
	q.statusCol = statusIdx + 1

	var items []WorkItem
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rowNum := i + 2

		status := ""
		if statusIdx < len(row) {
			status = strings.TrimSpace(row[statusIdx])
		}
		title := ""
		if len(row) > 0 {
			title = strings.TrimSpace(row[0])
		}
		url := ""
		if len(row) > 1 {
			url = strings.TrimSpace(row[1])
		}

		if status == CompletionMarker {
			q.log.LogInfof("skipping completed row: %s", title)
			continue
		}
		if !strings.Contains(url, "youtube.com") && !strings.Contains(url, "youtu.be") {
			continue
		}

		if title == "" {
			if q.enricher != nil {
				title = q.enricher.Lookup(url)
			}
			if title == "" {
				title = fmt.Sprintf("视频_%d", i+1)
			}
		}

		items = append(items, WorkItem{
			ID:       fmt.Sprintf("row-%d", rowNum),
			Title:    title,
			MediaRef: url,
			Kind:     KindYouTube,
			RowIndex: rowNum,
		})
	}
	return items, nil
}

// MarkComplete writes the completion marker into the item's status cell and
// re-saves the whole queue file. Writing the marker twice is harmless.
func (q *ExcelQueue) MarkComplete(ctx context.Context, item WorkItem) error {
	if item.RowIndex < 2 {
		return fmt.Errorf("item %s has no spreadsheet row", item.ID)
	}
	f, err := excelize.OpenFile(q.path)
	if err != nil {
		return fmt.Errorf("open queue spreadsheet %s: %w", q.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetList()[0]
	col := q.statusCol
	if col == 0 {
		col = 4
	}
	cell, err := excelize.CoordinatesToCellName(col, item.RowIndex)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, CompletionMarker); err != nil {
		return fmt.Errorf("write status cell: %w", err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	q.log.LogInfof("marked %q complete in queue", item.Title)
	return nil
}
