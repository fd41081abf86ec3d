package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storyboard/internal/core/extract"
	"storyboard/internal/logger"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName   = "分镜表"
	minColWidth = 20
	maxColWidth = 100
)

// SaveResult reports the persistence outcome. Failures are values, not
// errors: zero parsed rows or an unverifiable write both come back with
// Success false and a reason.
type SaveResult struct {
	Success    bool
	OutputPath string
	Reason     string
	// NoRows distinguishes "content parsed to zero rows" from write
	// failures, so callers can report the item as skipped rather than failed.
	NoRows bool
}

type Service struct {
	log *logger.Logger
}

func NewService() *Service {
	return &Service{log: logger.New("Persistence")}
}

// Save parses raw result content into storyboard rows and writes them as a
// spreadsheet under outputRoot, inside a fresh subdirectory named from the
// sanitized title. Re-saving the same title rewrites the same artifact, so a
// retry after a partial failure is safe.
func (s *Service) Save(title, content, outputRoot string) SaveResult {
	if content == "" {
		return SaveResult{Reason: "empty result content"}
	}

	rows := extract.ParseRows(content)
	if len(rows) == 0 {
		s.log.LogWarnf("no storyboard rows parsed for %q", title)
		return SaveResult{Reason: "no valid storyboard rows in result", NoRows: true}
	}

	base := SanitizeFilename(title)
	if title == "" {
		base = "分析结果_" + time.Now().Format("20060102_150405")
	}

	dir := filepath.Join(outputRoot, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SaveResult{Reason: fmt.Sprintf("create output dir: %v", err)}
	}

	path := filepath.Join(dir, base+".xlsx")
	if err := s.writeWorkbook(path, rows); err != nil {
		return SaveResult{Reason: fmt.Sprintf("write workbook: %v", err)}
	}

	// The write must be verifiable on disk before the queue gets marked
	if _, err := os.Stat(path); err != nil {
		return SaveResult{Reason: "output file missing after save"}
	}

	s.log.LogSuccessf("saved %d rows to %s", len(rows), path)
	return SaveResult{Success: true, OutputPath: path}
}

func (s *Service) writeWorkbook(path string, rows []extract.StoryboardRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headers := []string{extract.HeaderShot, extract.HeaderKeyframe, extract.HeaderVideo}
	widths := make([]int, len(headers))
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
		widths[i] = len([]rune(h))
	}

	for r, row := range rows {
		values := []string{
			fmt.Sprintf("%s%d", extract.HeaderShot, row.ShotNumber),
			row.KeyframePrompt,
			row.VideoPrompt,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
			if n := len([]rune(v)); n > widths[c] {
				widths[c] = n
			}
		}
	}

	// Auto-size columns to content, clamped to a readable range
	for i, w := range widths {
		width := w + 2
		if width < minColWidth {
			width = minColWidth
		}
		if width > maxColWidth {
			width = maxColWidth
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, float64(width)); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
