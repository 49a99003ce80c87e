package internal

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// RemoveHeaderFooterCrop crops the top and bottom bands of every page.
// top and bottom are in points (1 pt = 1/72 inch).
func RemoveHeaderFooterCrop(inputPath, outputPath string, top, bottom float64) error {
	conf := api.LoadConfiguration()

	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(inputPath, outputPath, []string{"1-"}, box, conf); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}
	return nil
}
