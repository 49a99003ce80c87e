package loader

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"auticare/loader/internal"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Crop is the header/footer band, in points, removed from every page before
// text extraction. The zero value disables cropping.
type Crop struct {
	Top    float64
	Bottom float64
}

func (c Crop) enabled() bool {
	return c.Top > 0 || c.Bottom > 0
}

// licensed switches PDF text extraction to unipdf. Without a key pages are
// decoded from their content streams with pdfcpu.
var licensed atomic.Bool

// SetLicense registers the unipdf metered key. An empty key is a no-op.
func SetLicense(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("unipdf license: %w", err)
	}
	licensed.Store(true)
	return nil
}

// ReadPages returns the text of each page. Plain-text files are read as a
// single page.
func ReadPages(path string, crop Crop) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []string{string(data)}, nil
	case ".pdf":
		return readPDF(path, crop)
	default:
		return nil, fmt.Errorf("unsupported document type %q", filepath.Ext(path))
	}
}

func readPDF(path string, crop Crop) ([]string, error) {
	src := path
	if crop.enabled() {
		tmp, err := os.CreateTemp("", "crop-*.pdf")
		if err != nil {
			return nil, err
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		if err := internal.RemoveHeaderFooterCrop(path, tmp.Name(), crop.Top, crop.Bottom); err != nil {
			log.Printf("[PDF] crop failed for %s, using original: %v", path, err)
		} else {
			src = tmp.Name()
		}
	}

	var (
		pages []string
		err   error
	)
	if licensed.Load() {
		pages, err = unipdfPages(src)
	} else {
		pages, err = contentPages(src)
	}
	if err != nil {
		return pages, err
	}
	log.Printf("[PDF] %s: %d pages extracted", filepath.Base(path), len(pages))
	return pages, nil
}

func unipdfPages(src string) ([]string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return pages, fmt.Errorf("page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return pages, fmt.Errorf("page %d extractor: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return pages, fmt.Errorf("page %d text: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
