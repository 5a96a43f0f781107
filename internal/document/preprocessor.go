package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// Kind is the document class decided from the declared content type with
// the file extension as fallback.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// maxRasterWidth bounds page image size before base64 encoding.
const maxRasterWidth = 1600

// Input is what the extraction engine feeds the provider: textual content
// plus optional page images. Temp rasters are tracked for cleanup.
type Input struct {
	Kind       Kind
	Text       string
	ImagePaths []string
	PageCount  int
	FileType   string

	tempPaths []string
}

// Cleanup removes any temporary page rasters. Idempotent and safe to call
// on every exit path.
func (in *Input) Cleanup() {
	for _, path := range in.tempPaths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			continue
		}
	}
	in.tempPaths = nil
}

// Preprocessor classifies input files and turns them into provider input.
type Preprocessor struct {
	maxPages int
	dpiScale float64
	logger   logger.Logger
}

// NewPreprocessor creates a preprocessor. maxPages bounds rasterization,
// dpiScale multiplies the 72dpi PDF base resolution.
func NewPreprocessor(maxPages int, dpiScale float64, log logger.Logger) *Preprocessor {
	if maxPages <= 0 {
		maxPages = 10
	}
	if dpiScale <= 0 {
		dpiScale = 1.5
	}
	return &Preprocessor{
		maxPages: maxPages,
		dpiScale: dpiScale,
		logger:   log,
	}
}

// Classify decides the document class by content-type substring match,
// falling back to the file extension.
func Classify(path, contentType string) Kind {
	ctype := strings.ToLower(contentType)
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case strings.Contains(ctype, "pdf") || ext == ".pdf":
		return KindPDF
	case strings.Contains(ctype, "image") || ext == ".jpg" || ext == ".jpeg" || ext == ".png":
		return KindImage
	default:
		return KindText
	}
}

// Prepare builds the provider input for a file. When localProvider is set,
// the PDF text layer is replaced by a short directive referencing the
// attached page images so the model's context window is not exhausted.
func (p *Preprocessor) Prepare(path, contentType string, localProvider bool) (*Input, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat input file: %w", err)
	}

	kind := Classify(path, contentType)
	ext := strings.ToLower(filepath.Ext(path))

	in := &Input{Kind: kind, FileType: ext, PageCount: 1}

	switch kind {
	case KindPDF:
		text, err := p.ExtractPDFText(path)
		if err != nil {
			return nil, err
		}

		images, err := p.RasterizePages(path)
		if err != nil {
			return nil, err
		}

		in.Text = text
		in.ImagePaths = images
		in.tempPaths = images
		in.PageCount = len(images)

		if localProvider {
			in.Text = fmt.Sprintf("Extracted from the attached %d page(s) invoice image(s).", len(images))
		}

	case KindImage:
		in.ImagePaths = []string{path}
		in.Text = "Process this invoice image"

	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read text input: %w", err)
		}
		in.Text = string(data)
	}

	return in, nil
}

// ExtractPDFText reads the embedded text layer, each page prefixed with a
// 1-based page marker.
func (p *Preprocessor) ExtractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("Failed to read page text layer",
				logger.String("file", path),
				logger.Int("page", i),
				logger.Error(err),
			)
			continue
		}

		sb.WriteString(fmt.Sprintf("\n--- Page %d ---\n", i))
		sb.WriteString(text)
	}

	return sb.String(), nil
}

// RasterizePages renders up to maxPages pages to individual PNG files
// next to the source file, named to avoid collisions across processes.
func (p *Preprocessor) RasterizePages(path string) ([]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rasterization: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if numPages > p.maxPages {
		numPages = p.maxPages
	}

	dir := filepath.Dir(path)
	pid := os.Getpid()
	unique := uuid.New().String()[:8]
	dpi := 72.0 * p.dpiScale

	paths := make([]string, 0, numPages)
	for i := 0; i < numPages; i++ {
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			cleanupFiles(paths)
			return nil, fmt.Errorf("rasterize page %d: %w", i+1, err)
		}

		out := imaging.Clone(img)
		if out.Bounds().Dx() > maxRasterWidth {
			out = imaging.Resize(out, maxRasterWidth, 0, imaging.Lanczos)
		}

		target := filepath.Join(dir, fmt.Sprintf("invpage_%s_%d_%d.png", unique, pid, i))
		if err := imaging.Save(out, target); err != nil {
			cleanupFiles(paths)
			return nil, fmt.Errorf("save page raster: %w", err)
		}
		paths = append(paths, target)
	}

	return paths, nil
}

func cleanupFiles(paths []string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}
