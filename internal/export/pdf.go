// Package export renders assembled referral packets for the outside world:
// PDF documents, e-mail drafts and archived copies.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/packet"
)

// ErrNoFont is returned when none of the candidate fonts can be loaded
var ErrNoFont = errors.New("no usable TTF font found")

// DefaultFontPaths are tried in order when no font path is configured
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontFamily = "DejaVu"
	pageMargin = 56.0
	pageBottom = 780.0
)

var fontSizes = map[packet.Style]float64{
	packet.StyleMasthead:   14,
	packet.StyleTitle:      16,
	packet.StyleHeading:    14,
	packet.StyleSubheading: 11,
	packet.StyleEmphasis:   12,
	packet.StyleBody:       10,
}

// PDFRenderer lays a packet document out on A4 pages
type PDFRenderer struct {
	fontPaths []string
	logger    *zap.Logger
}

// NewPDFRenderer creates a renderer. An empty fontPath falls back to DefaultFontPaths.
func NewPDFRenderer(fontPath string, logger *zap.Logger) *PDFRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := DefaultFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, DefaultFontPaths...)
	}
	return &PDFRenderer{fontPaths: paths, logger: logger}
}

// Render produces PDF bytes for doc
func (r *PDFRenderer) Render(doc packet.Document) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := r.loadFont(&pdf); err != nil {
		return nil, err
	}

	width := gopdf.PageSizeA4.W - 2*pageMargin
	pdf.SetXY(pageMargin, pageMargin)

	for _, section := range doc.Sections {
		for _, line := range section.Lines {
			size := fontSizes[line.Style]
			if size == 0 {
				size = fontSizes[packet.StyleBody]
			}
			if err := pdf.SetFont(fontFamily, "", size); err != nil {
				return nil, fmt.Errorf("set font: %w", err)
			}
			if err := r.writeWrapped(&pdf, line.Text, width, size*1.4); err != nil {
				return nil, err
			}
			pdf.Br(size * 0.5)
		}

		if section.Rule {
			pdf.Br(5)
			pdf.SetLineWidth(0.5)
			y := pdf.GetY()
			pdf.Line(pageMargin, y, pageMargin+width, y)
			pdf.Br(10)
		} else {
			pdf.Br(10)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range r.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			lastErr = err
			continue
		}
		r.logger.Debug("pdf font loaded", zap.String("path", path))
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNoFont, lastErr)
}

func (r *PDFRenderer) writeWrapped(pdf *gopdf.GoPdf, text string, width, lineHeight float64) error {
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			pdf.Br(lineHeight)
			continue
		}
		lines, err := pdf.SplitText(para, width)
		if err != nil {
			return fmt.Errorf("split text: %w", err)
		}
		for _, l := range lines {
			if pdf.GetY()+lineHeight > pageBottom {
				pdf.AddPage()
				pdf.SetXY(pageMargin, pageMargin)
			}
			pdf.SetX(pageMargin)
			if err := pdf.Cell(nil, l); err != nil {
				return fmt.Errorf("write cell: %w", err)
			}
			pdf.Br(lineHeight)
		}
	}
	return nil
}
