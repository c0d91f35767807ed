// Package pdfreport renders a case's photo evidence into the report document
// bundled with the audit email: one page per category, every photo scaled to
// fit with an opaque metadata overlay.
package pdfreport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/fieldverify/field-verify-api/models"
)

// Image is a fetched photo ready for rendering.
type Image struct {
	Photo  models.Photo
	Data   []byte
	Format string // "JPG" or "PNG"
}

// CategorySection groups fetched images under their checklist category.
type CategorySection struct {
	Category string
	Images   []Image
}

const (
	pageMargin    = 10.0
	headingHeight = 10.0
	overlayHeight = 18.0
	imageGap      = 6.0
)

// Build renders the report. Sections render in the order given so the
// document layout is deterministic.
func Build(caseRecord models.Case, sections []CategorySection) ([]byte, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("report requires at least one populated category")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*pageMargin

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Verification Report - %s", caseRecord.RefNo), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Candidate: %s", caseRecord.CandidateName), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Client: %s | Check: %s", caseRecord.Client, caseRecord.CheckType), "", 1, "C", false, 0, "")

	for si, section := range sections {
		pdf.AddPage()
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, headingHeight, section.Category, "B", 1, "L", false, 0, "")

		y := pageMargin + headingHeight + imageGap
		for ii, img := range section.Images {
			name := fmt.Sprintf("photo-%d-%d", si, ii)
			opts := gofpdf.ImageOptions{ImageType: img.Format, ReadDpi: false}
			info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
			if pdf.Err() {
				return nil, fmt.Errorf("failed to register image %s: %v", name, pdf.Error())
			}

			w, h := fitImage(info.Width(), info.Height(), contentW, pageH/2-overlayHeight)
			if y+h+overlayHeight > pageH-pageMargin {
				pdf.AddPage()
				y = pageMargin
			}
			pdf.ImageOptions(name, pageMargin, y, w, h, false, opts, 0, "")
			drawOverlay(pdf, img.Photo, pageMargin, y+h, w)
			y += h + overlayHeight + imageGap
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fitImage scales (iw, ih) to fit within (maxW, maxH) preserving aspect.
func fitImage(iw, ih, maxW, maxH float64) (float64, float64) {
	if iw <= 0 || ih <= 0 {
		return maxW, maxH
	}
	scale := maxW / iw
	if ih*scale > maxH {
		scale = maxH / ih
	}
	return iw * scale, ih * scale
}

// drawOverlay paints the opaque metadata strip directly under a photo.
func drawOverlay(pdf *gofpdf.Fpdf, p models.Photo, x, y, w float64) {
	pdf.SetFillColor(255, 255, 255)
	pdf.Rect(x, y, w, overlayHeight, "F")
	pdf.SetXY(x+1, y+1)
	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(30, 30, 30)

	location := "Location unavailable"
	if p.Geotag != nil {
		location = fmt.Sprintf("%.6f, %.6f", p.Geotag.Latitude, p.Geotag.Longitude)
	}
	captured := p.Timestamp.Time().UTC().Format(time.RFC1123)

	pdf.MultiCell(w-2, 4, fmt.Sprintf("Location: %s\nCaptured: %s\n%s", location, captured, p.Address), "", "L", false)
}

// DetectFormat sniffs the image type from its magic bytes, defaulting to JPG.
func DetectFormat(data []byte) string {
	if len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "PNG"
	}
	return "JPG"
}
