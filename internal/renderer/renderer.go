// Package renderer merges per-recipient data into a certificate layout and
// produces the final PDF document.
package renderer

import (
	"bytes"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/templates"
)

// creationDate pins the PDF metadata so rendering is a pure function of
// its inputs: the same (template, fields, row) tuple yields byte-identical
// output.
var creationDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// core PDF fonts available without embedding
var coreFonts = map[string]string{
	"helvetica": "Helvetica",
	"arial":     "Arial",
	"times":     "Times",
	"courier":   "Courier",
}

// Renderer renders certificates from catalog templates or fully custom
// backgrounds.
type Renderer struct {
	catalog *templates.Catalog
}

// New creates a renderer backed by the given template catalog.
func New(catalog *templates.Catalog) *Renderer {
	return &Renderer{catalog: catalog}
}

// layout is the fully resolved page description for one run.
type layout struct {
	page       models.PageSize
	background *models.RGB
	border     *models.BorderStyle
	bgImage    *models.ImageAsset // full-page custom background
	fields     []models.FieldPosition
	textColor  *models.RGB
}

// Render produces the certificate PDF for one recipient. Coordinates are
// millimeters from the top-left origin, so placement is identical across
// the whole batch regardless of raster resolution. Failures are
// RENDER_ERROR and abort only this recipient's task.
func (r *Renderer) Render(cfg *models.CertificateConfig, fields models.ResolvedFields) ([]byte, error) {
	lay, err := r.resolveLayout(cfg)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: lay.page.Width, Ht: lay.page.Height},
	})
	pdf.SetCreationDate(creationDate)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if lay.background != nil {
		pdf.SetFillColor(lay.background.R, lay.background.G, lay.background.B)
		pdf.Rect(0, 0, lay.page.Width, lay.page.Height, "F")
	}

	if lay.bgImage != nil {
		if err := drawImage(pdf, "background", lay.bgImage); err != nil {
			return nil, err
		}
	}

	if lay.border != nil {
		b := lay.border
		pdf.SetDrawColor(b.Color.R, b.Color.G, b.Color.B)
		pdf.SetLineWidth(b.WidthMM)
		pdf.Rect(b.InsetMM, b.InsetMM, lay.page.Width-2*b.InsetMM, lay.page.Height-2*b.InsetMM, "D")
	}

	for _, f := range lay.fields {
		value, ok := fields[f.Name]
		if !ok || value == "" {
			// optional field with no value: leave the spot blank
			continue
		}

		family, ok := coreFonts[strings.ToLower(f.Font.Family)]
		if !ok {
			return nil, models.Errorf(models.KindRender, "font %q is not available", f.Font.Family)
		}

		size := f.Font.SizePt
		if size <= 0 {
			size = 12
		}
		pdf.SetFont(family, strings.ToUpper(f.Font.Style), size)

		color := f.Color
		if lay.textColor != nil {
			color = *lay.textColor
		}
		pdf.SetTextColor(color.R, color.G, color.B)

		text := tr(value)
		x := f.X
		switch f.Align {
		case models.AlignCenter:
			x -= pdf.GetStringWidth(text) / 2
		case models.AlignRight:
			x -= pdf.GetStringWidth(text)
		}
		pdf.Text(x, f.Y, text)
	}

	if cfg.Logo != nil {
		if err := drawImage(pdf, "logo", cfg.Logo); err != nil {
			return nil, err
		}
	}
	if cfg.Signature != nil {
		if err := drawImage(pdf, "signature", cfg.Signature); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, models.NewError(models.KindRender, err)
	}
	return buf.Bytes(), nil
}

// resolveLayout picks the custom background or the named catalog template
// and applies style overrides. A custom template's field placement comes
// exclusively from CustomFieldPositions.
func (r *Renderer) resolveLayout(cfg *models.CertificateConfig) (*layout, error) {
	if cfg.UsesCustomTemplate() {
		ct := cfg.CustomTemplate
		if ct.Page.Width <= 0 || ct.Page.Height <= 0 {
			return nil, models.Errorf(models.KindRender, "custom template has no page size")
		}
		if len(cfg.CustomFieldPositions) == 0 {
			return nil, models.Errorf(models.KindRender, "custom template has no field positions")
		}
		page := orientPage(ct.Page, ct.Orientation)
		return &layout{
			page: page,
			bgImage: &models.ImageAsset{
				Data:     ct.Data,
				X:        0,
				Y:        0,
				WidthMM:  page.Width,
				HeightMM: page.Height,
			},
			fields: cfg.CustomFieldPositions,
		}, nil
	}

	tmpl, err := r.catalog.Get(cfg.TemplateID)
	if err != nil {
		return nil, models.NewError(models.KindRender, err)
	}

	lay := &layout{
		page:       orientPage(tmpl.Page, tmpl.Orientation),
		background: tmpl.Background,
		border:     tmpl.Border,
		fields:     tmpl.Fields,
	}

	if o := cfg.Overrides; o != nil {
		if o.Background != nil {
			lay.background = o.Background
		}
		if o.Border != nil {
			lay.border = o.Border
		}
		if o.TextColor != nil {
			lay.textColor = o.TextColor
		}
	}

	return lay, nil
}

// orientPage rotates the page when its dimensions disagree with the
// declared orientation. An empty orientation takes the size literally.
func orientPage(page models.PageSize, o models.Orientation) models.PageSize {
	switch {
	case o == models.OrientationLandscape && page.Width < page.Height,
		o == models.OrientationPortrait && page.Width > page.Height:
		page.Width, page.Height = page.Height, page.Width
	}
	return page
}

// drawImage decodes and composites one image asset at its configured
// offset. When only one dimension is declared the other is derived from
// the decoded image's aspect ratio.
func drawImage(pdf *fpdf.Fpdf, name string, asset *models.ImageAsset) error {
	raw, format, natW, natH, err := decodeAsset(asset.Data)
	if err != nil {
		return models.Errorf(models.KindRender, "%s image: %v", name, err)
	}

	w, h := asset.WidthMM, asset.HeightMM
	switch {
	case w <= 0 && h <= 0:
		return models.Errorf(models.KindRender, "%s image has no declared dimensions", name)
	case w <= 0:
		w = h * float64(natW) / float64(natH)
	case h <= 0:
		h = w * float64(natH) / float64(natW)
	}

	opts := fpdf.ImageOptions{ImageType: format, ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(raw))
	pdf.ImageOptions(name, asset.X, asset.Y, w, h, false, opts, 0, "")

	if pdf.Err() {
		return models.Errorf(models.KindRender, "%s image: %v", name, pdf.Error())
	}
	return nil
}
