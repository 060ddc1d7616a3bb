package renderer

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	catalog, err := templates.Load("")
	require.NoError(t, err)
	return New(catalog)
}

// pngBase64 builds a small PNG with the given pixel dimensions.
func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRender_CatalogTemplate(t *testing.T) {
	r := newRenderer(t)

	cfg := &models.CertificateConfig{TemplateID: "classic"}
	fields := models.ResolvedFields{
		"title":         "Certificate of Completion",
		"recipientName": "Alice Example",
		"courseTitle":   "Go 101",
		"issueDate":     "2026-01-15",
	}

	out, err := r.Render(cfg, fields)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), "output should be a PDF document")
}

// Re-rendering the same tuple twice yields byte-identical output.
func TestRender_Idempotent(t *testing.T) {
	r := newRenderer(t)

	cfg := &models.CertificateConfig{
		TemplateID: "modern",
		Logo:       &models.ImageAsset{Data: pngBase64(t, 20, 10), X: 90, Y: 20, WidthMM: 30},
	}
	fields := models.ResolvedFields{
		"recipientName": "Bob",
		"courseTitle":   "Distributed Systems",
	}

	first, err := r.Render(cfg, fields)
	require.NoError(t, err)
	second, err := r.Render(cfg, fields)
	require.NoError(t, err)

	assert.Equal(t, first, second, "renderer must be a pure function of its inputs")
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newRenderer(t)

	_, err := r.Render(&models.CertificateConfig{TemplateID: "nope"}, models.ResolvedFields{})
	require.Error(t, err)
	assert.Equal(t, models.KindRender, models.KindOf(err))
}

func TestRender_UnknownFont(t *testing.T) {
	r := newRenderer(t)

	cfg := &models.CertificateConfig{
		CustomTemplate: &models.CustomTemplate{
			Data: pngBase64(t, 40, 30),
			Page: models.PageSize{Width: 200, Height: 150},
		},
		CustomFieldPositions: []models.FieldPosition{
			{Name: "recipientName", X: 50, Y: 50, Font: models.FontSpec{Family: "Comic Sans", SizePt: 14}},
		},
	}

	_, err := r.Render(cfg, models.ResolvedFields{"recipientName": "Alice"})
	require.Error(t, err)
	assert.Equal(t, models.KindRender, models.KindOf(err))
	assert.Contains(t, err.Error(), "font")
}

func TestRender_CorruptImage(t *testing.T) {
	r := newRenderer(t)

	cfg := &models.CertificateConfig{
		TemplateID: "minimal",
		Logo:       &models.ImageAsset{Data: "bm90IGFuIGltYWdl", X: 10, Y: 10, WidthMM: 20}, // "not an image"
	}
	fields := models.ResolvedFields{"recipientName": "Alice", "courseTitle": "Go"}

	_, err := r.Render(cfg, fields)
	require.Error(t, err)
	assert.Equal(t, models.KindRender, models.KindOf(err))
}

func TestRender_CustomTemplateSupersedesCatalog(t *testing.T) {
	r := newRenderer(t)

	cfg := &models.CertificateConfig{
		// TemplateID deliberately set; the custom background must win
		TemplateID: "classic",
		CustomTemplate: &models.CustomTemplate{
			Data: pngBase64(t, 80, 60),
			Page: models.PageSize{Width: 160, Height: 120},
		},
		CustomFieldPositions: []models.FieldPosition{
			{Name: "recipientName", X: 80, Y: 60, Font: models.FontSpec{Family: "Helvetica", SizePt: 18}, Align: models.AlignCenter},
		},
	}

	out, err := r.Render(cfg, models.ResolvedFields{"recipientName": "Carol"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRender_CustomTemplateWithoutPositions(t *testing.T) {
	r := newRenderer(t)

	cfg := &models.CertificateConfig{
		CustomTemplate: &models.CustomTemplate{
			Data: pngBase64(t, 10, 10),
			Page: models.PageSize{Width: 100, Height: 100},
		},
	}

	_, err := r.Render(cfg, models.ResolvedFields{})
	require.Error(t, err)
	assert.Equal(t, models.KindRender, models.KindOf(err))
}

func TestRender_MissingOptionalFieldLeftBlank(t *testing.T) {
	r := newRenderer(t)

	cfg := &models.CertificateConfig{TemplateID: "minimal"}
	// issueDate is optional and absent
	fields := models.ResolvedFields{"recipientName": "Dan", "courseTitle": "Testing"}

	_, err := r.Render(cfg, fields)
	assert.NoError(t, err)
}

// A landscape declaration rotates a portrait-ordered page size, so both
// spellings of the same template render byte-identical documents.
func TestRender_OrientationRotatesPage(t *testing.T) {
	r := newRenderer(t)
	bg := pngBase64(t, 40, 30)
	positions := []models.FieldPosition{
		{
			Name:  "recipientName",
			X:     148,
			Y:     100,
			Font:  models.FontSpec{Family: "helvetica", SizePt: 24},
			Align: models.AlignCenter,
			Color: models.RGB{R: 20, G: 20, B: 20},
		},
	}
	fields := models.ResolvedFields{"recipientName": "Alice Example"}

	rotated, err := r.Render(&models.CertificateConfig{
		CustomTemplate: &models.CustomTemplate{
			Data:        bg,
			Page:        models.PageSize{Width: 210, Height: 297},
			Orientation: models.OrientationLandscape,
		},
		CustomFieldPositions: positions,
	}, fields)
	require.NoError(t, err)

	literal, err := r.Render(&models.CertificateConfig{
		CustomTemplate: &models.CustomTemplate{
			Data: bg,
			Page: models.PageSize{Width: 297, Height: 210},
		},
		CustomFieldPositions: positions,
	}, fields)
	require.NoError(t, err)

	assert.Equal(t, literal, rotated)
}

func TestOrientPage(t *testing.T) {
	portrait := models.PageSize{Width: 210, Height: 297}
	landscape := models.PageSize{Width: 297, Height: 210}

	assert.Equal(t, landscape, orientPage(portrait, models.OrientationLandscape))
	assert.Equal(t, portrait, orientPage(landscape, models.OrientationPortrait))
	assert.Equal(t, portrait, orientPage(portrait, models.OrientationPortrait))
	assert.Equal(t, landscape, orientPage(landscape, models.OrientationLandscape))
	assert.Equal(t, portrait, orientPage(portrait, ""), "no declared orientation takes the size literally")
}

func TestDecodeAsset(t *testing.T) {
	raw, format, w, h, err := decodeAsset(pngBase64(t, 16, 8))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 16, w)
	assert.Equal(t, 8, h)
	assert.NotEmpty(t, raw)

	// data URL form
	_, _, _, _, err = decodeAsset("data:image/png;base64," + pngBase64(t, 4, 4))
	assert.NoError(t, err)

	_, _, _, _, err = decodeAsset("!!!not-base64!!!")
	assert.Error(t, err)
}
