package models

// Orientation of the certificate page.
type Orientation string

// Orientation constants.
const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Alignment of a text field around its x anchor.
type Alignment string

// Alignment constants.
const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// PageSize is the physical page size in millimeters.
type PageSize struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// RGB is a 0-255 color triple.
type RGB struct {
	R int `json:"r" yaml:"r"`
	G int `json:"g" yaml:"g"`
	B int `json:"b" yaml:"b"`
}

// FontSpec describes the font of a text field. Style is a combination of
// "B" and "I" in fpdf notation; empty means regular.
type FontSpec struct {
	Family string  `json:"family" yaml:"family"`
	Style  string  `json:"style,omitempty" yaml:"style,omitempty"`
	SizePt float64 `json:"size_pt" yaml:"size_pt"`
}

// FieldPosition places one named field on the page. Coordinates are in
// millimeters from the page's top-left origin, independent of raster
// resolution.
type FieldPosition struct {
	Name     string    `json:"name" yaml:"name"`
	X        float64   `json:"x" yaml:"x"`
	Y        float64   `json:"y" yaml:"y"`
	Font     FontSpec  `json:"font" yaml:"font"`
	Align    Alignment `json:"align,omitempty" yaml:"align,omitempty"`
	Color    RGB       `json:"color" yaml:"color"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// BorderStyle draws a rectangular border inset from the page edges.
type BorderStyle struct {
	Color   RGB     `json:"color" yaml:"color"`
	WidthMM float64 `json:"width_mm" yaml:"width_mm"`
	InsetMM float64 `json:"inset_mm" yaml:"inset_mm"`
}

// CertificateTemplate is a reusable read-only certificate layout selected
// by id: orientation, physical page size, named field positions and style.
type CertificateTemplate struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Orientation Orientation     `json:"orientation" yaml:"orientation"`
	Page        PageSize        `json:"page" yaml:"page"`
	Background  *RGB            `json:"background,omitempty" yaml:"background,omitempty"`
	Border      *BorderStyle    `json:"border,omitempty" yaml:"border,omitempty"`
	Fields      []FieldPosition `json:"fields" yaml:"fields"`
}

// Field returns the position for a field name and whether it exists.
func (t *CertificateTemplate) Field(name string) (FieldPosition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldPosition{}, false
}

// RequiredFields returns the names of all required fields.
func (t *CertificateTemplate) RequiredFields() []string {
	var out []string
	for _, f := range t.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// ImageAsset is an opaque image payload supplied base64-encoded with its
// placement and declared physical dimensions in millimeters. A zero WidthMM
// or HeightMM is derived from the decoded image's aspect ratio.
type ImageAsset struct {
	Data     string  `json:"data" yaml:"data"` // base64
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	WidthMM  float64 `json:"width_mm,omitempty" yaml:"width_mm,omitempty"`
	HeightMM float64 `json:"height_mm,omitempty" yaml:"height_mm,omitempty"`
}

// StyleOverrides optionally replaces template style attributes for one run.
type StyleOverrides struct {
	Background *RGB         `json:"background,omitempty" yaml:"background,omitempty"`
	Border     *BorderStyle `json:"border,omitempty" yaml:"border,omitempty"`
	TextColor  *RGB         `json:"text_color,omitempty" yaml:"text_color,omitempty"`
}

// CustomTemplate is a fully custom background supplied by the user,
// superseding any named template. Field placement comes exclusively from
// the accompanying CustomFieldPositions on the CertificateConfig.
type CustomTemplate struct {
	Data        string      `json:"data" yaml:"data"` // base64 image
	Page        PageSize    `json:"page" yaml:"page"`
	Orientation Orientation `json:"orientation,omitempty" yaml:"orientation,omitempty"`
}

// CertificateConfig is the concrete binding of one run: a named template id
// plus mapping and style overrides, or a custom background with its own
// field positions.
type CertificateConfig struct {
	TemplateID           string          `json:"template_id,omitempty" yaml:"template_id,omitempty"`
	Mapping              FieldMapping    `json:"mapping" yaml:"mapping"`
	Overrides            *StyleOverrides `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Logo                 *ImageAsset     `json:"logo,omitempty" yaml:"logo,omitempty"`
	Signature            *ImageAsset     `json:"signature,omitempty" yaml:"signature,omitempty"`
	CustomTemplate       *CustomTemplate `json:"custom_template,omitempty" yaml:"custom_template,omitempty"`
	CustomFieldPositions []FieldPosition `json:"custom_field_positions,omitempty" yaml:"custom_field_positions,omitempty"`
}

// UsesCustomTemplate reports whether a custom background supersedes the
// named template.
func (c *CertificateConfig) UsesCustomTemplate() bool {
	return c.CustomTemplate != nil
}
