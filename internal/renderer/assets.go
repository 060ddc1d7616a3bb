package renderer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	// register decoders for the formats the wizard accepts
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// decodeAsset decodes a base64 image payload (optionally a data URL) and
// returns the raw bytes, the detected format and the natural pixel size.
func decodeAsset(data string) (raw []byte, format string, w, h int, err error) {
	payload := data
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, "", 0, 0, fmt.Errorf("malformed data URL")
		}
		payload = payload[idx+1:]
	}

	raw, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode base64: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", 0, 0, fmt.Errorf("image has zero dimensions")
	}

	return raw, format, cfg.Width, cfg.Height, nil
}
