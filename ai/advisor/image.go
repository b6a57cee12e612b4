package advisor

import (
	"bytes"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/Try3D/Eunoia/ai/core/llm"
)

const (
	maxImageSide = 1024
	jpegQuality  = 85
)

// PrepareImage fits the image into maxImageSide and re-encodes it as JPEG.
// Images that cannot be decoded are forwarded unchanged.
func PrepareImage(image llm.Image) llm.Image {
	img, err := imaging.Decode(bytes.NewReader(image.Data), imaging.AutoOrientation(true))
	if err != nil {
		slog.Debug("advisor: image not decodable, sending as is", "mime", image.MIMEType, "error", err)
		return image
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxImageSide || bounds.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		slog.Warn("advisor: image encode failed, sending original", "error", err)
		return image
	}
	slog.Debug("advisor: image prepared",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"original_bytes", len(image.Data),
		"bytes", buf.Len(),
	)
	return llm.Image{MIMEType: "image/jpeg", Data: buf.Bytes()}
}
