package metadata

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	xdraw "golang.org/x/image/draw"

	"digitalwall/internal/domain"
)

const (
	colorSampleSize = 150
	colorSampleStep = 10
	previewLines    = 5
)

// ExtractFile inspects a single shared file and returns its metadata.
// Unknown types reduce to name/size only.
func ExtractFile(f domain.SharedFile) map[string]any {
	info := map[string]any{
		"filename":     f.Name,
		"content_type": f.MIME,
		"size":         len(f.Data),
	}

	switch {
	case strings.HasPrefix(f.MIME, "image/"):
		mergeInto(info, imageMetadata(f.Data))
	case strings.HasPrefix(f.MIME, "video/"), f.MIME == "application/pdf":
		if format, ok := sniffSignature(f.Data); ok {
			info["detected_format"] = format
		}
	case strings.HasPrefix(f.MIME, "text/"):
		mergeInto(info, textFileMetadata(f.Data))
	default:
		if format, ok := sniffSignature(f.Data); ok {
			info["detected_format"] = format
		}
	}

	return info
}

func imageMetadata(data []byte) map[string]any {
	meta := map[string]any{}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		meta["error"] = fmt.Sprintf("decode image: %v", err)
		return meta
	}
	meta["width"] = cfg.Width
	meta["height"] = cfg.Height
	meta["format"] = format
	meta["mode"] = colorModeName(cfg)

	if fields := exifFields(data); len(fields) > 0 {
		meta["exif"] = fields
	}

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		meta["dominant_color"] = dominantColor(img)
	}

	return meta
}

// exifFields extracts the constrained field set; images without EXIF (or
// non-JPEG formats) simply yield nothing.
func exifFields(data []byte) map[string]any {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	fields := map[string]any{}
	for name, key := range map[exif.FieldName]string{
		exif.DateTime: "date_taken",
		exif.Make:     "camera_make",
		exif.Model:    "camera_model",
		exif.Software: "software",
	} {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		if v, err := tag.StringVal(); err == nil && strings.TrimSpace(v) != "" {
			fields[key] = strings.TrimSpace(v)
		}
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			fields["orientation"] = v
		}
	}

	return fields
}

// dominantColor downsamples to 150x150, samples every 10th pixel, and
// buckets each sample into one of ten named color categories.
func dominantColor(img image.Image) string {
	dst := image.NewRGBA(image.Rect(0, 0, colorSampleSize, colorSampleSize))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	counts := map[string]int{}
	for y := 0; y < colorSampleSize; y += colorSampleStep {
		for x := 0; x < colorSampleSize; x += colorSampleStep {
			r, g, b, _ := dst.At(x, y).RGBA()
			counts[classifyColor(int(r>>8), int(g>>8), int(b>>8))]++
		}
	}

	best, bestCount := "gray", 0
	for name, count := range counts {
		if count > bestCount {
			best, bestCount = name, count
		}
	}
	return best
}

// classifyColor buckets an RGB triple by simple thresholding: near-equal or
// extreme channels map to white/black/gray, otherwise the dominant channel
// decides with mixed-channel fallbacks to orange/brown, yellow and purple.
func classifyColor(r, g, b int) string {
	maxC := maxOf(r, g, b)
	minC := minOf(r, g, b)

	switch {
	case r >= 200 && g >= 200 && b >= 200:
		return "white"
	case r <= 50 && g <= 50 && b <= 50:
		return "black"
	case maxC-minC <= 30:
		return "gray"
	}

	switch maxC {
	case r:
		switch {
		case g >= 150 && b < 120:
			return "yellow"
		case b >= 120:
			return "purple"
		case g >= 70 && r <= 160:
			return "brown"
		case g >= 70:
			return "orange"
		default:
			return "red"
		}
	case g:
		return "green"
	default:
		if r >= 120 {
			return "purple"
		}
		return "blue"
	}
}

var signatures = []struct {
	offset int
	magic  []byte
	format string
}{
	{0, []byte("%PDF"), "pdf"},
	{4, []byte("ftyp"), "mp4"},
	{0, []byte{0x1A, 0x45, 0xDF, 0xA3}, "matroska"},
	{0, []byte("OggS"), "ogg"},
	{0, []byte("GIF8"), "gif"},
	{0, []byte{0x89, 'P', 'N', 'G'}, "png"},
	{0, []byte{0xFF, 0xD8, 0xFF}, "jpeg"},
}

// sniffSignature detects the container format from leading bytes only; no
// deep parsing happens for video or PDF payloads.
func sniffSignature(data []byte) (string, bool) {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) >= end && bytes.Equal(data[sig.offset:end], sig.magic) {
			return sig.format, true
		}
	}
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) {
		switch string(data[8:12]) {
		case "AVI ":
			return "avi", true
		case "WEBP":
			return "webp", true
		case "WAVE":
			return "wav", true
		}
	}
	return "", false
}

func textFileMetadata(data []byte) map[string]any {
	text := string(data)
	lines := strings.Split(text, "\n")

	preview := lines
	if len(preview) > previewLines {
		preview = preview[:previewLines]
	}

	return map[string]any{
		"char_count": len(text),
		"line_count": len(lines),
		"word_count": len(strings.Fields(text)),
		"preview":    strings.Join(preview, "\n"),
		"language":   languageHint(text),
	}
}

// languageHint is a crude guess from character ranges; it exists to aid
// search filtering, not to be authoritative.
func languageHint(text string) string {
	for _, r := range text {
		switch {
		case r >= 0x0400 && r <= 0x04FF:
			return "cyrillic"
		case r >= 0x4E00 && r <= 0x9FFF:
			return "cjk"
		case r >= 0x3040 && r <= 0x30FF:
			return "japanese"
		case r >= 0x00C0 && r <= 0x017F:
			return "latin-accented"
		}
	}
	return "en"
}

func colorModeName(cfg image.Config) string {
	if _, ok := cfg.ColorModel.(color.Palette); ok {
		return "palette"
	}
	switch cfg.ColorModel {
	case color.RGBAModel:
		return "rgba"
	case color.NRGBAModel:
		return "nrgba"
	case color.GrayModel, color.Gray16Model:
		return "gray"
	case color.YCbCrModel:
		return "ycbcr"
	case color.CMYKModel:
		return "cmyk"
	default:
		return "rgb"
	}
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func maxOf(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
