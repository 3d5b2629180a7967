package metadata

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"digitalwall/internal/domain"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestExtractFileImageDimensionsAndColor(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, solidImage(100, 80, color.RGBA{R: 230, G: 20, B: 20, A: 255}))
	info := ExtractFile(domain.SharedFile{Name: "red.png", MIME: "image/png", Data: data})

	if info["width"] != 100 || info["height"] != 80 {
		t.Fatalf("unexpected dimensions: %vx%v", info["width"], info["height"])
	}
	if info["format"] != "png" {
		t.Fatalf("unexpected format: %v", info["format"])
	}
	if info["dominant_color"] != "red" {
		t.Fatalf("unexpected dominant color: %v", info["dominant_color"])
	}
}

func TestClassifyColorBuckets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		r, g, b int
		want    string
	}{
		{250, 250, 250, "white"},
		{10, 10, 10, "black"},
		{120, 130, 125, "gray"},
		{230, 20, 20, "red"},
		{20, 200, 30, "green"},
		{20, 40, 220, "blue"},
		{240, 200, 40, "yellow"},
		{220, 110, 30, "orange"},
		{140, 90, 40, "brown"},
		{160, 40, 200, "purple"},
	}

	for _, tc := range cases {
		if got := classifyColor(tc.r, tc.g, tc.b); got != tc.want {
			t.Fatalf("classifyColor(%d,%d,%d) = %s, want %s", tc.r, tc.g, tc.b, got, tc.want)
		}
	}
}

func TestExtractFilePDFSignature(t *testing.T) {
	t.Parallel()

	info := ExtractFile(domain.SharedFile{
		Name: "doc.pdf",
		MIME: "application/pdf",
		Data: []byte("%PDF-1.7 rest of file"),
	})
	if info["detected_format"] != "pdf" {
		t.Fatalf("unexpected format: %v", info["detected_format"])
	}
}

func TestSniffSignatureContainers(t *testing.T) {
	t.Parallel()

	mp4 := append([]byte{0, 0, 0, 0x18}, []byte("ftypisom....")...)
	if format, ok := sniffSignature(mp4); !ok || format != "mp4" {
		t.Fatalf("mp4 sniff: %v %v", format, ok)
	}

	avi := append([]byte("RIFF"), append([]byte{0, 0, 0, 0}, []byte("AVI ")...)...)
	if format, ok := sniffSignature(avi); !ok || format != "avi" {
		t.Fatalf("avi sniff: %v %v", format, ok)
	}

	if _, ok := sniffSignature([]byte("plain text")); ok {
		t.Fatal("expected no signature match")
	}
}

func TestExtractFileTextStats(t *testing.T) {
	t.Parallel()

	text := "line one\nline two\nline three\nline four\nline five\nline six"
	info := ExtractFile(domain.SharedFile{Name: "notes.txt", MIME: "text/plain", Data: []byte(text)})

	if info["line_count"] != 6 {
		t.Fatalf("unexpected line count: %v", info["line_count"])
	}
	preview, _ := info["preview"].(string)
	if preview != "line one\nline two\nline three\nline four\nline five" {
		t.Fatalf("unexpected preview: %q", preview)
	}
	if info["language"] != "en" {
		t.Fatalf("unexpected language: %v", info["language"])
	}
}

func TestLanguageHintRanges(t *testing.T) {
	t.Parallel()

	if got := languageHint("привет мир"); got != "cyrillic" {
		t.Fatalf("cyrillic hint: %s", got)
	}
	if got := languageHint("résumé café"); got != "latin-accented" {
		t.Fatalf("accented hint: %s", got)
	}
	if got := languageHint("hello world"); got != "en" {
		t.Fatalf("en hint: %s", got)
	}
}
