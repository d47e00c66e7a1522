package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxImageBytes bounds the size of any single loaded image reference.
const maxImageBytes = 5 * 1024 * 1024

// maxImageDimension bounds width and height in pixels for formats whose
// dimensions we can cheaply decode (jpeg, png, gif).
const maxImageDimension = 8000

// imageRefPattern matches an @<path> token: '@' followed by a run of
// non-whitespace characters.
var imageRefPattern = regexp.MustCompile(`@(\S+)`)

// ImageReference is one @<path> token found in raw input text.
type ImageReference struct {
	Token string // the full "@path" token, for text-stripping
	Path  string // the path portion after '@'
}

// LoadedImage is a successfully loaded and encoded image reference.
type LoadedImage struct {
	Reference string
	MediaType string
	Base64    string
}

// ImageError describes why a single reference failed to load.
type ImageError struct {
	Reference string
	Message   string
}

// findImageReferences extracts every @<path> token from text, in order of
// appearance.
func findImageReferences(text string) []ImageReference {
	matches := imageRefPattern.FindAllStringSubmatchIndex(text, -1)
	refs := make([]ImageReference, 0, len(matches))
	for _, m := range matches {
		token := text[m[0]:m[1]]
		path := text[m[2]:m[3]]
		refs = append(refs, ImageReference{Token: token, Path: path})
	}
	return refs
}

// resolveImagePath resolves a reference path against workDir, handling
// "./x.png", "x.png" and "/abs/x.png" forms.
func resolveImagePath(path, workDir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(workDir, path))
}

// sniffMediaType detects jpeg/png/gif/webp from file header magic bytes,
// per the spec's requirement to detect format from content rather than
// file extension.
func sniffMediaType(data []byte) (string, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg", true
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png", true
	case len(data) >= 6 && (string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"):
		return "image/gif", true
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp", true
	default:
		return "", false
	}
}

// loadImage reads, sniffs, and base64-encodes the image at path, enforcing
// the maximum size and (for decodable formats) maximum pixel dimension.
func loadImage(path string) (LoadedImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LoadedImage{}, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if info.Size() > maxImageBytes {
		return LoadedImage{}, fmt.Errorf("%s exceeds maximum size of %d bytes", path, maxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedImage{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	mediaType, ok := sniffMediaType(data)
	if !ok {
		return LoadedImage{}, fmt.Errorf("%s is not a supported image format", path)
	}

	if mediaType != "image/webp" {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			if cfg.Width > maxImageDimension || cfg.Height > maxImageDimension {
				return LoadedImage{}, fmt.Errorf("%s exceeds maximum dimension of %d pixels", path, maxImageDimension)
			}
		}
	}

	return LoadedImage{
		MediaType: mediaType,
		Base64:    base64.StdEncoding.EncodeToString(data),
	}, nil
}

// stripReferences removes every matched reference token from text and
// collapses runs of whitespace left behind, per the expansion rules.
func stripReferences(text string, refs []ImageReference) string {
	stripped := text
	for _, ref := range refs {
		stripped = strings.Replace(stripped, ref.Token, "", 1)
	}
	return collapseWhitespace(stripped)
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
