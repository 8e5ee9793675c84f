package raster

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrUnsupportedFormat is returned when no registered decoder accepts a file.
var ErrUnsupportedFormat = errors.New("raster: unsupported image format")

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Load decodes the image at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("raster: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		return nil, fmt.Errorf("raster: decode %s: %w", path, err)
	}
	return img, nil
}

// DecodeConfig reads the dimensions and format of the image at path without
// decoding its pixels.
func DecodeConfig(path string) (image.Config, string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("raster: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return image.Config{}, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		return image.Config{}, "", fmt.Errorf("raster: decode config %s: %w", path, err)
	}
	return cfg, format, nil
}

// EncodePNG writes img to w as PNG. Identical pixels always produce
// identical bytes.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := pngEncoder.Encode(w, img); err != nil {
		return fmt.Errorf("raster: encode png: %w", err)
	}
	return nil
}

// PNGBytes encodes img and returns the bytes.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePNG writes img to path, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("raster: create directory: %w", err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("raster: create file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := EncodePNG(w, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("raster: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("raster: close %s: %w", path, err)
	}
	return nil
}
