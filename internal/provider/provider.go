package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider turns invoice content plus optional page images into a JSON
// string following the extraction schema. The pipeline depends only on
// this capability, never on a concrete variant.
type Provider interface {
	GenerateJSON(ctx context.Context, content string, imagePaths []string) (string, error)
	Name() string
}

// imageDataURL reads an image file and returns it as a base64 data URL
// suitable for chat completion image parts.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}

	mime := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mime = "image/png"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}
