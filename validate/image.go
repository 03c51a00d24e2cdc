package validate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	// Registered decoders for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	recommendedWidth  = 1200
	recommendedHeight = 630
	recommendedRatio  = float64(recommendedWidth) / float64(recommendedHeight)
	ratioTolerance    = 0.1
	maxRecommendedMB  = 1
)

var supportedFormats = map[string]bool{
	"jpeg": true, "jpg": true, "png": true, "webp": true, "avif": true, "gif": true,
}

// ValidateOGImage fetches imageURL and checks its size, dimensions, aspect
// ratio and format against Open Graph recommendations. expectedWidth and
// expectedHeight are checked when non-zero.
func (v *Validator) ValidateOGImage(ctx context.Context, imageURL string, expectedWidth, expectedHeight int) (ImageResult, error) {
	resp, err := v.client.Get(ctx, imageURL, v.imageTimeout, v.maxImageBytes)
	if err != nil {
		if isInvalidURL(err) {
			return ImageResult{}, err
		}
		v.log.Warn("Image fetch failed", zap.String("url", imageURL), zap.Error(err))
		return imageFailure(imageURL, err.Error()), nil
	}
	if !resp.OK() {
		return imageFailure(imageURL, "Failed to fetch image: "+resp.StatusText()), nil
	}
	return checkImage(resp.Body, imageURL, expectedWidth, expectedHeight), nil
}

func checkImage(body []byte, imageURL string, expectedWidth, expectedHeight int) ImageResult {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return imageFailure(imageURL, "Could not determine image dimensions")
	}

	var issues []Issue
	add := func(sev Severity, msg, expected, actual string) {
		issues = append(issues, Issue{Field: "image", Severity: sev, Message: msg, Expected: expected, Actual: actual})
	}

	if mb := float64(len(body)) / (1024 * 1024); mb > maxRecommendedMB {
		add(SeverityWarning, "Image file size exceeds 1MB recommendation", "", fmt.Sprintf("%.2fMB", mb))
	}
	if cfg.Width < recommendedWidth || cfg.Height < recommendedHeight {
		add(SeverityWarning,
			fmt.Sprintf("Image dimensions below recommended size (%dx%d)", recommendedWidth, recommendedHeight),
			fmt.Sprintf("%dx%d", recommendedWidth, recommendedHeight),
			fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	if math.Abs(ratio-recommendedRatio) > ratioTolerance {
		add(SeverityInfo, "Image aspect ratio differs from recommended 1.91:1", "1.91:1", fmt.Sprintf("%.2f:1", ratio))
	}
	if !supportedFormats[strings.ToLower(format)] {
		add(SeverityWarning, "Image format may not be optimal for social sharing", "JPEG, PNG, WebP, or AVIF", format)
	}
	if expectedWidth > 0 && cfg.Width != expectedWidth {
		add(SeverityWarning, "Image width does not match expected value",
			fmt.Sprintf("%dpx", expectedWidth), fmt.Sprintf("%dpx", cfg.Width))
	}
	if expectedHeight > 0 && cfg.Height != expectedHeight {
		add(SeverityWarning, "Image height does not match expected value",
			fmt.Sprintf("%dpx", expectedHeight), fmt.Sprintf("%dpx", cfg.Height))
	}

	if issues == nil {
		issues = []Issue{}
	}
	return ImageResult{
		IsValid: !HasCritical(issues),
		Issues:  issues,
		Metadata: &ImageMetadata{
			Width:  cfg.Width,
			Height: cfg.Height,
			Format: format,
			Size:   len(body),
		},
	}
}

func imageFailure(imageURL, msg string) ImageResult {
	return ImageResult{
		IsValid: false,
		Issues: []Issue{{
			Field:    "image",
			Severity: SeverityCritical,
			Message:  msg,
			Actual:   imageURL,
		}},
	}
}

// ImageAccessible reports whether imageURL answers a HEAD request with a 2xx
// status and an image content type.
func (v *Validator) ImageAccessible(ctx context.Context, imageURL string) bool {
	resp, err := v.client.Head(ctx, imageURL, v.htmlTimeout)
	if err != nil {
		v.log.Debug("Image HEAD failed", zap.String("url", imageURL), zap.Error(err))
		return false
	}
	return resp.OK() && strings.HasPrefix(strings.ToLower(resp.ContentType), "image/")
}
