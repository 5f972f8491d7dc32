package classifier

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeImage はbase64の画像文字列を生のバイト列に戻します。
// "data:image/jpeg;base64,..." 形式のdata URIプレフィックスは剥がす
func DecodeImage(base64Image string) ([]byte, error) {
	if idx := strings.Index(base64Image, ","); idx >= 0 {
		base64Image = base64Image[idx+1:]
	}

	imageBytes, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return imageBytes, nil
}
