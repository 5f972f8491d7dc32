package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 外部の視覚モデルAPIをそのまま使う。判定アルゴリズム自体はこのサーバーの
// 責務外で、失敗は分類エラーとして提出者にのみ返す

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent"

	promptTemplate = `You are an ASL (American Sign Language) hand sign expert.

Look at this image and determine whether the hand shown is making the ASL letter '%s'.

Respond ONLY with valid JSON in exactly this format (no markdown, no extra text):
{"matches": true_or_false, "detected_sign": "LETTER_OR_UNKNOWN", "confidence": 0.0_to_1.0}

Rules:
- "matches" is true only if you are reasonably confident the sign shown is '%s'.
- "detected_sign" is the single uppercase letter you think is being shown, or "UNKNOWN" if no clear hand sign is visible.
- "confidence" is your confidence level between 0.0 and 1.0.
- Do not give a correct classification if the hand sign looks like the letter, it MUST be valid ASL`
)

// Result は1枚のスナップショットに対する判定
type Result struct {
	Matches      bool
	DetectedSign string
	Confidence   float64
}

// Classifier は画像とお題を受け取り判定を返します。
type Classifier interface {
	Classify(ctx context.Context, imageBytes []byte, targetSign string) (Result, error)
}

// GeminiClassifier はGeminiの視覚APIをHTTPで呼び出す実装です。
type GeminiClassifier struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGeminiClassifier(logger *zap.Logger) (*GeminiClassifier, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}

	endpoint := os.Getenv("GEMINI_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &GeminiClassifier{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// generateContentリクエスト・レスポンスの必要最小限の形
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Classify は画像がお題のASL手話か判定します。
func (c *GeminiClassifier) Classify(ctx context.Context, imageBytes []byte, targetSign string) (Result, error) {
	target := strings.ToUpper(strings.TrimSpace(targetSign))
	prompt := fmt.Sprintf(promptTemplate, target, target)

	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(imageBytes),
				}},
				{Text: prompt},
			},
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Classifier request failed", zap.Error(err))
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Classifier returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return Result{}, fmt.Errorf("classifier API status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return Result{}, err
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("classifier response has no candidates")
	}

	return parseVerdict(genResp.Candidates[0].Content.Parts[0].Text)
}

// parseVerdict はモデルの応答テキストから判定JSONを取り出します。
// モデルが勝手に付けるmarkdownフェンスは剥がす
func parseVerdict(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		parts := strings.Split(raw, "```")
		if len(parts) > 1 {
			raw = parts[1]
		}
		raw = strings.TrimPrefix(raw, "json")
		raw = strings.TrimSpace(raw)
	}

	var verdict struct {
		Matches      bool    `json:"matches"`
		DetectedSign string  `json:"detected_sign"`
		Confidence   float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return Result{}, fmt.Errorf("invalid verdict JSON: %w", err)
	}

	detected := strings.ToUpper(verdict.DetectedSign)
	if detected == "" {
		detected = "UNKNOWN"
	}
	return Result{
		Matches:      verdict.Matches,
		DetectedSign: detected,
		Confidence:   verdict.Confidence,
	}, nil
}
