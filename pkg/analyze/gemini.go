package analyze

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/grovesy/watchpost/internal/httpc"
)

// DefaultPrompt is used when a request carries no prompt of its own.
const DefaultPrompt = "You are watching a live camera feed. The attached JSON lists the " +
	"objects a local detector found in this frame, with pixel coordinates. " +
	"Describe what is happening in the scene, paying attention to the listed " +
	"objects. Be concise and concrete."

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"

// Gemini calls the Gemini generateContent API for scene analysis.
type Gemini struct {
	apiKey string
	model  string
	client *http.Client
}

// GeminiOption configures a Gemini provider.
type GeminiOption func(*Gemini)

// WithModel overrides the default model.
func WithModel(model string) GeminiOption {
	return func(g *Gemini) { g.model = model }
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) GeminiOption {
	return func(g *Gemini) { g.client = httpc.NewClient(d) }
}

// NewGemini creates a Gemini reasoning provider.
func NewGemini(apiKey string, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		apiKey: apiKey,
		model:  "gemini-2.0-flash",
		client: httpc.NewClient(30 * time.Second),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Analyze sends the frame and detection payload to Gemini.
func (g *Gemini) Analyze(ctx context.Context, req *Request) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("GOOGLE_API_KEY not set")
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}

	payloadJSON, err := json.Marshal(req.Payload)
	if err != nil {
		return "", fmt.Errorf("encode detections: %w", err)
	}

	b64Image := base64.StdEncoding.EncodeToString(req.Image)

	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt + "\n\nDetections:\n" + string(payloadJSON)},
					{"inline_data": map[string]string{"mime_type": "image/jpeg", "data": b64Image}},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.7,
			"maxOutputTokens": 1000,
		},
	}

	jsonData, _ := json.Marshal(body)

	url := fmt.Sprintf(geminiEndpoint, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result geminiResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w (body: %s)", err, truncate(string(bodyBytes), 200))
	}

	if result.Error.Message != "" {
		return "", fmt.Errorf("Gemini error: %s", result.Error.Message)
	}

	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		return result.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", fmt.Errorf("no response from Gemini (raw: %s)", truncate(string(bodyBytes), 300))
}

// geminiResponse is the response structure from the Gemini API.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// truncate shortens a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
