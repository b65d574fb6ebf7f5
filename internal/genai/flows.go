package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"drainsentry-backend/internal/models"
)

// TrashDetection is the structured verdict for one camera frame.
type TrashDetection struct {
	TrashDetected bool    `json:"trashDetected"`
	Confidence    float64 `json:"confidence"`
	Description   string  `json:"description"`
}

const detectTrashPrompt = `Analyze this image of a drainage point. Respond with only a JSON object:
{"trashDetected": bool, "confidence": number between 0 and 1, "description": short string}`

// DetectTrash runs the trash-detection flow on a base64-encoded image.
func (c *Client) DetectTrash(ctx context.Context, imageBase64, mimeType string) (TrashDetection, error) {
	if imageBase64 == "" {
		return TrashDetection{}, fmt.Errorf("image data is empty")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	text, err := c.generate(ctx, []part{
		{Text: detectTrashPrompt},
		{InlineData: &inlineData{MimeType: mimeType, Data: imageBase64}},
	})
	if err != nil {
		return TrashDetection{}, err
	}

	var det TrashDetection
	if err := json.Unmarshal([]byte(stripFences(text)), &det); err != nil {
		return TrashDetection{}, fmt.Errorf("model returned unparseable verdict: %w", err)
	}
	return det, nil
}

// GenerateHealthReport summarizes the current state of a user's devices.
func (c *Client) GenerateHealthReport(ctx context.Context, devices []models.Device) (string, error) {
	if len(devices) == 0 {
		return "", fmt.Errorf("no devices to report on")
	}

	var b strings.Builder
	b.WriteString("Write a short system health report for these drainage monitoring devices:\n")
	for _, d := range devices {
		fmt.Fprintf(&b, "- %s (location %s): water level %.1f%%, bin fullness %.1f%%, last seen %s\n",
			d.DisplayName(), d.Location, d.WaterLevel, d.BinFullness, d.LastSeen)
	}

	return c.generate(ctx, []part{{Text: b.String()}})
}

// stripFences removes a markdown code fence the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
