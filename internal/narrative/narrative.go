package narrative

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/safestreets/safestreets/internal/analysis"
)

// Generator produces a short plain-language summary of an analysis result.
// Presentation only; nothing it writes feeds back into scoring.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator reads OPENAI_API_KEY for authentication. Without a key the
// narrative feature stays off and analysis responses simply omit it.
func NewGenerator() (*Generator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	return &Generator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Summarize writes one short paragraph about a scored location.
func (g *Generator) Summarize(ctx context.Context, res *analysis.Result) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You summarize street walkability reports in one factual paragraph. No headers, no bullet points, no advice beyond what the data shows."),
			openai.UserMessage(buildPrompt(res)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(res *analysis.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location %.4f,%.4f (radius %.0fm). Overall %d/100, grade %s, confidence %d%%.\n",
		res.Location.Latitude, res.Location.Longitude, res.Location.RadiusMeters,
		res.Score.OverallScore, res.Score.Grade, res.Score.Confidence)

	for _, c := range []struct {
		label string
		score float64
	}{
		{"Network design", res.Score.Components.NetworkDesign.Score},
		{"Environmental comfort", res.Score.Components.EnvironmentalComfort.Score},
		{"Safety", res.Score.Components.Safety.Score},
		{"Density context", res.Score.Components.DensityContext.Score},
	} {
		fmt.Fprintf(&b, "%s: %.0f/100.\n", c.label, c.score)
	}

	if res.AirQuality != nil {
		fmt.Fprintf(&b, "PM2.5: %.1f µg/m³.\n", res.AirQuality.PM25)
	}
	for _, f := range res.Flags {
		fmt.Fprintf(&b, "Data caveat: %s.\n", f)
	}
	return b.String()
}
