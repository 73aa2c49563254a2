package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Image is an inline image attached to a prompt.
type Image struct {
	// Label is sent as a text block just before the image.
	Label     string
	MediaType string
	Data      []byte
}

// Runner sends prompts with optional images and returns the text reply.
type Runner struct {
	client    *Client
	maxTokens int64
}

// NewRunner creates a new API runner.
func NewRunner(client *Client) *Runner {
	return &Runner{client: client, maxTokens: 2048}
}

// Run executes a prompt with the given images and returns the text response.
func (r *Runner) Run(ctx context.Context, system, prompt string, images ...Image) (string, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, img := range images {
		if img.Label != "" {
			blocks = append(blocks, anthropic.NewTextBlock(img.Label))
		}
		mediaType := img.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	params := anthropic.MessageNewParams{
		Model:     r.client.Model(),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := r.client.sdk().Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	r.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}

// RunJSON executes a prompt and parses the first JSON object in the reply
// into target.
func (r *Runner) RunJSON(ctx context.Context, system, prompt string, target any, images ...Image) error {
	response, err := r.Run(ctx, system, prompt, images...)
	if err != nil {
		return err
	}
	return DecodeJSON(response, target)
}

// DecodeJSON extracts the outermost JSON object from text and decodes it.
func DecodeJSON(text string, target any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no valid JSON found in response: %s", truncate(text, 200))
	}

	raw := text[start : end+1]
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(raw, 200))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
