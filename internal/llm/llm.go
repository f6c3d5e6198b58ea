// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm implements the language-model capabilities behind the research
// loop: query decomposition, completeness evaluation, and report generation.
// Implements: prd001-decomposition (R1-R3); prd005-research-loop (R4).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/pdiddy/deep-research/internal/research"
	"github.com/pdiddy/deep-research/pkg/types"
)

// backoffBase scales the wait between generation retries. Tests override it
// to avoid real sleeps.
var backoffBase = time.Second

// Client wraps a language model behind the Decomposer, Evaluator, and
// Generator capability interfaces. One Client serves concurrent runs; it
// holds no per-run state.
type Client struct {
	model      llms.Model
	maxRetries int
}

// New connects to the Google AI API with the configured model and key.
func New(ctx context.Context, cfg types.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key for model %q", cfg.Model)
	}
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to model API: %w", err)
	}
	return NewWithModel(model, cfg.MaxRetries), nil
}

// NewWithModel wraps an existing model. Used by tests and alternative
// providers.
func NewWithModel(model llms.Model, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{model: model, maxRetries: maxRetries}
}

// Decompose breaks the query into at most max focused sub-queries. When gaps
// are present the call is a gap-filling refinement: the prompt carries the
// open gaps from the last completeness check and asks for follow-up queries
// that close them.
func (c *Client) Decompose(ctx context.Context, query string, gaps []string, max int) ([]string, error) {
	var prompt string
	if len(gaps) == 0 {
		prompt = fmt.Sprintf(
			"Break the research question below into %d or fewer focused search queries that together cover it. "+
				"Each query must be independently searchable. "+
				"Respond with a JSON array of strings and nothing else.\n\nQuestion: %s",
			max, query)
	} else {
		prompt = fmt.Sprintf(
			"Research on the question below is underway but these gaps remain open:\n- %s\n\n"+
				"Turn the gaps into %d or fewer focused follow-up search queries. "+
				"Each query must be independently searchable and target one gap. "+
				"Respond with a JSON array of strings and nothing else.\n\nQuestion: %s",
			strings.Join(gaps, "\n- "), max, query)
	}

	out, err := c.generateWithRetry(ctx, prompt, true, func(s string) error {
		_, perr := ParseStringArray(s)
		return perr
	})
	if err != nil {
		return nil, err
	}

	subs, err := ParseStringArray(out)
	if err != nil {
		return nil, err
	}
	if len(subs) > max {
		subs = subs[:max]
	}
	return subs, nil
}

// Evaluate judges whether the findings answer the question and names the
// gaps if not.
func (c *Client) Evaluate(ctx context.Context, query string, findings []types.Finding, iteration int) (research.Assessment, error) {
	var sources strings.Builder
	for i, f := range findings {
		fmt.Fprintf(&sources, "%d. %s (%s): %s\n", i+1, f.Title, f.Domain, clip(f.Content, 400))
	}

	prompt := fmt.Sprintf(
		"Research question: %s\n\nSources collected so far (iteration %d):\n%s\n"+
			"Judge whether these sources answer the question well enough to write a report. "+
			"Respond with JSON only: {\"is_complete\": bool, \"gaps\": [\"follow-up search query\", ...]}. "+
			"List at most 3 gaps, each a concrete searchable query for missing information.",
		query, iteration+1, sources.String())

	out, err := c.generateWithRetry(ctx, prompt, true, func(s string) error {
		_, perr := ParseAssessment(s)
		return perr
	})
	if err != nil {
		return research.Assessment{}, err
	}
	return ParseAssessment(out)
}

// Generate produces the report prose for the synthesizer's prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generateWithRetry(ctx, prompt, false, func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("empty generation")
		}
		return nil
	})
}

// generateWithRetry calls the model up to maxRetries times, validating each
// response before accepting it. Waits grow linearly between attempts.
func (c *Client) generateWithRetry(ctx context.Context, prompt string, jsonMode bool, validate func(string) error) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	var opts []llms.CallOption
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * backoffBase):
			}
		}

		resp, err := c.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			lastErr = fmt.Errorf("model call failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validate(content); err != nil {
			lastErr = fmt.Errorf("response rejected: %w", err)
			continue
		}
		return content, nil
	}
	return "", fmt.Errorf("generation failed after %d attempts: %w", c.maxRetries, lastErr)
}

// clip bounds a string for prompt budgets, cutting at a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// ParseStringArray extracts a JSON string array from model output. Models
// wrap JSON in prose or code fences often enough that two fallbacks exist:
// extracting the bracketed substring, then splitting lines as a last resort.
func ParseStringArray(s string) ([]string, error) {
	s = stripFences(s)

	var direct []string
	if err := json.Unmarshal([]byte(s), &direct); err == nil {
		return cleanStrings(direct), nil
	}

	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start >= 0 && end > start {
		var extracted []string
		if err := json.Unmarshal([]byte(s[start:end+1]), &extracted); err == nil {
			return cleanStrings(extracted), nil
		}
	}

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "-*\"'`,")
		line = strings.TrimLeft(line, "0123456789. ")
		if line != "" && !strings.ContainsAny(line, "[]{}") {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no queries found in model output")
	}
	return lines, nil
}

// assessmentJSON mirrors the completeness response shape.
type assessmentJSON struct {
	IsComplete        bool     `json:"is_complete"`
	CompletenessScore float64  `json:"completeness_score"`
	Gaps              []string `json:"gaps"`
	Reasoning         string   `json:"reasoning"`
}

// ParseAssessment extracts the completeness verdict from model output,
// tolerating surrounding prose the same way ParseStringArray does.
func ParseAssessment(s string) (research.Assessment, error) {
	s = stripFences(s)

	var a assessmentJSON
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return research.Assessment{}, fmt.Errorf("no JSON object in model output")
		}
		if err := json.Unmarshal([]byte(s[start:end+1]), &a); err != nil {
			return research.Assessment{}, fmt.Errorf("parsing assessment: %w", err)
		}
	}
	return research.Assessment{
		Complete: a.IsComplete,
		Gaps:     cleanStrings(a.Gaps),
	}, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
