// Package enrich turns extracted text into a short summary and a tag set.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"docqr-backend/internal/llm"
	"docqr-backend/internal/shared/metrics"
	"docqr-backend/internal/shared/telemetry"
)

const (
	// MaxInputChars caps the document text embedded in the prompt.
	MaxInputChars = 4000
	// MaxRemoteTags bounds the tag set accepted from the model.
	MaxRemoteTags = 7
)

// Source tells where a Result came from.
type Source string

const (
	SourceEmpty    Source = "empty"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Result is an enrichment outcome. Tags is never nil.
type Result struct {
	Summary string
	Tags    []string
	Source  Source
}

var errEmptyReply = errors.New("model reply has neither summary nor tags")

// Client enriches text through a remote model with a deterministic local fallback.
type Client struct {
	LLM      llm.Completer
	Language string
}

// New returns a client that asks for output in Russian, the deployment's document language.
func New(completer llm.Completer) *Client {
	return &Client{LLM: completer, Language: "Russian"}
}

// Enrich never fails. Empty input yields an empty result; any remote problem
// yields the local fallback.
func (c *Client) Enrich(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Tags: []string{}, Source: SourceEmpty}
	}

	res, err := c.remote(ctx, text)
	if err == nil {
		return res
	}

	telemetry.Warn("enrich.fallback", map[string]any{"error": err.Error()})
	metrics.IncEnrichmentFallback()
	return Fallback(text)
}

func (c *Client) remote(ctx context.Context, text string) (Result, error) {
	if c == nil || c.LLM == nil {
		return Result{}, llm.ErrNotConfigured
	}
	reply, err := c.LLM.Complete(ctx, c.prompt(text))
	if err != nil {
		return Result{}, err
	}
	summary, tags, err := ParseReply(reply)
	if err != nil {
		return Result{}, err
	}
	return Result{Summary: summary, Tags: tags, Source: SourceRemote}, nil
}

func (c *Client) prompt(text string) string {
	lang := c.Language
	if lang == "" {
		lang = "Russian"
	}
	return fmt.Sprintf(`Analyze the following document text and provide:
1. A short summary of 2-3 sentences in %[1]s.
2. 5-7 key tags in %[1]s, one word each.

Respond with JSON only, in exactly this shape:
{"summary": "...", "tags": ["tag1", "tag2"]}

Text to analyze:
%[2]s`, lang, truncateRunes(text, MaxInputChars))
}

type reply struct {
	Summary *string `json:"summary"`
	Tags    []any   `json:"tags"`
}

// ParseReply decodes the outermost {...} span of a model reply. Missing fields
// default to empty; a reply with neither field is rejected.
func ParseReply(raw string) (string, []string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", nil, fmt.Errorf("model reply has no JSON object")
	}

	var r reply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &r); err != nil {
		return "", nil, fmt.Errorf("decode model reply: %w", err)
	}

	summary := ""
	if r.Summary != nil {
		summary = strings.TrimSpace(*r.Summary)
	}
	tags := normalizeTags(r.Tags)
	if summary == "" && len(tags) == 0 {
		return "", nil, errEmptyReply
	}
	return summary, tags, nil
}

func normalizeTags(raw []any) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == MaxRemoteTags {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
