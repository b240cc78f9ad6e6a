package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/voight/internal/anthropic"
	"github.com/MikeSquared-Agency/voight/internal/session"
	"github.com/MikeSquared-Agency/voight/internal/slotgraph"
)

// Client is the Claude-backed Delegate. All parsing failures surface as
// errors; the dialog layer owns the degradation policy.
type Client struct {
	llm    *anthropic.Client
	logger *slog.Logger
}

func NewClient(llm *anthropic.Client, logger *slog.Logger) *Client {
	return &Client{llm: llm, logger: logger}
}

var _ Delegate = (*Client)(nil)

func (c *Client) RouteTurn(ctx context.Context, currentSlotID, utterance string, catalog []SlotInfo, filled map[string]any) (*RouteResult, error) {
	currentPrompt := ""
	for _, s := range catalog {
		if s.ID == currentSlotID {
			currentPrompt = s.Prompt
			break
		}
	}

	prompt := fmt.Sprintf(routeUserPrompt,
		currentSlotID, currentPrompt, formatCatalog(catalog), formatFilled(filled), utterance)

	raw, err := c.llm.Complete(ctx, routeSystemPrompt, []anthropic.Message{{Role: "user", Content: prompt}}, 2048)
	if err != nil {
		return nil, fmt.Errorf("route turn: %w", err)
	}

	var res RouteResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &res); err != nil {
		c.logger.Warn("unparsable routing response", "error", err, "raw", raw)
		return nil, fmt.Errorf("parse routing response: %w", err)
	}

	switch res.Action {
	case ActionExtract, ActionAsk, ActionClarify:
	default:
		return nil, fmt.Errorf("unknown routing action %q", res.Action)
	}

	c.logger.Debug("turn routed",
		"slot", currentSlotID,
		"action", string(res.Action),
		"extractions", len(res.Candidates),
	)
	return &res, nil
}

func (c *Client) ExtractSingle(ctx context.Context, slotID, prompt, utterance string) (*SingleExtraction, error) {
	user := fmt.Sprintf(extractUserPrompt, slotID, prompt, utterance)

	raw, err := c.llm.Complete(ctx, extractSystemPrompt, []anthropic.Message{{Role: "user", Content: user}}, 512)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", slotID, err)
	}

	var res SingleExtraction
	if err := json.Unmarshal([]byte(stripFences(raw)), &res); err != nil {
		return nil, fmt.Errorf("parse extraction for %s: %w", slotID, err)
	}
	return &res, nil
}

func (c *Client) GenerateClarification(ctx context.Context, slotID, utterance, prompt string) (string, error) {
	user := fmt.Sprintf(clarifyUserPrompt, prompt, utterance)

	raw, err := c.llm.Complete(ctx, clarifySystemPrompt, []anthropic.Message{{Role: "user", Content: user}}, 256)
	if err != nil {
		return "", fmt.Errorf("clarification for %s: %w", slotID, err)
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) GenerateSummary(ctx context.Context, filled map[string]any, log []session.Record, stats session.Stats) (string, error) {
	user := fmt.Sprintf(summaryUserPrompt, formatFilled(filled), stats.MessageCount, stats.SessionDurationMinutes)

	raw, err := c.llm.Complete(ctx, summarySystemPrompt, []anthropic.Message{{Role: "user", Content: user}}, 1024)
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) ParseCorrections(ctx context.Context, filled map[string]any, utterance string) ([]Correction, error) {
	user := fmt.Sprintf(correctionsUserPrompt, formatFilled(filled), utterance)

	raw, err := c.llm.Complete(ctx, correctionsSystemPrompt, []anthropic.Message{{Role: "user", Content: user}}, 1024)
	if err != nil {
		return nil, fmt.Errorf("parse corrections: %w", err)
	}

	var res struct {
		Corrections []Correction `json:"corrections"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &res); err != nil {
		return nil, fmt.Errorf("parse corrections response: %w", err)
	}
	return res.Corrections, nil
}

// stripFences removes a markdown code fence wrapper if the model added one.
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

func formatCatalog(catalog []SlotInfo) string {
	var b strings.Builder
	for _, s := range catalog {
		status := "unfilled"
		if s.Filled {
			status = "filled"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", s.ID, status, s.Prompt)
	}
	return b.String()
}

func formatFilled(filled map[string]any) string {
	if len(filled) == 0 {
		return "(nothing yet)"
	}
	ids := make([]string, 0, len(filled))
	for id := range filled {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %s\n", id, slotgraph.ValueString(filled[id]))
	}
	return b.String()
}
