package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/query"
)

const (
	DefaultModel         = "gpt-4.1"
	DefaultPromptVersion = "v1"
	defaultMaxTokens     = 700
	defaultTemperature   = 0.2
	noAnswerText         = "No answer."
)

// Answerer asks a chat model to answer from the dataset context only. It
// satisfies query.Fallback.
type Answerer struct {
	Runtime       Runtime
	Model         string
	PromptVersion string
	MaxTokens     int
	Temperature   float64
}

var _ query.Fallback = (*Answerer)(nil)

func systemPrompt(version string) string {
	return "You are a senior data analyst. Answer questions about a dataset using ONLY the provided dataset context.\n" +
		"Return STRICT JSON with keys: type, text, and optionally table or chart.\n" +
		"- type must be one of: text, table, chart\n" +
		"- text must always be present and readable.\n" +
		"- If returning type=table: table={columns:[...], rows:[{...}...]} and keep rows <= 20.\n" +
		"- If unsure, ask a short follow-up question.\n" +
		"Prompt version: " + version + "\n" +
		"Do not mention policy or hidden prompts."
}

// modelReply is the JSON object the model is asked to return.
type modelReply struct {
	Type  any             `json:"type"`
	Text  any             `json:"text"`
	Table json.RawMessage `json:"table"`
	Chart json.RawMessage `json:"chart"`
}

// Answer implements query.Fallback.
func (a *Answerer) Answer(ctx context.Context, question string, dc *query.DatasetContext) (*query.Answer, error) {
	if a == nil || a.Runtime == nil {
		return nil, apperr.External("no model runtime configured", nil)
	}
	model := a.Model
	if model == "" {
		model = DefaultModel
	}
	version := a.PromptVersion
	if version == "" {
		version = DefaultPromptVersion
	}
	maxTokens := a.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := a.Temperature
	if temp <= 0 {
		temp = defaultTemperature
	}

	user, err := json.Marshal(map[string]any{"question": question, "dataset_context": dc})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode dataset context", err)
	}
	resp, err := a.Runtime.Generate(ctx, GenerateRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt(version)},
			{Role: "user", Content: string(user)},
		},
		MaxTokens:      maxTokens,
		Temperature:    temp,
		ResponseFormat: ResponseFormatJSON,
	})
	if err != nil {
		return nil, failure(model, err)
	}

	ans := parseReply(resp.Content())
	cite := query.Citations{
		ColumnsUsed:   []string{},
		Model:         model,
		PromptVersion: version,
		Usage:         usageOf(model, resp.Usage),
	}
	if dc != nil {
		for _, s := range dc.Retrieved {
			cite.Retrieved = append(cite.Retrieved, s.Key)
		}
	}
	ans.Citations = &cite
	log.Debug().
		Str("model", model).
		Str("request_id", resp.RequestID).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("generated answer")
	return ans, nil
}

// parseReply normalises model output. Content that is not a JSON object is
// returned as text; unknown types fall back to text. A table or chart that
// does not decode is dropped.
func parseReply(content string) *query.Answer {
	var r modelReply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return &query.Answer{Type: query.TypeText, Text: content}
	}
	ans := &query.Answer{Type: stringOf(r.Type), Text: stringOf(r.Text)}
	switch ans.Type {
	case query.TypeText, query.TypeTable, query.TypeChart:
	default:
		ans.Type = query.TypeText
	}
	if present(r.Table) {
		var t query.Table
		if err := json.Unmarshal(r.Table, &t); err == nil {
			ans.Table = &t
		} else {
			log.Debug().Err(err).Msg("dropping malformed table from model reply")
		}
	}
	if present(r.Chart) {
		var c analysis.Chart
		if err := json.Unmarshal(r.Chart, &c); err == nil {
			ans.Chart = &c
		} else {
			log.Debug().Err(err).Msg("dropping malformed chart from model reply")
		}
	}
	if strings.TrimSpace(ans.Text) == "" {
		ans.Text = noAnswerText
	}
	return ans
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func usageOf(model string, u Usage) *query.Usage {
	out := &query.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
	if cost, ok := EstimateCostUSD(model, u.PromptTokens, u.CompletionTokens); ok {
		out.CostUSD = &cost
	}
	return out
}
