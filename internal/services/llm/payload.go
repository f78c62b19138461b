package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type chatCompletionResponse struct {
	Choices []completionChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// completionChoice tolerates providers that answer with the streaming
// "delta" shape or the legacy "text" field.
type completionChoice struct {
	Message      completionMessage `json:"message"`
	Delta        completionMessage `json:"delta"`
	Text         string            `json:"text"`
	FinishReason string            `json:"finish_reason"`
}

type completionMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function functionCall `json:"function"`
	} `json:"tool_calls"`
	FunctionCall *functionCall `json:"function_call"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// arguments returns the first function or tool call argument string.
func (m completionMessage) arguments() string {
	if m.FunctionCall != nil {
		if args := strings.TrimSpace(m.FunctionCall.Arguments); args != "" {
			return args
		}
	}
	for _, call := range m.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

// payload returns the first non-empty content across choices and the first
// reported finish reason.
func (r chatCompletionResponse) payload() (string, string) {
	finish := ""
	for _, choice := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		for _, candidate := range []string{
			choice.Message.Content,
			choice.Delta.Content,
			choice.Text,
			choice.Message.arguments(),
			choice.Delta.arguments(),
		} {
			if text := strings.TrimSpace(candidate); text != "" {
				return text, finish
			}
		}
	}
	return "", finish
}

func (r chatCompletionResponse) refusal() string {
	for _, choice := range r.Choices {
		for _, text := range []string{choice.Message.Refusal, choice.Delta.Refusal} {
			if text = strings.TrimSpace(text); text != "" {
				return text
			}
		}
	}
	return ""
}

// DecodeLLMJSON unmarshals a model reply into target. Replies wrapped in a
// ```json fence or surrounded by prose are narrowed to the outermost JSON
// object or array first.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(trimmed), target)
	if err == nil {
		return nil
	}
	narrowed := extractJSON(trimmed)
	if narrowed == "" || narrowed == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", err, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(narrowed), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, snippet(narrowed))
	}
	return nil
}

func extractJSON(content string) string {
	body := strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(body, "```"); ok {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			rest = rest[4:]
		}
		if idx := strings.LastIndex(rest, "```"); idx >= 0 {
			rest = rest[:idx]
		}
		body = strings.TrimSpace(rest)
	}
	if body == "" || body[0] == '{' || body[0] == '[' {
		return body
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(body, pair[0])
		end := strings.LastIndex(body, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(body[start : end+1])
		}
	}
	return body
}

// snippet collapses whitespace and truncates to 160 runes for error text.
func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > 160 {
		return string(runes[:160]) + "..."
	}
	return clean
}
