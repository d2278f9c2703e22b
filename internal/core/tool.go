package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// InvocationID uniquely identifies a tool invocation.
type InvocationID string

// ToolKind classifies a tool invocation and selects its result shape.
type ToolKind string

const (
	ToolKindSearch   ToolKind = "search"
	ToolKindTerminal ToolKind = "terminal"
	ToolKindFile     ToolKind = "file"
	ToolKindOther    ToolKind = "other"
)

// ParseToolKind parses a tool kind string.
func ParseToolKind(s string) (ToolKind, error) {
	switch ToolKind(strings.ToLower(strings.TrimSpace(s))) {
	case ToolKindSearch:
		return ToolKindSearch, nil
	case ToolKindTerminal:
		return ToolKindTerminal, nil
	case ToolKindFile:
		return ToolKindFile, nil
	case ToolKindOther:
		return ToolKindOther, nil
	}
	return "", ErrMalformed(CodeUnknownKind, fmt.Sprintf("unknown tool kind %q", s))
}

// SearchHit is one entry of a search result.
type SearchHit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// SearchResult is the payload of a completed search invocation.
type SearchResult struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

// TerminalResult is the payload of a completed terminal invocation.
type TerminalResult struct {
	Command string `json:"command"`
	Output  string `json:"output"`
}

// FileResult is the payload of a completed file invocation.
type FileResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ToolResult carries the kind-specific payload of a completed invocation.
// Exactly one field is set, matching Kind.
type ToolResult struct {
	Kind     ToolKind        `json:"kind"`
	Search   *SearchResult   `json:"search,omitempty"`
	Terminal *TerminalResult `json:"terminal,omitempty"`
	File     *FileResult     `json:"file,omitempty"`
	Other    json.RawMessage `json:"other,omitempty"`
}

// Validate checks that the payload shape matches kind.
func (r *ToolResult) Validate(kind ToolKind) error {
	if r == nil {
		return ErrMalformed(CodeMissingField, "tool result data is required")
	}
	if r.Kind != "" && r.Kind != kind {
		return ErrMalformed(CodeKindMismatch, fmt.Sprintf("result kind %s does not match invocation kind %s", r.Kind, kind))
	}

	var ok bool
	switch kind {
	case ToolKindSearch:
		ok = r.Search != nil && r.Terminal == nil && r.File == nil && r.Other == nil
	case ToolKindTerminal:
		ok = r.Terminal != nil && r.Search == nil && r.File == nil && r.Other == nil
	case ToolKindFile:
		ok = r.File != nil && r.Search == nil && r.Terminal == nil && r.Other == nil
	case ToolKindOther:
		ok = r.Search == nil && r.Terminal == nil && r.File == nil
		if ok && len(r.Other) > 0 && !json.Valid(r.Other) {
			return ErrMalformed(CodeInvalidJSON, "other tool result is not valid JSON")
		}
	default:
		return ErrMalformed(CodeUnknownKind, fmt.Sprintf("unknown tool kind %q", kind))
	}
	if !ok {
		return ErrMalformed(CodeKindMismatch, fmt.Sprintf("result payload does not match %s shape", kind))
	}
	return nil
}

// Equal reports whether two payloads carry the same data.
func (r *ToolResult) Equal(other *ToolResult) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Kind != other.Kind {
		return false
	}
	if !reflect.DeepEqual(r.Search, other.Search) ||
		!reflect.DeepEqual(r.Terminal, other.Terminal) ||
		!reflect.DeepEqual(r.File, other.File) {
		return false
	}
	return bytes.Equal(compactJSON(r.Other), compactJSON(other.Other))
}

// Clone returns a deep copy.
func (r *ToolResult) Clone() *ToolResult {
	if r == nil {
		return nil
	}
	c := &ToolResult{Kind: r.Kind}
	if r.Search != nil {
		s := *r.Search
		if r.Search.Results != nil {
			s.Results = make([]SearchHit, len(r.Search.Results))
			copy(s.Results, r.Search.Results)
		}
		c.Search = &s
	}
	if r.Terminal != nil {
		t := *r.Terminal
		c.Terminal = &t
	}
	if r.File != nil {
		f := *r.File
		c.File = &f
	}
	if r.Other != nil {
		c.Other = append(json.RawMessage(nil), r.Other...)
	}
	return c
}

// Summary returns a one-line description used by tab labels and logs.
func (r *ToolResult) Summary() string {
	if r == nil {
		return ""
	}
	switch {
	case r.Search != nil:
		return fmt.Sprintf("%q: %d results", r.Search.Query, len(r.Search.Results))
	case r.Terminal != nil:
		return "$ " + r.Terminal.Command
	case r.File != nil:
		return r.File.Path
	default:
		return fmt.Sprintf("%d bytes", len(r.Other))
	}
}

func compactJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// ToolInvocation is a single call to an external capability and its
// eventual result. It is immutable once Data is set.
type ToolInvocation struct {
	ID          InvocationID `json:"id"`
	TurnID      TurnID       `json:"turn_id"`
	Kind        ToolKind     `json:"kind"`
	Name        string       `json:"name"`
	Params      string       `json:"params"`
	Data        *ToolResult  `json:"data,omitempty"`
	InvokedAt   time.Time    `json:"invoked_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// IsCompleted reports whether the result has arrived.
func (i *ToolInvocation) IsCompleted() bool {
	return i.Data != nil
}

// Clone returns a deep copy.
func (i *ToolInvocation) Clone() *ToolInvocation {
	if i == nil {
		return nil
	}
	c := *i
	c.Data = i.Data.Clone()
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
