package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/stitch/pkg/rule"
)

const maxOutputLen = 64 * 1024

var errNoDocument = errors.New("one of html or path is required")

type ListRulesParams struct{}

type RuleInfo struct {
	Name        string   `json:"name,omitempty"`
	Selector    string   `json:"selector"`
	DataModules []string `json:"dataModules,omitempty"`
	PathIsolate []string `json:"pathIsolate,omitempty"`
	PathIgnore  []string `json:"pathIgnore,omitempty"`
	Index       int      `json:"index"`
	Outer       bool     `json:"outer"`
}

type ListRulesResult struct {
	Rules []RuleInfo `json:"rules"`
}

type RenderDocumentParams struct {
	Path string `json:"path" jsonschema:"the document path used for path filtering, e.g. /index.html"`
	HTML string `json:"html,omitempty" jsonschema:"the document to transform; when empty the file at path under the document root is read"`
}

type RuleOutcome struct {
	Rule  string `json:"rule"`
	Error string `json:"error,omitempty"`
	Count int    `json:"count"`
}

type RenderDocumentResult struct {
	Document string        `json:"document"`
	HTML     string        `json:"html"`
	Rules    []RuleOutcome `json:"rules"`
	Applied  int           `json:"applied"`
}

type InvalidateParams struct {
	Paths []string `json:"paths,omitempty" jsonschema:"data source paths relative to the project root; when empty every cached source is dropped"`
}

type InvalidateResult struct {
	Invalidated []string `json:"invalidated"`
}

func (s *Server) handleListRules(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListRulesParams,
) (*mcp.CallToolResult, ListRulesResult, error) {
	rules := s.pipeline.Rules()

	out := ListRulesResult{Rules: make([]RuleInfo, 0, len(rules))}
	for _, r := range rules {
		out.Rules = append(out.Rules, RuleInfo{
			Index:       r.Index,
			Name:        r.Name,
			Selector:    r.Selector,
			DataModules: s.relativeModules(r.DataModules),
			PathIsolate: r.PathIsolate,
			PathIgnore:  r.PathIgnore,
			Outer:       r.Outer,
		})
	}

	return nil, out, nil
}

func (s *Server) handleRenderDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	params RenderDocumentParams,
) (*mcp.CallToolResult, RenderDocumentResult, error) {
	doc := params.HTML
	if doc == "" {
		if params.Path == "" {
			return nil, RenderDocumentResult{}, errNoDocument
		}

		b, err := s.readDocument(params.Path)
		if err != nil {
			return nil, RenderDocumentResult{}, err
		}

		doc = string(b)
	}

	res, err := s.pipeline.Transform(ctx, params.Path, doc)
	if err != nil {
		return nil, RenderDocumentResult{}, fmt.Errorf("transform %s: %w", params.Path, err)
	}

	out := RenderDocumentResult{
		Document: res.Document,
		HTML:     truncateString(res.HTML, maxOutputLen),
		Applied:  res.Applied,
		Rules:    make([]RuleOutcome, 0, len(res.Rules)),
	}
	for _, rr := range res.Rules {
		o := RuleOutcome{Rule: rr.Rule.String(), Count: rr.Count}
		if rr.Err != nil {
			o.Error = rr.Err.Error()
		}

		out.Rules = append(out.Rules, o)
	}

	return nil, out, nil
}

func (s *Server) handleInvalidate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	params InvalidateParams,
) (*mcp.CallToolResult, InvalidateResult, error) {
	cache := s.pipeline.Loader().Cache()

	out := InvalidateResult{Invalidated: []string{}}

	if len(params.Paths) == 0 {
		for _, p := range cache.Paths() {
			if cache.Invalidate(p) {
				out.Invalidated = append(out.Invalidated, s.relative(p))
			}
		}

		return nil, out, nil
	}

	for _, p := range params.Paths {
		abs := filepath.FromSlash(p)
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.root, abs)
		}

		abs = filepath.Clean(abs)

		if s.controller != nil {
			if s.controller.Handle(ctx, abs).Invalidated {
				out.Invalidated = append(out.Invalidated, s.relative(abs))
			}

			continue
		}

		if cache.Invalidate(abs) {
			out.Invalidated = append(out.Invalidated, s.relative(abs))
		}
	}

	return nil, out, nil
}

func (s *Server) readDocument(docPath string) ([]byte, error) {
	// Normalized paths are rooted and clean, so they stay inside dir.
	rel := strings.TrimPrefix(rule.NormalizeDocPath(docPath), "/")
	p := filepath.Join(s.dir, filepath.FromSlash(rel))

	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	return b, nil
}

func (s *Server) relativeModules(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, s.relative(p))
	}

	return out
}

func (s *Server) relative(p string) string {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}

	return filepath.ToSlash(rel)
}

func truncateString(str string, maxLen int) string {
	if len(str) > maxLen {
		return str[:maxLen] + "\n[OUTPUT TRUNCATED]"
	}

	return str
}
