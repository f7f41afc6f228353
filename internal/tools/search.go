package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxSearchMatches = 50

// grepSearch finds literal occurrences of a query string in workspace
// files. Distinct from codebase_search, which ranks by relevance.
func (r *Router) grepSearch(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	query := stringArg(call.Args, "query")
	if query == "" {
		return failureResult(call, "grep_search requires a query argument")
	}
	include := stringArg(call.Args, "include_pattern")
	caseSensitive := boolArg(call.Args, "case_sensitive")
	needle := query
	if !caseSensitive {
		needle = strings.ToLower(query)
	}

	root, err := r.root(ctx, workspaceID)
	if err != nil {
		return failureResult(call, "%v", err)
	}

	var sb strings.Builder
	matches := 0
	walkErr := walkWorkspace(root, func(rel string, isDir bool) error {
		if isDir || matches >= maxSearchMatches {
			return nil
		}
		if include != "" && !matchInclude(include, rel) {
			return nil
		}
		file, err := os.Open(filepath.Join(root, rel))
		if err != nil {
			return nil
		}
		defer func() { _ = file.Close() }()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() && matches < maxSearchMatches {
			lineNo++
			line := scanner.Text()
			haystack := line
			if !caseSensitive {
				haystack = strings.ToLower(line)
			}
			if strings.Contains(haystack, needle) {
				fmt.Fprintf(&sb, "%s:%d: %s\n", rel, lineNo, strings.TrimRight(line, "\r"))
				matches++
			}
		}
		return nil
	})
	if walkErr != nil {
		return failureResult(call, "grep search failed: %v", walkErr)
	}
	if matches == 0 {
		return successResult(call, "no matches found")
	}
	output := sb.String()
	if matches >= maxSearchMatches {
		output += fmt.Sprintf("(truncated at %d matches)\n", maxSearchMatches)
	}
	return successResult(call, output)
}

type snippet struct {
	path  string
	line  int
	score int
	text  string
}

// codebaseSearch ranks file snippets by how many query terms they
// contain. It accepts optional target_directories glob filters. This is
// relevance-ranked free-text matching, not the literal grep tool.
func (r *Router) codebaseSearch(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	query := stringArg(call.Args, "query")
	if query == "" {
		return failureResult(call, "codebase_search requires a query argument")
	}
	dirs := stringSliceArg(call.Args, "target_directories")
	terms := queryTerms(query)
	if len(terms) == 0 {
		return failureResult(call, "codebase_search query has no searchable terms")
	}

	root, err := r.root(ctx, workspaceID)
	if err != nil {
		return failureResult(call, "%v", err)
	}

	var snippets []snippet
	walkErr := walkWorkspace(root, func(rel string, isDir bool) error {
		if isDir || !matchesAnyDir(rel, dirs) {
			return nil
		}
		file, err := os.Open(filepath.Join(root, rel))
		if err != nil {
			return nil
		}
		defer func() { _ = file.Close() }()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			lower := strings.ToLower(line)
			score := 0
			for _, term := range terms {
				if strings.Contains(lower, term) {
					score++
				}
			}
			if score > 0 {
				snippets = append(snippets, snippet{
					path:  rel,
					line:  lineNo,
					score: score,
					text:  strings.TrimSpace(line),
				})
			}
		}
		return nil
	})
	if walkErr != nil {
		return failureResult(call, "codebase search failed: %v", walkErr)
	}
	if len(snippets) == 0 {
		return successResult(call, "no relevant snippets found")
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].score > snippets[j].score
	})
	const maxSnippets = 10
	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	var sb strings.Builder
	for _, s := range snippets {
		fmt.Fprintf(&sb, "%s:%d: %s\n", s.path, s.line, s.text)
	}
	return successResult(call, sb.String())
}

// matchInclude applies an include_pattern glob to a candidate file.
// Patterns containing a separator match against the full
// workspace-relative path, plain patterns against the base name.
func matchInclude(pattern, rel string) bool {
	name := filepath.Base(rel)
	if strings.ContainsRune(pattern, '/') {
		name = filepath.ToSlash(rel)
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}

// queryTerms lowercases and splits a free-text query, dropping terms too
// short to be meaningful.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:"'()?!`)
		if len(f) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// matchesAnyDir reports whether rel falls under any of the directory
// globs. An empty filter list matches everything.
func matchesAnyDir(rel string, dirs []string) bool {
	if len(dirs) == 0 {
		return true
	}
	for _, dir := range dirs {
		pattern := strings.TrimSuffix(strings.TrimSuffix(dir, "/**"), "/")
		if pattern == "" {
			return true
		}
		if ok, err := filepath.Match(pattern, filepath.Dir(rel)); err == nil && ok {
			return true
		}
		if strings.HasPrefix(rel, pattern+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
