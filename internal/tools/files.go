package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// readFile returns file contents, optionally a line range. offset is the
// 1-based first line, limit the number of lines. Partial reads populate
// StartLine/EndLine on the result.
func (r *Router) readFile(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	target := stringArg(call.Args, "target_file")
	if target == "" {
		return failureResult(call, "read_file requires a target_file argument")
	}
	path, err := r.resolvePath(ctx, workspaceID, target)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failureResult(call, "file '%s' does not exist", target)
		}
		return failureResult(call, "failed to read '%s': %v", target, err)
	}

	offset, hasOffset := intArg(call.Args, "offset")
	limit, hasLimit := intArg(call.Args, "limit")
	if !hasOffset && !hasLimit {
		return successResult(call, string(data))
	}

	lines := strings.Split(string(data), "\n")
	start := 1
	if hasOffset && offset > 1 {
		start = offset
	}
	if start > len(lines) {
		return failureResult(call, "offset %d is past the end of '%s' (%d lines)", start, target, len(lines))
	}
	end := len(lines)
	if hasLimit && limit > 0 && start+limit-1 < end {
		end = start + limit - 1
	}
	result := successResult(call, strings.Join(lines[start-1:end], "\n"))
	result.StartLine = start
	result.EndLine = end
	return result
}

// writeFile creates or replaces a file and records the edit so reapply
// can re-issue it.
func (r *Router) writeFile(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	target := stringArg(call.Args, "target_file")
	if target == "" {
		return failureResult(call, "write_file requires a target_file argument")
	}
	content := stringArg(call.Args, "code_edit")
	if content == "" {
		content = stringArg(call.Args, "contents")
	}
	path, err := r.resolvePath(ctx, workspaceID, target)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failureResult(call, "failed to create parent directory for '%s': %v", target, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return failureResult(call, "failed to write '%s': %v", target, err)
	}
	r.lastEdits.Record(workspaceID, LastEdit{
		TargetFile:   target,
		Instructions: stringArg(call.Args, "instructions"),
		CodeEdit:     content,
	})
	return successResult(call, fmt.Sprintf("wrote %d bytes to %s", len(content), target))
}

func (r *Router) deleteFile(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	target := stringArg(call.Args, "target_file")
	if target == "" {
		return failureResult(call, "delete_file requires a target_file argument")
	}
	path, err := r.resolvePath(ctx, workspaceID, target)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return failureResult(call, "file '%s' does not exist", target)
		}
		return failureResult(call, "failed to delete '%s': %v", target, err)
	}
	return successResult(call, fmt.Sprintf("deleted %s", target))
}

// searchReplace replaces the first occurrence of old_string in a file.
func (r *Router) searchReplace(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	target := stringArg(call.Args, "file_path")
	if target == "" {
		target = stringArg(call.Args, "target_file")
	}
	if target == "" {
		return failureResult(call, "search_replace requires a file_path argument")
	}
	oldStr := stringArg(call.Args, "old_string")
	if oldStr == "" {
		return failureResult(call, "search_replace requires a non-empty old_string")
	}
	newStr := stringArg(call.Args, "new_string")

	path, err := r.resolvePath(ctx, workspaceID, target)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failureResult(call, "file '%s' does not exist", target)
		}
		return failureResult(call, "failed to read '%s': %v", target, err)
	}
	content := string(data)
	if !strings.Contains(content, oldStr) {
		return failureResult(call, "old_string not found in '%s'", target)
	}
	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return failureResult(call, "failed to write '%s': %v", target, err)
	}
	return successResult(call, fmt.Sprintf("replaced 1 occurrence in %s", target))
}

func (r *Router) listDir(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	rel := stringArg(call.Args, "relative_workspace_path")
	path, err := r.resolvePath(ctx, workspaceID, rel)
	if err != nil {
		return failureResult(call, "%v", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failureResult(call, "directory '%s' does not exist", rel)
		}
		return failureResult(call, "failed to list '%s': %v", rel, err)
	}
	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			sb.WriteString("[dir]  " + entry.Name() + "\n")
			continue
		}
		info, err := entry.Info()
		if err != nil {
			sb.WriteString("[file] " + entry.Name() + "\n")
			continue
		}
		fmt.Fprintf(&sb, "[file] %s (%d bytes)\n", entry.Name(), info.Size())
	}
	return successResult(call, sb.String())
}

// fileSearch lists workspace files whose path contains the query,
// case-insensitive, best matches first.
func (r *Router) fileSearch(ctx context.Context, workspaceID string, call ToolCall) ToolResult {
	query := strings.ToLower(stringArg(call.Args, "query"))
	if query == "" {
		return failureResult(call, "file_search requires a query argument")
	}
	root, err := r.root(ctx, workspaceID)
	if err != nil {
		return failureResult(call, "%v", err)
	}

	const maxResults = 50
	var matches []string
	err = walkWorkspace(root, func(rel string, isDir bool) error {
		if isDir || !strings.Contains(strings.ToLower(rel), query) {
			return nil
		}
		matches = append(matches, rel)
		return nil
	})
	if err != nil {
		return failureResult(call, "file search failed: %v", err)
	}
	// Shorter paths are usually the more direct match.
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	if len(matches) == 0 {
		return successResult(call, "no files matched")
	}
	return successResult(call, strings.Join(matches, "\n"))
}

// skipDirs are directories never descended into during searches.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".next":        {},
	"dist":         {},
	"vendor":       {},
}

// walkWorkspace walks files under root, reporting workspace-relative
// paths and skipping well-known dependency and VCS directories.
func walkWorkspace(root string, fn func(rel string, isDir bool) error) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
		}
		return fn(rel, d.IsDir())
	})
}
