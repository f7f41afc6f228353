package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/agentbench/agentbench/internal/common/errors"
)

// Resolver maps workspace IDs to directories and resolves tool-supplied
// relative paths inside them.
type Resolver struct {
	store Store
}

// NewResolver creates a path resolver backed by the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Root returns the absolute root directory of a workspace.
func (r *Resolver) Root(ctx context.Context, workspaceID string) (string, error) {
	ws, err := r.store.Get(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(ws.Path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return abs, nil
}

// Resolve joins a tool-supplied path onto the workspace root and verifies
// the result stays inside it. Absolute paths are re-rooted only when they
// already point inside the workspace.
func (r *Resolver) Resolve(ctx context.Context, workspaceID, path string) (string, error) {
	root, err := r.Root(ctx, workspaceID)
	if err != nil {
		return "", err
	}
	return ResolveWithin(root, path)
}

// ResolveWithin resolves path against root and rejects any result that
// escapes it.
func ResolveWithin(root, path string) (string, error) {
	if path == "" || path == "." {
		return root, nil
	}
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !isWithinRoot(root, candidate) {
		return "", apperrors.Security(fmt.Sprintf("path '%s' escapes the workspace root", path))
	}
	return candidate, nil
}

func isWithinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
