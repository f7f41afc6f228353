package tools

import "sync"

// LastEdit records the most recent file-edit intent in a workspace, so
// the reapply tool can re-issue it.
type LastEdit struct {
	TargetFile   string `json:"target_file"`
	Instructions string `json:"instructions"`
	CodeEdit     string `json:"code_edit"`
}

// LastEditStore keeps one LastEdit per workspace, most recent write wins.
// Reads do not clear the entry, reapply may be repeated.
type LastEditStore struct {
	mu    sync.RWMutex
	edits map[string]LastEdit
}

// NewLastEditStore creates an empty store.
func NewLastEditStore() *LastEditStore {
	return &LastEditStore{edits: make(map[string]LastEdit)}
}

// Record stores the edit as the workspace's most recent one.
func (s *LastEditStore) Record(workspaceID string, edit LastEdit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[workspaceID] = edit
}

// Get returns the most recent edit for a workspace, if any.
func (s *LastEditStore) Get(workspaceID string) (LastEdit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edit, ok := s.edits[workspaceID]
	return edit, ok
}
