package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	domain "github.com/JoshDFN/ic-commerce/internal/domain/session"
)

// storageKey mirrors the storefront's browser storage slot names.
type fileRecord struct {
	SessionID      string `json:"ic_commerce_session_id"`
	LastActivityMS int64  `json:"ic_commerce_session_timestamp"`
}

// FileStore persists the session token as a small JSON file, the service's
// stand-in for browser localStorage. Corrupt or unreadable files are treated
// as absent so the caller mints a fresh token.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (domain.Token, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Token{}, domain.ErrNotFound
		}
		return domain.Token{}, fmt.Errorf("session: read %s: %w", s.path, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.SessionID == "" {
		return domain.Token{}, domain.ErrNotFound
	}
	return domain.Token{
		Value:        rec.SessionID,
		LastActivity: time.UnixMilli(rec.LastActivityMS).UTC(),
	}, nil
}

func (s *FileStore) Save(_ context.Context, token domain.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}
	raw, err := json.Marshal(fileRecord{
		SessionID:      token.Value,
		LastActivityMS: token.LastActivity.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", s.path, err)
	}
	return nil
}
