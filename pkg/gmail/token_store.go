package gmail

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoToken is returned when an account has never been authorized.
var ErrNoToken = errors.New("no gmail token for account")

// TokenStore persists OAuth tokens per account.
type TokenStore interface {
	Load(accountID string) (*oauth2.Token, error)
	Save(accountID string, token *oauth2.Token) error
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._@-]`)

// FileTokenStore keeps one JSON file per account under dir.
type FileTokenStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{dir: dir}
}

func (s *FileTokenStore) path(accountID string) string {
	return filepath.Join(s.dir, unsafeFileChars.ReplaceAllString(accountID, "_")+".json")
}

func (s *FileTokenStore) Load(accountID string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(accountID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

func (s *FileTokenStore) Save(accountID string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}

	// write then rename so a crash never leaves a truncated token
	tmp := s.path(accountID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return os.Rename(tmp, s.path(accountID))
}
