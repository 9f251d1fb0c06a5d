package filestore

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/stagium/backend/internal/platform/logger"
)

// Store persists accepted note de service documents under a single upload root
// and hands back the relative URL recorded on the Stage. Deletion is idempotent:
// removing an absent file is not an error, so cleanup can be retried freely.
type Store interface {
	Save(data []byte, originalName string) (relURL string, err error)
	Delete(relURL string) error
	AbsolutePath(relURL string) (string, error)
	Root() string
}

const urlPrefix = "/files/notes_service"

type store struct {
	log  *logger.Logger
	root string
}

func New(log *logger.Logger, root string) (Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("upload root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &store{log: log.With("component", "FileStore"), root: root}, nil
}

func (s *store) Root() string { return s.root }

func (s *store) Save(data []byte, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	name := uuid.New().String() + ext
	abs := filepath.Join(s.root, name)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path.Join(urlPrefix, name), nil
}

func (s *store) Delete(relURL string) error {
	abs, err := s.AbsolutePath(relURL)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// AbsolutePath resolves a stored relative URL back to a path under the upload
// root, rejecting anything that would escape it.
func (s *store) AbsolutePath(relURL string) (string, error) {
	relURL = strings.TrimSpace(relURL)
	if relURL == "" {
		return "", fmt.Errorf("empty document path")
	}
	name := path.Base(relURL)
	if name == "." || name == "/" || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid document path %q", relURL)
	}
	return filepath.Join(s.root, name), nil
}
