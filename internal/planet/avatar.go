package planet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const avatarFile = "avatar.png"

// AvatarStore keeps one avatar image per planet on disk.
type AvatarStore struct {
	root string
}

func NewAvatarStore(root string) *AvatarStore {
	return &AvatarStore{root: root}
}

func (s *AvatarStore) Path(planetID uuid.UUID) string {
	return filepath.Join(s.root, planetID.String(), avatarFile)
}

func (s *AvatarStore) UpdateAvatar(ctx context.Context, planetID uuid.UUID, image []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(image) == 0 {
		return fmt.Errorf("empty avatar image")
	}
	path := s.Path(planetID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, image, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *AvatarStore) Remove(planetID uuid.UUID) error {
	return os.RemoveAll(filepath.Dir(s.Path(planetID)))
}
