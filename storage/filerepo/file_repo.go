// Package filerepo stores each entry as a file in a data folder. It is
// the default backend: no external service, survives restarts, and the
// entry count is tiny (a token and an identity blob).
package filerepo

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kinnstay/booking-workflow/storage"
)

var _ storage.Repo = (*FileRepo)(nil)

type FileRepo struct {
	folder string
}

// New creates the data folder if needed and returns a repo rooted there.
func New(folder string) (*FileRepo, error) {
	if folder == "" {
		return nil, errors.New("[filerepo.New] folder is required")
	}
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filerepo.New] os.MkdirAll")
	}
	return &FileRepo{folder: folder}, nil
}

func (fr *FileRepo) Set(key string, value []byte) error {
	if err := os.WriteFile(fr.path(key), value, 0o600); err != nil {
		return errors.Wrap(err, "[FileRepo.Set] os.WriteFile")
	}
	return nil
}

func (fr *FileRepo) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(fr.path(key))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileRepo.Get] os.ReadFile")
	}
	return data, nil
}

func (fr *FileRepo) Delete(key string) error {
	err := os.Remove(fr.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileRepo.Delete] os.Remove")
	}
	return nil
}

// path encodes the key so arbitrary key strings cannot escape the data
// folder.
func (fr *FileRepo) path(key string) string {
	name := base64.URLEncoding.EncodeToString([]byte(key))
	return filepath.Join(fr.folder, name+".entry")
}
