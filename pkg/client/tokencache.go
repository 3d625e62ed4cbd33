package client

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// TokenCache persists the session token between runs of the binary. Only the
// token is cached; identity and all conversation state are rebuilt from the
// wire.
type TokenCache interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenCache stores the token in a single file.
type FileTokenCache struct {
	Path string
}

func (f *FileTokenCache) Load() (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "reading token cache")
	}
	return strings.TrimSpace(string(b)), nil
}

func (f *FileTokenCache) Save(token string) error {
	return errors.Wrap(os.WriteFile(f.Path, []byte(token+"\n"), 0o600), "writing token cache")
}

func (f *FileTokenCache) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "clearing token cache")
	}
	return nil
}
