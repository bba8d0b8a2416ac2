package store

import (
	"context"
	"fmt"
	"os"

	"github.com/dmorgan81/getimg/internal/log"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

type Loader interface {
	Load(context.Context, string) ([]byte, error)
}

type Store interface {
	Loader
	Uploader
}

type FileStore struct{}

func (*FileStore) Load(ctx context.Context, name string) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Info("reading", "file", name)

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (*FileStore) Upload(ctx context.Context, params UploadParams) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Info("writing", "file", params.Name)

	if err := os.WriteFile(params.Name, params.Data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", params.Name, err)
	}
	return nil
}
