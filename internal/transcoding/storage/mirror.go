package storage

import (
	"context"
	"fmt"

	"transcoding_service/pkg/database"
	"transcoding_service/pkg/logger"

	"go.uber.org/zap"
)

// Mirror copies completed artifacts to a secondary object store
type Mirror interface {
	Upload(ctx context.Context, name, localPath string) error
	Remove(ctx context.Context, name string) error
}

type minioMirror struct {
	client      database.MinIOClientRepo
	contentType string
}

// NewMinIOMirror mirror artifacts into a minio bucket under their output name
func NewMinIOMirror(client database.MinIOClientRepo, contentType string) Mirror {
	if contentType == "" {
		contentType = "video/webm"
	}
	return &minioMirror{client: client, contentType: contentType}
}

func (m *minioMirror) Upload(ctx context.Context, name, localPath string) error {
	if err := m.client.UploadFile(ctx, name, localPath, m.contentType); err != nil {
		return fmt.Errorf("mirror upload %s: %w", name, err)
	}
	logger.Log.Debug("artifact mirrored", zap.String("object", name))
	return nil
}

func (m *minioMirror) Remove(ctx context.Context, name string) error {
	if err := m.client.RemoveObject(ctx, name); err != nil {
		return fmt.Errorf("mirror remove %s: %w", name, err)
	}
	return nil
}

type noopMirror struct{}

// NewNoopMirror mirror that does nothing, used when minio is disabled
func NewNoopMirror() Mirror { return noopMirror{} }

func (noopMirror) Upload(context.Context, string, string) error { return nil }
func (noopMirror) Remove(context.Context, string) error         { return nil }
