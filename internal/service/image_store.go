package service

import (
	"context"

	"anichat/internal/domain"
)

type ImageStore interface {
	Upload(ctx context.Context, data []byte, opts domain.UploadOptions) (secureURL string, err error)
}
