package impl

import (
	"context"
	"fmt"
	"log/slog"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/observability/middleware"
	"anichat/internal/service"
)

func uploadImage(ctx context.Context, images service.ImageStore, up *dto.Upload, opts domain.UploadOptions) (string, error) {
	if images == nil {
		return "", domain.ErrUploadFailed
	}
	opts.ContentType = up.ContentType
	url, err := images.Upload(ctx, up.Data, opts)
	if err != nil {
		slog.Warn("image upload failed", append([]any{"folder", opts.Folder, "error", err}, middleware.LogAttrs(ctx)...)...)
		return "", fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}
	return url, nil
}
