package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	"github.com/cppla/myresource/utils"
)

// BlobOpener streams stored objects back.
type BlobOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, minio.ObjectInfo, error)
}

// BlobController serves uploaded bytes kept in object storage.
type BlobController struct {
	blobs BlobOpener
}

func NewBlobController(blobs BlobOpener) *BlobController {
	return &BlobController{blobs: blobs}
}

// Get streams /blobs/*key.
func (b *BlobController) Get(ctx *gin.Context) {
	key := strings.TrimPrefix(ctx.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		utils.Error(ctx, http.StatusNotFound, 40402, "blob not found")
		return
	}
	obj, info, err := b.blobs.Open(ctx.Request.Context(), key)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			utils.Error(ctx, http.StatusNotFound, 40402, "blob not found")
			return
		}
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusBadGateway, 50201, "object storage unavailable")
		return
	}
	defer obj.Close()
	ctx.DataFromReader(http.StatusOK, info.Size, info.ContentType, obj, nil)
}
