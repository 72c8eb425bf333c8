package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/upload"
	"github.com/cppla/myresource/utils"
)

// respondError maps domain errors onto the numeric code scheme.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidFilter):
		utils.Error(ctx, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, catalog.ErrInvalidCategory), errors.Is(err, upload.ErrInvalidCategory):
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
	case errors.Is(err, upload.ErrNoFiles):
		utils.Error(ctx, http.StatusBadRequest, 40003, "no files uploaded")
	case errors.Is(err, catalog.ErrInvalidTheme):
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "resource not found")
	case errors.Is(err, upload.ErrBusy), errors.Is(err, catalog.ErrDuplicateID):
		utils.Error(ctx, http.StatusConflict, 40901, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away, nobody reads the answer
		ctx.Status(499)
	default:
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "catalog unavailable")
	}
}
