package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/upload"
	"github.com/cppla/myresource/utils"
)

// formOverhead is slack for multipart boundaries and text fields on top of MaxUploadMB.
const formOverhead = 1 << 20

// UploadController accepts files and appends them to the catalog.
type UploadController struct {
	pipeline *upload.Pipeline
	maxBytes int64
}

// NewUploadController creates a controller; maxBytes <= 0 disables the size check.
func NewUploadController(pipeline *upload.Pipeline, maxBytes int64) *UploadController {
	return &UploadController{pipeline: pipeline, maxBytes: maxBytes}
}

type selectedFile struct {
	Name string `json:"name" binding:"required"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Suggest proposes name, category and total size for a selection described by metadata only.
func (u *UploadController) Suggest(ctx *gin.Context) {
	var body struct {
		Files []selectedFile `json:"files" binding:"dive"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request body")
		return
	}
	files := make([]upload.File, 0, len(body.Files))
	for _, f := range body.Files {
		files = append(files, upload.File{Name: f.Name, Size: f.Size, Type: f.Type})
	}
	suggestion, err := u.pipeline.NewSession().Select(files)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, suggestion)
}

// Create handles a multipart upload (fields: files, name, category, tags,
// description). With ?stream=1 progress is streamed as server-sent events.
func (u *UploadController) Create(ctx *gin.Context) {
	if u.maxBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, u.maxBytes+formOverhead)
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "upload too large")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid multipart form")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}

	var total int64
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		total += fh.Size
		files = append(files, fileFromHeader(fh))
	}
	if u.maxBytes > 0 && total > u.maxBytes {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "upload too large")
		return
	}

	var meta upload.Metadata
	if err := ctx.ShouldBind(&meta); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid form fields")
		return
	}

	session := u.pipeline.NewSession()
	if _, err := session.Select(files); err != nil {
		respondError(ctx, err)
		return
	}

	if ctx.Query("stream") != "1" {
		rec, err := session.Start(ctx.Request.Context(), meta, nil)
		if err != nil {
			respondError(ctx, err)
			return
		}
		utils.Created(ctx, catalog.NewCard(rec, utils.SanitizeText))
		return
	}

	streamed := false
	_, err = session.Start(ctx.Request.Context(), meta, func(e upload.Event) {
		if !streamed {
			ctx.Header("X-Accel-Buffering", "no")
			streamed = true
		}
		ctx.SSEvent(string(e.Type), e)
		ctx.Writer.Flush()
	})
	// rejected before anything was streamed: answer with a plain JSON error
	if err != nil && !streamed {
		respondError(ctx, err)
	}
}

func fileFromHeader(fh *multipart.FileHeader) upload.File {
	return upload.File{
		Name: filepath.Base(fh.Filename),
		Size: fh.Size,
		Type: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}
