package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/utils"
)

var downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "myresource_downloads_total",
	Help: "Recorded resource downloads.",
})

// ResourceController serves the gallery: listing, detail, download and share.
type ResourceController struct {
	engine *catalog.Engine
	origin string
}

// NewResourceController creates a controller. origin prefixes share links;
// empty means it is derived from each request.
func NewResourceController(engine *catalog.Engine, origin string) *ResourceController {
	return &ResourceController{engine: engine, origin: strings.TrimRight(origin, "/")}
}

// ListCategories returns the category bar with per-category counts.
func (r *ResourceController) ListCategories(ctx *gin.Context) {
	list, err := r.engine.Store().Load(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, catalog.CategoryInfos(list))
}

// ListResources applies ?category=&search=&sort=&view= and returns cards.
func (r *ResourceController) ListResources(ctx *gin.Context) {
	filter, err := catalog.ParseFilter(ctx.Query("category"), ctx.Query("search"), ctx.Query("sort"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	view, err := catalog.ParseViewMode(ctx.Query("view"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	list, err := r.engine.Query(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, catalog.Listing{
		Filter: filter,
		View:   view,
		Cards:  catalog.NewCards(list, utils.SanitizeText),
		Empty:  len(list) == 0,
	})
}

// GetResource returns the detail card. Also the target of share links.
func (r *ResourceController) GetResource(ctx *gin.Context) {
	res, err := r.engine.Store().Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, catalog.NewCard(res, utils.SanitizeText))
}

// Download counts a download and returns where the bytes are.
func (r *ResourceController) Download(ctx *gin.Context) {
	res, err := r.engine.Store().RecordDownload(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	downloadsTotal.Inc()
	url := res.URL
	if url == "" {
		url = "#"
	}
	utils.Success(ctx, gin.H{
		"id":           res.ID,
		"name":         res.Name,
		"url":          url,
		"downloads":    res.Downloads,
		"notification": "开始下载: " + res.Name,
	})
}

// Share returns the share payload. Nothing is sent anywhere.
func (r *ResourceController) Share(ctx *gin.Context) {
	res, err := r.engine.Store().Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"url":          r.originOf(ctx.Request) + "/resource/" + res.ID,
		"title":        res.Name,
		"text":         res.Description,
		"notification": "链接已复制到剪贴板",
	})
}

func (r *ResourceController) originOf(req *http.Request) string {
	if r.origin != "" {
		return r.origin
	}
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if p := req.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + req.Host
}
