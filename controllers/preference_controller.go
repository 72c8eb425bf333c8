package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/utils"
)

// PreferenceController serves the persisted UI preferences.
type PreferenceController struct {
	prefs *catalog.Preferences
}

func NewPreferenceController(prefs *catalog.Preferences) *PreferenceController {
	return &PreferenceController{prefs: prefs}
}

func (p *PreferenceController) GetTheme(ctx *gin.Context) {
	theme, err := p.prefs.Theme(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"theme": theme})
}

// SetTheme accepts {"theme":"dark"|"light"}.
func (p *PreferenceController) SetTheme(ctx *gin.Context) {
	var body struct {
		Theme string `json:"theme" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request body")
		return
	}
	theme, err := catalog.ParseTheme(body.Theme)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if err := p.prefs.SetTheme(ctx.Request.Context(), theme); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"theme": theme})
}

func (p *PreferenceController) ToggleTheme(ctx *gin.Context) {
	theme, err := p.prefs.ToggleTheme(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"theme": theme})
}
