package catalog

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cppla/myresource/models"
)

// CategoryInfo is the display metadata of a category.
type CategoryInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

var categoryInfos = map[models.Category]CategoryInfo{
	models.CategoryVideo:    {ID: "video", Name: "视频", Icon: "fa-play-circle", Color: "#ff6b6b"},
	models.CategoryImage:    {ID: "image", Name: "图片", Icon: "fa-image", Color: "#4ecdc4"},
	models.CategorySoftware: {ID: "software", Name: "软件", Icon: "fa-download", Color: "#ffd166"},
	models.CategoryDocument: {ID: "document", Name: "文档", Icon: "fa-file-alt", Color: "#06d6a0"},
	models.CategoryAudio:    {ID: "audio", Name: "音频", Icon: "fa-music", Color: "#118ab2"},
	models.CategoryOther:    {ID: "other", Name: "其他", Icon: "fa-archive", Color: "#9d4edd"},
}

// InfoOf returns display metadata, falling back to "other".
func InfoOf(c models.Category) CategoryInfo {
	if info, ok := categoryInfos[c]; ok {
		return info
	}
	return categoryInfos[models.CategoryOther]
}

// CategoryInfos lists "all" followed by the six categories with record counts.
func CategoryInfos(list []models.Resource) []CategoryInfo {
	counts := make(map[models.Category]int, len(models.Categories))
	for _, r := range list {
		counts[r.Category]++
	}
	out := make([]CategoryInfo, 0, len(models.Categories)+1)
	out = append(out, CategoryInfo{ID: CategoryAll, Name: "全部", Icon: "fa-th-large", Color: "#4361ee", Count: len(list)})
	for _, c := range models.Categories {
		info := InfoOf(c)
		info.Count = counts[c]
		out = append(out, info)
	}
	return out
}

const (
	defaultDescription = "暂无描述"
	defaultType        = "未知类型"
)

// Card is a render-ready resource used by both the HTTP and terminal front ends.
type Card struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	CategoryName  string   `json:"category_name"`
	CategoryIcon  string   `json:"category_icon"`
	CategoryColor string   `json:"category_color"`
	Tags          []string `json:"tags"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	Size          int64    `json:"size"`
	SizeText      string   `json:"size_text"`
	Date          string   `json:"date"`
	DateText      string   `json:"date_text"`
	Downloads     int64    `json:"downloads"`
	URL           string   `json:"url,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
}

// NewCard converts a record into a card. clean is applied to user-supplied
// text (name, description, tags); nil leaves text untouched.
func NewCard(r models.Resource, clean func(string) string) Card {
	if clean == nil {
		clean = func(s string) string { return s }
	}
	info := InfoOf(r.Category)
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		tags = append(tags, clean(t))
	}
	desc := clean(r.Description)
	if desc == "" {
		desc = defaultDescription
	}
	typ := r.Type
	if typ == "" {
		typ = defaultType
	}
	return Card{
		ID:            r.ID,
		Name:          clean(r.Name),
		Category:      string(r.Category),
		CategoryName:  info.Name,
		CategoryIcon:  info.Icon,
		CategoryColor: info.Color,
		Tags:          tags,
		Description:   desc,
		Type:          clean(typ),
		Size:          r.Size,
		SizeText:      FormatSize(r.Size),
		Date:          r.Date.UTC().Format(time.RFC3339Nano),
		DateText:      FormatDate(r.Date),
		Downloads:     r.Downloads,
		URL:           r.URL,
		Thumbnail:     r.Thumbnail,
	}
}

// NewCards maps NewCard over list.
func NewCards(list []models.Resource, clean func(string) string) []Card {
	cards := make([]Card, 0, len(list))
	for _, r := range list {
		cards = append(cards, NewCard(r, clean))
	}
	return cards
}

type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// ParseViewMode defaults to grid.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "":
		return ViewGrid, nil
	case ViewGrid, ViewList:
		return ViewMode(s), nil
	}
	return "", fmt.Errorf("%w: unknown view %q", ErrInvalidFilter, s)
}

// Listing is one rendered gallery page.
type Listing struct {
	Filter Filter   `json:"filter"`
	View   ViewMode `json:"view"`
	Cards  []Card   `json:"cards"`
	Empty  bool     `json:"empty"`
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders bytes with base 1024 and at most two decimals, e.g. "450 MB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v, i := float64(bytes), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(round2(v), 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatDate renders the local calendar date as yyyy/mm/dd.
func FormatDate(t time.Time) string {
	return t.Local().Format("2006/01/02")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
