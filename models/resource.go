package models

import "time"

// Category classifies a resource for filtering and card styling.
type Category string

const (
	CategoryVideo    Category = "video"
	CategoryImage    Category = "image"
	CategorySoftware Category = "software"
	CategoryDocument Category = "document"
	CategoryAudio    Category = "audio"
	CategoryOther    Category = "other"
)

// Categories lists the fixed categories in display order.
var Categories = []Category{
	CategoryVideo,
	CategoryImage,
	CategorySoftware,
	CategoryDocument,
	CategoryAudio,
	CategoryOther,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Resource is one catalog entry describing an uploaded file.
type Resource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Tags        []string  `json:"tags"`
	Description string    `json:"description"`
	Size        int64     `json:"size"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Downloads   int64     `json:"downloads"`
	URL         string    `json:"url,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"` // data URL, images only
}
