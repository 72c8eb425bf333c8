package catalog

import (
	"math"
	"strconv"

	"github.com/cppla/myresource/models"
)

// Stats summarises the catalog for the sidebar.
type Stats struct {
	TotalFiles   int     `json:"total_files"`
	TotalSize    int64   `json:"total_size"`
	TotalSizeGB  float64 `json:"total_size_gb"`
	SizeText     string  `json:"size_text"`
	QuotaGB      float64 `json:"quota_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

// ComputeStats sums sizes and derives usage against quotaGB. Usage is capped at 100.
func ComputeStats(list []models.Resource, quotaGB float64) Stats {
	var total int64
	for _, r := range list {
		total += r.Size
	}
	gb := round2(float64(total) / gib)
	usage := 0.0
	if quotaGB > 0 {
		usage = math.Min(gb/quotaGB*100, 100)
	}
	return Stats{
		TotalFiles:   len(list),
		TotalSize:    total,
		TotalSizeGB:  gb,
		SizeText:     strconv.FormatFloat(gb, 'f', 2, 64) + " GB",
		QuotaGB:      quotaGB,
		UsagePercent: usage,
	}
}
