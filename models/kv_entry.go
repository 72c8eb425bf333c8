package models

import "time"

// KVEntry backs the catalog key-value layout when MySQL is the store backend.
// One row holds the whole serialized catalog, another the theme flag.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:longtext;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the table name short and stable.
func (KVEntry) TableName() string {
	return "kv_entries"
}
