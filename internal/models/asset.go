package models

import "time"

// Display statuses derived on read, never stored.
const (
	DisplayAvailable  = "Available"
	DisplayPending    = "Pending"
	DisplayOutOfStock = "Out of Stock"
)

type Asset struct {
	ID            int64     `db:"id" json:"id" yaml:"-"`
	Name          string    `db:"name" json:"name" yaml:"name"`
	CategoryID    *int64    `db:"category_id" json:"category" yaml:"-"`
	SubCategoryID *int64    `db:"subcategory_id" json:"subcategory" yaml:"-"`
	Description   string    `db:"description" json:"description" yaml:"description"`
	SerialNumber  string    `db:"serial_number" json:"serial_number" yaml:"serial_number"`
	LocationID    *int64    `db:"location_id" json:"location" yaml:"-"`
	Available     bool      `db:"available" json:"available" yaml:"available"`
	Image         string    `db:"image" json:"image" yaml:"image"`
	Details       string    `db:"details" json:"details" yaml:"details"`
	CreatedAt     time.Time `db:"created_at" json:"created_at" yaml:"-"`

	Status string `db:"-" json:"status" yaml:"-"`
}

type AssetFilter struct {
	CategoryID    int64
	SubCategoryID int64
	LocationID    int64
	Search        string
	OnlyAvailable bool
}

type Category struct {
	ID            int64         `db:"id" json:"id"`
	Name          string        `db:"name" json:"name"`
	SubCategories []SubCategory `db:"-" json:"subcategories,omitempty"`
}

type SubCategory struct {
	ID         int64  `db:"id" json:"id"`
	CategoryID int64  `db:"category_id" json:"category"`
	Name       string `db:"name" json:"name"`
}

type Location struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

type LocationHistory struct {
	ID         int64     `db:"id" json:"id"`
	AssetID    int64     `db:"asset_id" json:"asset"`
	LocationID int64     `db:"location_id" json:"location"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	Note       string    `db:"note" json:"note"`
}
