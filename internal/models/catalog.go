package models

// Catalog is the seed file layout loaded at startup.
type Catalog struct {
	Locations  []Location     `yaml:"locations"`
	Categories []CatalogGroup `yaml:"categories"`
	Assets     []CatalogAsset `yaml:"assets"`
}

type CatalogGroup struct {
	Name          string   `yaml:"name"`
	SubCategories []string `yaml:"subcategories"`
}

type CatalogAsset struct {
	Asset       `yaml:",inline"`
	Category    string `yaml:"category"`
	SubCategory string `yaml:"subcategory"`
	Location    string `yaml:"location"`
}
