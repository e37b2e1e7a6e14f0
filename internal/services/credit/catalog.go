package credit

import "github.com/gosimple/slug"

// Package is an immutable credit catalog entry. Bonus credits reward larger
// purchases; the price is matched against incoming payment amounts.
type Package struct {
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	BaseCredits  int     `json:"base_credits"`
	BonusCredits int     `json:"bonus_credits"`
	Price        float64 `json:"price"`
}

// TotalCredits is what a purchase of this package grants.
func (p Package) TotalCredits() int {
	return p.BaseCredits + p.BonusCredits
}

// Catalog is a read-only set of purchasable credit packages.
type Catalog struct {
	packages []Package
}

// NewCatalog builds a catalog, deriving missing slugs from package names.
func NewCatalog(packages []Package) *Catalog {
	list := make([]Package, len(packages))
	copy(list, packages)
	for i := range list {
		if list[i].Slug == "" {
			list[i].Slug = slug.Make(list[i].Name)
		}
	}
	return &Catalog{packages: list}
}

// DefaultCatalog returns the standard UGX credit packages.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Package{
		{Name: "Starter Pack", BaseCredits: 50, BonusCredits: 0, Price: 10000},
		{Name: "Standard Pack", BaseCredits: 150, BonusCredits: 25, Price: 25000},
		{Name: "Plus Pack", BaseCredits: 350, BonusCredits: 75, Price: 50000},
		{Name: "Pro Pack", BaseCredits: 800, BonusCredits: 200, Price: 100000},
	})
}

// ByPrice resolves the package matching a payment amount.
func (c *Catalog) ByPrice(amount float64) (Package, bool) {
	for _, p := range c.packages {
		if p.Price == amount {
			return p, true
		}
	}
	return Package{}, false
}

// BySlug resolves a package by its slug.
func (c *Catalog) BySlug(s string) (Package, bool) {
	for _, p := range c.packages {
		if p.Slug == s {
			return p, true
		}
	}
	return Package{}, false
}

// List returns a copy of the catalog entries.
func (c *Catalog) List() []Package {
	list := make([]Package, len(c.packages))
	copy(list, c.packages)
	return list
}
