// Package domain defines the records handled by the directory data layer:
// merchants with their menu items and menu images, visitor recommendations,
// and locally held reviews. The JSON shape of these types is the shape written
// to the local snapshot, so field names are part of the persisted format.
package domain

import (
	"math"
	"time"
)

// Merchant is a directory entry. Menu and MenuImages are owned children whose
// MerchantID must equal ID.
//
// DetailFetched starts false after every full sync and on every newly created
// record; it only ever moves from false to true, once the record has been run
// through detail hydration.
type Merchant struct {
	ID            ID          `json:"id"`
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Logo          *string     `json:"logo"`
	Phone         *string     `json:"phone"`
	WhatsApp      *string     `json:"whatsapp"`
	Menu          []MenuItem  `json:"menu"`
	MenuImages    []MenuImage `json:"menu_images"`
	DetailFetched bool        `json:"detailFetched"`
}

// MenuItem is a priced entry on a merchant's menu.
type MenuItem struct {
	ID         ID      `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	MerchantID ID      `json:"merchant_id"`
}

// MenuImage is a photo of a merchant's printed menu.
type MenuImage struct {
	ID         ID     `json:"id"`
	ImageURL   string `json:"image_url"`
	MerchantID ID     `json:"merchant_id"`
}

// Recommendation is a visitor suggestion for a merchant to add. Text fields are
// always stored in sanitized form.
type Recommendation struct {
	ID        ID         `json:"id"`
	Name      string     `json:"name"`
	Contact   string     `json:"contact"`
	Message   string     `json:"message"`
	Done      bool       `json:"done"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Review is a star rating left by a visitor. Reviews never leave the local
// snapshot.
type Review struct {
	ID     ID  `json:"id"`
	Rating int `json:"rating"`
}

// Rating bounds for a Review.
const (
	MinRating = 1
	MaxRating = 5
)

// CoercePrice maps absent, non-finite or negative prices to 0.
func CoercePrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}

// Clone returns a deep copy of m so that callers may modify the result without
// affecting shared state.
func (m Merchant) Clone() Merchant {
	out := m
	out.Logo = cloneStr(m.Logo)
	out.Phone = cloneStr(m.Phone)
	out.WhatsApp = cloneStr(m.WhatsApp)
	if m.Menu != nil {
		out.Menu = append([]MenuItem(nil), m.Menu...)
	}
	if m.MenuImages != nil {
		out.MenuImages = append([]MenuImage(nil), m.MenuImages...)
	}
	return out
}

// HasMenuItem reports whether itemID belongs to m.
func (m Merchant) HasMenuItem(itemID ID) bool {
	for _, it := range m.Menu {
		if it.ID == itemID {
			return true
		}
	}
	return false
}

// MenuImage returns the image with imageID when it belongs to m.
func (m Merchant) MenuImage(imageID ID) (MenuImage, bool) {
	for _, img := range m.MenuImages {
		if img.ID == imageID {
			return img, true
		}
	}
	return MenuImage{}, false
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
