package remote

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// Price decodes numeric columns that some backends return as strings (numeric
// type) or null.
type Price float64

// UnmarshalJSON accepts 12, 12.5, "12.50" and null. Anything unparsable is 0.
func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*p = 0
			return nil
		}
		*p = Price(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		*p = 0
		return nil
	}
	*p = Price(f)
	return nil
}

// MerchantRow is a merchants row with its nested children.
type MerchantRow struct {
	ID         domain.ID      `json:"id"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	Logo       *string        `json:"logo"`
	Phone      *string        `json:"phone"`
	WhatsApp   *string        `json:"whatsapp"`
	MenuItems  []MenuItemRow  `json:"menu_items"`
	MenuImages []MenuImageRow `json:"menu_images"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
}

// MenuItemRow is a menu_items row.
type MenuItemRow struct {
	ID         domain.ID `json:"id"`
	Name       string    `json:"name"`
	Price      Price     `json:"price"`
	MerchantID domain.ID `json:"merchant_id"`
}

// MenuImageRow is a menu_images row.
type MenuImageRow struct {
	ID         domain.ID `json:"id"`
	ImageURL   string    `json:"image_url"`
	MerchantID domain.ID `json:"merchant_id"`
}

// RecommendationRow is a recommendations row.
type RecommendationRow struct {
	ID        domain.ID  `json:"id"`
	Name      string     `json:"name"`
	Contact   string     `json:"contact"`
	Message   string     `json:"message"`
	Done      bool       `json:"done"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// MerchantInsert is the payload of a merchant insert.
type MerchantInsert struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Logo     *string `json:"logo"`
	Phone    *string `json:"phone"`
	WhatsApp *string `json:"whatsapp"`
}

// MenuItemInsert is the payload of a menu item insert.
type MenuItemInsert struct {
	MerchantID domain.ID `json:"merchant_id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
}

// MenuImageInsert is the payload of a menu image insert.
type MenuImageInsert struct {
	MerchantID domain.ID `json:"merchant_id"`
	ImageURL   string    `json:"image_url"`
}

// RecommendationInsert is the payload of a recommendation insert.
type RecommendationInsert struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Message string `json:"message"`
	Done    bool   `json:"done"`
}

// ToMerchant maps a row into a domain merchant. Prices are coerced to be
// non-negative and children keep the row's order.
func (r MerchantRow) ToMerchant(detailFetched bool) domain.Merchant {
	m := domain.Merchant{
		ID:            r.ID,
		Name:          r.Name,
		Category:      r.Category,
		Logo:          r.Logo,
		Phone:         r.Phone,
		WhatsApp:      r.WhatsApp,
		Menu:          make([]domain.MenuItem, 0, len(r.MenuItems)),
		MenuImages:    make([]domain.MenuImage, 0, len(r.MenuImages)),
		DetailFetched: detailFetched,
	}
	for _, it := range r.MenuItems {
		m.Menu = append(m.Menu, it.ToMenuItem())
	}
	for _, img := range r.MenuImages {
		m.MenuImages = append(m.MenuImages, img.ToMenuImage())
	}
	return m
}

// ToMenuItem maps a row into a domain menu item.
func (r MenuItemRow) ToMenuItem() domain.MenuItem {
	return domain.MenuItem{
		ID:         r.ID,
		Name:       r.Name,
		Price:      domain.CoercePrice(float64(r.Price)),
		MerchantID: r.MerchantID,
	}
}

// ToMenuImage maps a row into a domain menu image.
func (r MenuImageRow) ToMenuImage() domain.MenuImage {
	return domain.MenuImage{ID: r.ID, ImageURL: r.ImageURL, MerchantID: r.MerchantID}
}

// ToRecommendation maps a row into a domain recommendation. The caller is
// responsible for sanitizing it.
func (r RecommendationRow) ToRecommendation() domain.Recommendation {
	return domain.Recommendation{
		ID:        r.ID,
		Name:      r.Name,
		Contact:   r.Contact,
		Message:   r.Message,
		Done:      r.Done,
		CreatedAt: r.CreatedAt,
	}
}
