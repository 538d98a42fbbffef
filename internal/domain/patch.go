package domain

import (
	"bytes"
	"encoding/json"
)

// Field is an optional patch value for a nullable column. Set distinguishes a
// field that was left out from one explicitly set to null (Value == nil).
type Field[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns a Field holding v.
func SetTo[T any](v T) Field[T] { return Field[T]{Set: true, Value: &v} }

// SetNull returns a Field that clears the column.
func SetNull[T any]() Field[T] { return Field[T]{Set: true} }

// UnmarshalJSON marks the field as present; JSON null clears the value.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// MerchantInput carries the columns of a new merchant.
type MerchantInput struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Logo     *string `json:"logo"`
	Phone    *string `json:"phone"`
	WhatsApp *string `json:"whatsapp"`
}

// MerchantPatch is a partial merchant update. Menu and MenuImages are merged
// into local state only; they are never sent as part of a merchant row update.
type MerchantPatch struct {
	Name       *string       `json:"name"`
	Category   *string       `json:"category"`
	Logo       Field[string] `json:"logo"`
	Phone      Field[string] `json:"phone"`
	WhatsApp   Field[string] `json:"whatsapp"`
	Menu       *[]MenuItem   `json:"menu"`
	MenuImages *[]MenuImage  `json:"menu_images"`
}

// Apply returns m with the patch merged in.
func (p MerchantPatch) Apply(m Merchant) Merchant {
	out := m.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Logo.Set {
		out.Logo = cloneStr(p.Logo.Value)
	}
	if p.Phone.Set {
		out.Phone = cloneStr(p.Phone.Value)
	}
	if p.WhatsApp.Set {
		out.WhatsApp = cloneStr(p.WhatsApp.Value)
	}
	if p.Menu != nil {
		out.Menu = append([]MenuItem{}, (*p.Menu)...)
	}
	if p.MenuImages != nil {
		out.MenuImages = append([]MenuImage{}, (*p.MenuImages)...)
	}
	return out
}

// MenuItemInput carries a new menu entry.
type MenuItemInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// MenuItemPatch is a partial menu entry update.
type MenuItemPatch struct {
	Name  *string  `json:"name,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// Apply returns it with the patch merged in.
func (p MenuItemPatch) Apply(it MenuItem) MenuItem {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Price != nil {
		it.Price = CoercePrice(*p.Price)
	}
	return it
}

// RecommendationInput is what a visitor submits.
type RecommendationInput struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Message string `json:"message"`
}
