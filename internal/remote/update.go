package remote

import (
	"encoding/json"

	"github.com/tbourn/go-merchant-directory/internal/domain"
)

// MerchantUpdate is the column set of a merchant row update. It has no menu
// fields: children are only written through their own operations.
type MerchantUpdate struct {
	Name     *string
	Category *string
	Logo     domain.Field[string]
	Phone    domain.Field[string]
	WhatsApp domain.Field[string]
}

// MerchantUpdateFromPatch keeps the row columns of p and drops the menu and
// menu_images collections.
func MerchantUpdateFromPatch(p domain.MerchantPatch) MerchantUpdate {
	return MerchantUpdate{
		Name:     p.Name,
		Category: p.Category,
		Logo:     p.Logo,
		Phone:    p.Phone,
		WhatsApp: p.WhatsApp,
	}
}

// Columns returns the set columns keyed by column name. Nullable columns set
// to null map to a nil value.
func (u MerchantUpdate) Columns() map[string]any {
	cols := make(map[string]any, 5)
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Category != nil {
		cols["category"] = *u.Category
	}
	nullable(cols, "logo", u.Logo)
	nullable(cols, "phone", u.Phone)
	nullable(cols, "whatsapp", u.WhatsApp)
	return cols
}

// Empty reports whether the update touches no column.
func (u MerchantUpdate) Empty() bool { return len(u.Columns()) == 0 }

// MarshalJSON writes only the set columns.
func (u MerchantUpdate) MarshalJSON() ([]byte, error) { return json.Marshal(u.Columns()) }

// MenuItemUpdate is the column set of a menu item update.
type MenuItemUpdate struct {
	Name  *string
	Price *float64
}

// MenuItemUpdateFromPatch converts a menu item patch.
func MenuItemUpdateFromPatch(p domain.MenuItemPatch) MenuItemUpdate {
	return MenuItemUpdate{Name: p.Name, Price: p.Price}
}

// Columns returns the set columns keyed by column name.
func (u MenuItemUpdate) Columns() map[string]any {
	cols := make(map[string]any, 2)
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Price != nil {
		cols["price"] = domain.CoercePrice(*u.Price)
	}
	return cols
}

// Empty reports whether the update touches no column.
func (u MenuItemUpdate) Empty() bool { return len(u.Columns()) == 0 }

// MarshalJSON writes only the set columns.
func (u MenuItemUpdate) MarshalJSON() ([]byte, error) { return json.Marshal(u.Columns()) }

func nullable(cols map[string]any, name string, f domain.Field[string]) {
	if !f.Set {
		return
	}
	if f.Value == nil {
		cols[name] = nil
		return
	}
	cols[name] = *f.Value
}
