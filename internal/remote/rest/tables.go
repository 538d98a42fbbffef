package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/remote"
)

const (
	selectMerchantsPage = "*,menu_items(*),menu_images(*)"
	selectMerchantRow   = "id,name,category,logo,phone,whatsapp"
	selectMerchantFull  = selectMerchantRow + ",menu_items(id,name,price,merchant_id),menu_images(id,image_url,merchant_id)"
	selectMenuItem      = "id,name,price,merchant_id"
	selectMenuImage     = "id,image_url,merchant_id"
	selectReco          = "id,name,contact,message,done,created_at"
)

// orderMerchants keeps page boundaries stable when rows share a created_at.
const orderMerchants = "created_at.asc,id.asc"

var returnRepresentation = map[string]string{"Prefer": "return=representation"}
var returnMinimal = map[string]string{"Prefer": "return=minimal"}

func eq(id domain.ID) url.Values {
	return url.Values{"id": {"eq." + id.String()}}
}

// ListMerchants implements remote.Backend.
func (c *Client) ListMerchants(ctx context.Context, from, to int) ([]remote.MerchantRow, error) {
	q := url.Values{
		"select": {selectMerchantsPage},
		"order":  {orderMerchants},
		"offset": {strconv.Itoa(from)},
		"limit":  {strconv.Itoa(to - from + 1)},
	}
	var rows []remote.MerchantRow
	if err := c.doJSON(ctx, "list merchants", http.MethodGet, restPrefix+"merchants", q, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetMerchant implements remote.Backend.
func (c *Client) GetMerchant(ctx context.Context, id domain.ID) (remote.MerchantRow, error) {
	q := eq(id)
	q.Set("select", selectMerchantFull)
	q.Set("limit", "1")
	var rows []remote.MerchantRow
	if err := c.doJSON(ctx, "get merchant", http.MethodGet, restPrefix+"merchants", q, nil, nil, &rows); err != nil {
		return remote.MerchantRow{}, err
	}
	if len(rows) == 0 {
		return remote.MerchantRow{}, remote.ErrNotFound
	}
	return rows[0], nil
}

// InsertMerchant implements remote.Backend.
func (c *Client) InsertMerchant(ctx context.Context, in remote.MerchantInsert) (remote.MerchantRow, error) {
	var rows []remote.MerchantRow
	if err := c.insert(ctx, "merchants", selectMerchantRow, in, &rows); err != nil {
		return remote.MerchantRow{}, err
	}
	if len(rows) == 0 {
		return remote.MerchantRow{}, remote.ErrNotFound
	}
	return rows[0], nil
}

// UpdateMerchant implements remote.Backend.
func (c *Client) UpdateMerchant(ctx context.Context, id domain.ID, u remote.MerchantUpdate) error {
	if u.Empty() {
		return nil
	}
	return c.doJSON(ctx, "update merchants", http.MethodPatch, restPrefix+"merchants", eq(id), u, returnMinimal, nil)
}

// DeleteMerchant implements remote.Backend. Children are removed by the
// database's cascading foreign keys.
func (c *Client) DeleteMerchant(ctx context.Context, id domain.ID) error {
	return c.doJSON(ctx, "delete merchants", http.MethodDelete, restPrefix+"merchants", eq(id), nil, returnMinimal, nil)
}

// InsertMenuItem implements remote.Backend.
func (c *Client) InsertMenuItem(ctx context.Context, in remote.MenuItemInsert) (remote.MenuItemRow, error) {
	var rows []remote.MenuItemRow
	if err := c.insert(ctx, "menu_items", selectMenuItem, in, &rows); err != nil {
		return remote.MenuItemRow{}, err
	}
	if len(rows) == 0 {
		return remote.MenuItemRow{}, remote.ErrNotFound
	}
	return rows[0], nil
}

// UpdateMenuItem implements remote.Backend.
func (c *Client) UpdateMenuItem(ctx context.Context, id domain.ID, u remote.MenuItemUpdate) error {
	if u.Empty() {
		return nil
	}
	return c.doJSON(ctx, "update menu_items", http.MethodPatch, restPrefix+"menu_items", eq(id), u, returnMinimal, nil)
}

// DeleteMenuItem implements remote.Backend.
func (c *Client) DeleteMenuItem(ctx context.Context, id domain.ID) error {
	return c.doJSON(ctx, "delete menu_items", http.MethodDelete, restPrefix+"menu_items", eq(id), nil, returnMinimal, nil)
}

// InsertMenuImage implements remote.Backend.
func (c *Client) InsertMenuImage(ctx context.Context, in remote.MenuImageInsert) (remote.MenuImageRow, error) {
	var rows []remote.MenuImageRow
	if err := c.insert(ctx, "menu_images", selectMenuImage, in, &rows); err != nil {
		return remote.MenuImageRow{}, err
	}
	if len(rows) == 0 {
		return remote.MenuImageRow{}, remote.ErrNotFound
	}
	return rows[0], nil
}

// DeleteMenuImage implements remote.Backend.
func (c *Client) DeleteMenuImage(ctx context.Context, id domain.ID) error {
	return c.doJSON(ctx, "delete menu_images", http.MethodDelete, restPrefix+"menu_images", eq(id), nil, returnMinimal, nil)
}

// ListRecommendations implements remote.Backend.
func (c *Client) ListRecommendations(ctx context.Context, limit int) ([]remote.RecommendationRow, error) {
	q := url.Values{
		"select": {selectReco},
		"order":  {"created_at.asc"},
		"limit":  {strconv.Itoa(limit)},
	}
	var rows []remote.RecommendationRow
	if err := c.doJSON(ctx, "list recommendations", http.MethodGet, restPrefix+"recommendations", q, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertRecommendation implements remote.Backend.
func (c *Client) InsertRecommendation(ctx context.Context, in remote.RecommendationInsert) (remote.RecommendationRow, error) {
	var rows []remote.RecommendationRow
	if err := c.insert(ctx, "recommendations", selectReco, in, &rows); err != nil {
		return remote.RecommendationRow{}, err
	}
	if len(rows) == 0 {
		return remote.RecommendationRow{}, remote.ErrNotFound
	}
	return rows[0], nil
}

// SetRecommendationDone implements remote.Backend.
func (c *Client) SetRecommendationDone(ctx context.Context, id domain.ID, done bool) error {
	return c.doJSON(ctx, "update recommendations", http.MethodPatch, restPrefix+"recommendations", eq(id),
		map[string]bool{"done": done}, returnMinimal, nil)
}

// DeleteRecommendation implements remote.Backend.
func (c *Client) DeleteRecommendation(ctx context.Context, id domain.ID) error {
	return c.doJSON(ctx, "delete recommendations", http.MethodDelete, restPrefix+"recommendations", eq(id), nil, returnMinimal, nil)
}

func (c *Client) insert(ctx context.Context, table, sel string, row any, out any) error {
	q := url.Values{"select": {sel}}
	return c.doJSON(ctx, "insert "+table, http.MethodPost, restPrefix+table, q, []any{row}, returnRepresentation, out)
}
