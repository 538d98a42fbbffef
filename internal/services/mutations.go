package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/observability"
	"github.com/tbourn/go-merchant-directory/internal/remote"
	"github.com/tbourn/go-merchant-directory/internal/sanitize"
)

// write describes one mutation. remote runs in RemoteFirst mode and yields
// the value the backend confirmed; local runs in LocalOnly mode. apply then
// mirrors that value into the next state.
type write[T any] struct {
	op     string
	attrs  []attribute.KeyValue
	remote func(ctx context.Context, b remote.Backend) (T, error)
	local  func() T
	apply  func(next *State, v T)
	// touchesMerchants refreshes Status.LastSyncedAt after a remote write.
	touchesMerchants bool
}

// mutate is the single code path behind every mutation. A remote failure is
// returned wrapped in ErrRemoteRequestFailed and leaves the state untouched.
func mutate[T any](ctx context.Context, d *Directory, w write[T]) (T, error) {
	tr := observability.Tracer("services/Directory")
	ctx, span := tr.Start(ctx, w.op, trace.WithAttributes(w.attrs...))
	defer span.End()

	var v T
	remoteWrite := d.mode == RemoteFirst && d.backend != nil
	if remoteWrite {
		rctx, cancel := context.WithTimeout(ctx, d.timeout)
		out, err := w.remote(rctx, d.backend)
		cancel()
		if err != nil {
			remoteWriteFailures.WithLabelValues(w.op).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, w.op)
			d.log.Error().Err(err).Str("op", w.op).Msg("remote write failed")
			var zero T
			return zero, fmt.Errorf("%s: %w: %w", w.op, ErrRemoteRequestFailed, err)
		}
		v = out
	} else if w.local != nil {
		v = w.local()
	}

	now := d.now()
	d.commit(ctx, true, func(next *State) {
		w.apply(next, v)
		if remoteWrite && w.touchesMerchants {
			next.Status.LastSyncedAt = &now
		}
	})
	return v, nil
}

// withMerchant applies fn to a private copy of the merchant with id in next.
func withMerchant(next *State, id domain.ID, fn func(m *domain.Merchant)) {
	i := next.merchantIndex(id)
	if i < 0 {
		return
	}
	m := next.Merchants[i].Clone()
	fn(&m)
	next.Merchants[i] = m
}

// CreateMerchant adds a merchant with an empty menu.
func (d *Directory) CreateMerchant(ctx context.Context, in domain.MerchantInput) (domain.Merchant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return domain.Merchant{}, invalid("merchant name is required")
	}
	return mutate(ctx, d, write[domain.Merchant]{
		op: "CreateMerchant",
		remote: func(ctx context.Context, b remote.Backend) (domain.Merchant, error) {
			row, err := b.InsertMerchant(ctx, remote.MerchantInsert{
				Name: in.Name, Category: in.Category,
				Logo: in.Logo, Phone: in.Phone, WhatsApp: in.WhatsApp,
			})
			if err != nil {
				return domain.Merchant{}, err
			}
			return row.ToMerchant(false), nil
		},
		local: func() domain.Merchant {
			return domain.Merchant{
				ID:         d.ids.Next(),
				Name:       in.Name,
				Category:   in.Category,
				Logo:       in.Logo,
				Phone:      in.Phone,
				WhatsApp:   in.WhatsApp,
				Menu:       []domain.MenuItem{},
				MenuImages: []domain.MenuImage{},
			}
		},
		apply: func(next *State, m domain.Merchant) {
			m.DetailFetched = false
			next.Merchants = append(next.Merchants, m)
		},
		touchesMerchants: true,
	})
}

// UpdateMerchant merges patch into the merchant with id. The remote row update
// only carries the merchant's own columns; menu and menu_images in the patch
// are applied to the local copy only.
func (d *Directory) UpdateMerchant(ctx context.Context, id domain.ID, patch domain.MerchantPatch) (domain.Merchant, error) {
	if _, ok := d.Merchant(id); !ok {
		return domain.Merchant{}, ErrMerchantNotFound
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.Merchant{}, invalid("merchant name cannot be empty")
	}
	patch = ownChildren(id, patch)

	if _, err := mutate(ctx, d, write[struct{}]{
		op:    "UpdateMerchant",
		attrs: []attribute.KeyValue{attribute.String("merchant.id", id.String())},
		remote: func(ctx context.Context, b remote.Backend) (struct{}, error) {
			return struct{}{}, b.UpdateMerchant(ctx, id, remote.MerchantUpdateFromPatch(patch))
		},
		apply: func(next *State, _ struct{}) {
			withMerchant(next, id, func(m *domain.Merchant) { *m = patch.Apply(*m) })
		},
		touchesMerchants: true,
	}); err != nil {
		return domain.Merchant{}, err
	}
	m, _ := d.Merchant(id)
	return m, nil
}

// ownChildren points every child in the patch at merchant id and coerces
// menu prices.
func ownChildren(id domain.ID, p domain.MerchantPatch) domain.MerchantPatch {
	if p.Menu != nil {
		items := make([]domain.MenuItem, len(*p.Menu))
		for i, it := range *p.Menu {
			it.MerchantID = id
			it.Price = domain.CoercePrice(it.Price)
			items[i] = it
		}
		p.Menu = &items
	}
	if p.MenuImages != nil {
		imgs := make([]domain.MenuImage, len(*p.MenuImages))
		for i, img := range *p.MenuImages {
			img.MerchantID = id
			imgs[i] = img
		}
		p.MenuImages = &imgs
	}
	return p
}

// RemoveMerchant deletes the merchant with id. The backend removes its
// children.
func (d *Directory) RemoveMerchant(ctx context.Context, id domain.ID) error {
	if _, ok := d.Merchant(id); !ok {
		return ErrMerchantNotFound
	}
	_, err := mutate(ctx, d, write[struct{}]{
		op:    "RemoveMerchant",
		attrs: []attribute.KeyValue{attribute.String("merchant.id", id.String())},
		remote: func(ctx context.Context, b remote.Backend) (struct{}, error) {
			return struct{}{}, b.DeleteMerchant(ctx, id)
		},
		apply: func(next *State, _ struct{}) {
			next.removeMerchant(id)
		},
		touchesMerchants: true,
	})
	return err
}

// AddMenuItem appends an item to the merchant's menu.
func (d *Directory) AddMenuItem(ctx context.Context, merchantID domain.ID, in domain.MenuItemInput) (domain.MenuItem, error) {
	if _, ok := d.Merchant(merchantID); !ok {
		return domain.MenuItem{}, ErrMerchantNotFound
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.MenuItem{}, invalid("menu item name is required")
	}
	in.Price = domain.CoercePrice(in.Price)

	return mutate(ctx, d, write[domain.MenuItem]{
		op:    "AddMenuItem",
		attrs: []attribute.KeyValue{attribute.String("merchant.id", merchantID.String())},
		remote: func(ctx context.Context, b remote.Backend) (domain.MenuItem, error) {
			row, err := b.InsertMenuItem(ctx, remote.MenuItemInsert{MerchantID: merchantID, Name: in.Name, Price: in.Price})
			if err != nil {
				return domain.MenuItem{}, err
			}
			return row.ToMenuItem(), nil
		},
		local: func() domain.MenuItem {
			return domain.MenuItem{ID: d.ids.Next(), Name: in.Name, Price: in.Price, MerchantID: merchantID}
		},
		apply: func(next *State, it domain.MenuItem) {
			it.MerchantID = merchantID
			withMerchant(next, merchantID, func(m *domain.Merchant) {
				m.Menu = append(m.Menu, it)
			})
		},
		touchesMerchants: true,
	})
}

// UpdateMenuItem merges patch into the item. The item must belong to the
// merchant; otherwise nothing is written and ErrMenuItemNotFound is returned.
func (d *Directory) UpdateMenuItem(ctx context.Context, merchantID, itemID domain.ID, patch domain.MenuItemPatch) (domain.MenuItem, error) {
	m, ok := d.Merchant(merchantID)
	if !ok {
		return domain.MenuItem{}, ErrMerchantNotFound
	}
	if !m.HasMenuItem(itemID) {
		return domain.MenuItem{}, ErrMenuItemNotFound
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.MenuItem{}, invalid("menu item name cannot be empty")
	}

	var updated domain.MenuItem
	_, err := mutate(ctx, d, write[struct{}]{
		op: "UpdateMenuItem",
		attrs: []attribute.KeyValue{
			attribute.String("merchant.id", merchantID.String()),
			attribute.String("menu_item.id", itemID.String()),
		},
		remote: func(ctx context.Context, b remote.Backend) (struct{}, error) {
			return struct{}{}, b.UpdateMenuItem(ctx, itemID, remote.MenuItemUpdateFromPatch(patch))
		},
		apply: func(next *State, _ struct{}) {
			withMerchant(next, merchantID, func(m *domain.Merchant) {
				for i := range m.Menu {
					if m.Menu[i].ID == itemID {
						m.Menu[i] = patch.Apply(m.Menu[i])
						updated = m.Menu[i]
					}
				}
			})
		},
		touchesMerchants: true,
	})
	if err != nil {
		return domain.MenuItem{}, err
	}
	if updated.ID.IsZero() {
		// Removed between the lookup and the commit.
		return domain.MenuItem{}, ErrMenuItemNotFound
	}
	return updated, nil
}

// RemoveMenuItem deletes the item from the merchant's menu. Items of other
// merchants are left alone and ErrMenuItemNotFound is returned.
func (d *Directory) RemoveMenuItem(ctx context.Context, merchantID, itemID domain.ID) error {
	m, ok := d.Merchant(merchantID)
	if !ok {
		return ErrMerchantNotFound
	}
	if !m.HasMenuItem(itemID) {
		return ErrMenuItemNotFound
	}
	_, err := mutate(ctx, d, write[struct{}]{
		op: "RemoveMenuItem",
		attrs: []attribute.KeyValue{
			attribute.String("merchant.id", merchantID.String()),
			attribute.String("menu_item.id", itemID.String()),
		},
		remote: func(ctx context.Context, b remote.Backend) (struct{}, error) {
			return struct{}{}, b.DeleteMenuItem(ctx, itemID)
		},
		apply: func(next *State, _ struct{}) {
			withMerchant(next, merchantID, func(m *domain.Merchant) {
				kept := make([]domain.MenuItem, 0, len(m.Menu))
				for _, it := range m.Menu {
					if it.ID != itemID {
						kept = append(kept, it)
					}
				}
				m.Menu = kept
			})
		},
		touchesMerchants: true,
	})
	return err
}

// AddMenuImage appends an image to the merchant's menu images.
func (d *Directory) AddMenuImage(ctx context.Context, merchantID domain.ID, imageURL string) (domain.MenuImage, error) {
	if _, ok := d.Merchant(merchantID); !ok {
		return domain.MenuImage{}, ErrMerchantNotFound
	}
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return domain.MenuImage{}, invalid("image url is required")
	}
	return mutate(ctx, d, write[domain.MenuImage]{
		op:    "AddMenuImage",
		attrs: []attribute.KeyValue{attribute.String("merchant.id", merchantID.String())},
		remote: func(ctx context.Context, b remote.Backend) (domain.MenuImage, error) {
			row, err := b.InsertMenuImage(ctx, remote.MenuImageInsert{MerchantID: merchantID, ImageURL: imageURL})
			if err != nil {
				return domain.MenuImage{}, err
			}
			return row.ToMenuImage(), nil
		},
		local: func() domain.MenuImage {
			return domain.MenuImage{ID: d.ids.Next(), ImageURL: imageURL, MerchantID: merchantID}
		},
		apply: func(next *State, img domain.MenuImage) {
			img.MerchantID = merchantID
			withMerchant(next, merchantID, func(m *domain.Merchant) {
				m.MenuImages = append(m.MenuImages, img)
			})
		},
		touchesMerchants: true,
	})
}

// RemoveMenuImage deletes the stored image file (best effort) and then the
// image row. A failed file delete is logged; a failed row delete aborts.
func (d *Directory) RemoveMenuImage(ctx context.Context, merchantID, imageID domain.ID) error {
	m, ok := d.Merchant(merchantID)
	if !ok {
		return ErrMerchantNotFound
	}
	img, ok := m.MenuImage(imageID)
	if !ok {
		return ErrMenuImageNotFound
	}
	_, err := mutate(ctx, d, write[struct{}]{
		op: "RemoveMenuImage",
		attrs: []attribute.KeyValue{
			attribute.String("merchant.id", merchantID.String()),
			attribute.String("menu_image.id", imageID.String()),
		},
		remote: func(ctx context.Context, b remote.Backend) (struct{}, error) {
			d.deleteAsset(ctx, img.ImageURL)
			return struct{}{}, b.DeleteMenuImage(ctx, imageID)
		},
		apply: func(next *State, _ struct{}) {
			withMerchant(next, merchantID, func(m *domain.Merchant) {
				kept := make([]domain.MenuImage, 0, len(m.MenuImages))
				for _, im := range m.MenuImages {
					if im.ID != imageID {
						kept = append(kept, im)
					}
				}
				m.MenuImages = kept
			})
		},
		touchesMerchants: true,
	})
	return err
}

// RemoveLogo deletes the stored logo file (best effort) and clears the logo.
func (d *Directory) RemoveLogo(ctx context.Context, merchantID domain.ID) (domain.Merchant, error) {
	m, ok := d.Merchant(merchantID)
	if !ok {
		return domain.Merchant{}, ErrMerchantNotFound
	}
	if m.Logo != nil && d.mode == RemoteFirst && d.backend != nil {
		d.deleteAsset(ctx, *m.Logo)
	}
	return d.UpdateMerchant(ctx, merchantID, domain.MerchantPatch{Logo: domain.SetNull[string]()})
}

// deleteAsset removes the stored object behind publicURL. Failures are logged
// as ErrAssetDeleteFailed and otherwise ignored.
func (d *Directory) deleteAsset(ctx context.Context, publicURL string) {
	if d.blobs == nil {
		return
	}
	path := remote.ObjectPath(publicURL)
	if path == "" {
		return
	}
	if err := d.blobs.Delete(ctx, path); err != nil {
		assetDeleteFailures.Inc()
		d.log.Warn().Err(fmt.Errorf("%w: %w", ErrAssetDeleteFailed, err)).Str("path", path).Msg("asset delete failed")
	}
}

// CreateRecommendation sanitizes in and stores it with done=false. A message
// that is empty after sanitization is rejected with ErrEmptyRecommendation
// before any I/O.
func (d *Directory) CreateRecommendation(ctx context.Context, in domain.RecommendationInput) (domain.Recommendation, error) {
	clean := sanitize.Recommendation(domain.Recommendation{Name: in.Name, Contact: in.Contact, Message: in.Message})
	if clean.Message == "" {
		return domain.Recommendation{}, ErrEmptyRecommendation
	}
	return mutate(ctx, d, write[domain.Recommendation]{
		op: "CreateRecommendation",
		remote: func(ctx context.Context, b remote.Backend) (domain.Recommendation, error) {
			row, err := b.InsertRecommendation(ctx, remote.RecommendationInsert{
				Name: clean.Name, Contact: clean.Contact, Message: clean.Message, Done: false,
			})
			if err != nil {
				return domain.Recommendation{}, err
			}
			return sanitize.Recommendation(row.ToRecommendation()), nil
		},
		local: func() domain.Recommendation {
			r := clean
			r.ID = d.ids.Next()
			r.Done = false
			return r
		},
		apply: func(next *State, r domain.Recommendation) {
			next.Recommendations = append(next.Recommendations, r)
		},
	})
}

// ToggleRecommendationDone flips the done flag. Unknown ids are a no-op that
// returns ErrRecommendationNotFound. Toggles run one at a time so that each
// flips the value the previous one committed.
func (d *Directory) ToggleRecommendationDone(ctx context.Context, id domain.ID) (domain.Recommendation, error) {
	d.toggleMu.Lock()
	defer d.toggleMu.Unlock()

	r, ok := d.Snapshot().Recommendation(id)
	if !ok {
		return domain.Recommendation{}, ErrRecommendationNotFound
	}
	done := !r.Done
	return mutate(ctx, d, write[domain.Recommendation]{
		op:    "ToggleRecommendationDone",
		attrs: []attribute.KeyValue{attribute.String("recommendation.id", id.String())},
		remote: func(ctx context.Context, b remote.Backend) (domain.Recommendation, error) {
			if err := b.SetRecommendationDone(ctx, id, done); err != nil {
				return domain.Recommendation{}, err
			}
			r.Done = done
			return r, nil
		},
		local: func() domain.Recommendation {
			r.Done = done
			return r
		},
		apply: func(next *State, out domain.Recommendation) {
			if i := next.recommendationIndex(id); i >= 0 {
				next.Recommendations[i].Done = out.Done
			}
		},
	})
}

// RemoveRecommendation deletes the recommendation with id.
func (d *Directory) RemoveRecommendation(ctx context.Context, id domain.ID) error {
	if _, ok := d.Snapshot().Recommendation(id); !ok {
		return ErrRecommendationNotFound
	}
	_, err := mutate(ctx, d, write[struct{}]{
		op:    "RemoveRecommendation",
		attrs: []attribute.KeyValue{attribute.String("recommendation.id", id.String())},
		remote: func(ctx context.Context, b remote.Backend) (struct{}, error) {
			return struct{}{}, b.DeleteRecommendation(ctx, id)
		},
		apply: func(next *State, _ struct{}) {
			if i := next.recommendationIndex(id); i >= 0 {
				next.Recommendations = append(next.Recommendations[:i], next.Recommendations[i+1:]...)
			}
		},
	})
	return err
}
