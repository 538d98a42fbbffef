// Package sqlstore is a remote backend over a plain SQL database through GORM.
// It serves self-hosted deployments (Postgres) and tests (SQLite) with the same
// tables and ordering the HTTP backend exposes.
package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-merchant-directory/internal/domain"
	"github.com/tbourn/go-merchant-directory/internal/remote"
)

// Store implements remote.Backend.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ remote.Backend = (*Store)(nil)

// New wraps db. Call Migrate once before use.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the merchants, menu_items, menu_images and recommendations
// tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&merchantModel{},
		&menuItemModel{},
		&menuImageModel{},
		&recommendationModel{},
	)
}

func ordered(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }

// ListMerchants implements remote.Backend.
func (s *Store) ListMerchants(ctx context.Context, from, to int) ([]remote.MerchantRow, error) {
	var ms []merchantModel
	err := ordered(s.db.WithContext(ctx)).
		Preload("MenuItems", ordered).
		Preload("MenuImages", ordered).
		Offset(from).
		Limit(to - from + 1).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	rows := make([]remote.MerchantRow, len(ms))
	for i, m := range ms {
		rows[i] = m.row()
	}
	return rows, nil
}

// GetMerchant implements remote.Backend.
func (s *Store) GetMerchant(ctx context.Context, id domain.ID) (remote.MerchantRow, error) {
	var m merchantModel
	err := s.db.WithContext(ctx).
		Preload("MenuItems", ordered).
		Preload("MenuImages", ordered).
		First(&m, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return remote.MerchantRow{}, remote.ErrNotFound
	}
	if err != nil {
		return remote.MerchantRow{}, err
	}
	return m.row(), nil
}

// InsertMerchant implements remote.Backend.
func (s *Store) InsertMerchant(ctx context.Context, in remote.MerchantInsert) (remote.MerchantRow, error) {
	m := merchantModel{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Category:  in.Category,
		Logo:      in.Logo,
		Phone:     in.Phone,
		WhatsApp:  in.WhatsApp,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Omit("MenuItems", "MenuImages").Create(&m).Error; err != nil {
		return remote.MerchantRow{}, err
	}
	return m.row(), nil
}

// UpdateMerchant implements remote.Backend.
func (s *Store) UpdateMerchant(ctx context.Context, id domain.ID, u remote.MerchantUpdate) error {
	cols := u.Columns()
	if len(cols) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&merchantModel{}).Where("id = ?", id.String()).Updates(cols).Error
}

// DeleteMerchant implements remote.Backend. Children are removed in the same
// transaction so the result does not depend on foreign key enforcement.
func (s *Store) DeleteMerchant(ctx context.Context, id domain.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("merchant_id = ?", id.String()).Delete(&menuItemModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("merchant_id = ?", id.String()).Delete(&menuImageModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id.String()).Delete(&merchantModel{}).Error
	})
}

// InsertMenuItem implements remote.Backend.
func (s *Store) InsertMenuItem(ctx context.Context, in remote.MenuItemInsert) (remote.MenuItemRow, error) {
	m := menuItemModel{
		ID:         uuid.NewString(),
		MerchantID: in.MerchantID.String(),
		Name:       in.Name,
		Price:      domain.CoercePrice(in.Price),
		CreatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return remote.MenuItemRow{}, err
	}
	return m.row(), nil
}

// UpdateMenuItem implements remote.Backend.
func (s *Store) UpdateMenuItem(ctx context.Context, id domain.ID, u remote.MenuItemUpdate) error {
	cols := u.Columns()
	if len(cols) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&menuItemModel{}).Where("id = ?", id.String()).Updates(cols).Error
}

// DeleteMenuItem implements remote.Backend.
func (s *Store) DeleteMenuItem(ctx context.Context, id domain.ID) error {
	return s.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&menuItemModel{}).Error
}

// InsertMenuImage implements remote.Backend.
func (s *Store) InsertMenuImage(ctx context.Context, in remote.MenuImageInsert) (remote.MenuImageRow, error) {
	m := menuImageModel{
		ID:         uuid.NewString(),
		MerchantID: in.MerchantID.String(),
		ImageURL:   in.ImageURL,
		CreatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return remote.MenuImageRow{}, err
	}
	return m.row(), nil
}

// DeleteMenuImage implements remote.Backend.
func (s *Store) DeleteMenuImage(ctx context.Context, id domain.ID) error {
	return s.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&menuImageModel{}).Error
}

// ListRecommendations implements remote.Backend.
func (s *Store) ListRecommendations(ctx context.Context, limit int) ([]remote.RecommendationRow, error) {
	var ms []recommendationModel
	if err := ordered(s.db.WithContext(ctx)).Limit(limit).Find(&ms).Error; err != nil {
		return nil, err
	}
	rows := make([]remote.RecommendationRow, len(ms))
	for i, m := range ms {
		rows[i] = m.row()
	}
	return rows, nil
}

// InsertRecommendation implements remote.Backend.
func (s *Store) InsertRecommendation(ctx context.Context, in remote.RecommendationInsert) (remote.RecommendationRow, error) {
	m := recommendationModel{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Contact:   in.Contact,
		Message:   in.Message,
		Done:      in.Done,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return remote.RecommendationRow{}, err
	}
	return m.row(), nil
}

// SetRecommendationDone implements remote.Backend.
func (s *Store) SetRecommendationDone(ctx context.Context, id domain.ID, done bool) error {
	return s.db.WithContext(ctx).Model(&recommendationModel{}).Where("id = ?", id.String()).Update("done", done).Error
}

// DeleteRecommendation implements remote.Backend.
func (s *Store) DeleteRecommendation(ctx context.Context, id domain.ID) error {
	return s.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&recommendationModel{}).Error
}

func (m merchantModel) row() remote.MerchantRow {
	r := remote.MerchantRow{
		ID:         domain.ID(m.ID),
		Name:       m.Name,
		Category:   m.Category,
		Logo:       m.Logo,
		Phone:      m.Phone,
		WhatsApp:   m.WhatsApp,
		MenuItems:  make([]remote.MenuItemRow, len(m.MenuItems)),
		MenuImages: make([]remote.MenuImageRow, len(m.MenuImages)),
	}
	created := m.CreatedAt
	r.CreatedAt = &created
	for i, it := range m.MenuItems {
		r.MenuItems[i] = it.row()
	}
	for i, img := range m.MenuImages {
		r.MenuImages[i] = img.row()
	}
	return r
}

func (m menuItemModel) row() remote.MenuItemRow {
	return remote.MenuItemRow{
		ID:         domain.ID(m.ID),
		Name:       m.Name,
		Price:      remote.Price(m.Price),
		MerchantID: domain.ID(m.MerchantID),
	}
}

func (m menuImageModel) row() remote.MenuImageRow {
	return remote.MenuImageRow{ID: domain.ID(m.ID), ImageURL: m.ImageURL, MerchantID: domain.ID(m.MerchantID)}
}

func (m recommendationModel) row() remote.RecommendationRow {
	created := m.CreatedAt
	return remote.RecommendationRow{
		ID:        domain.ID(m.ID),
		Name:      m.Name,
		Contact:   m.Contact,
		Message:   m.Message,
		Done:      m.Done,
		CreatedAt: &created,
	}
}
