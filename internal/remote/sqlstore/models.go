package sqlstore

import "time"

type merchantModel struct {
	ID         string           `gorm:"type:TEXT;primaryKey"`
	Name       string           `gorm:"type:TEXT;not null"`
	Category   string           `gorm:"type:TEXT;not null;default:''"`
	Logo       *string          `gorm:"type:TEXT"`
	Phone      *string          `gorm:"type:TEXT"`
	WhatsApp   *string          `gorm:"column:whatsapp;type:TEXT"`
	CreatedAt  time.Time        `gorm:"not null;index"`
	MenuItems  []menuItemModel  `gorm:"foreignKey:MerchantID;constraint:OnDelete:CASCADE"`
	MenuImages []menuImageModel `gorm:"foreignKey:MerchantID;constraint:OnDelete:CASCADE"`
}

func (merchantModel) TableName() string { return "merchants" }

type menuItemModel struct {
	ID         string    `gorm:"type:TEXT;primaryKey"`
	MerchantID string    `gorm:"type:TEXT;not null;index"`
	Name       string    `gorm:"type:TEXT;not null"`
	Price      float64   `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (menuItemModel) TableName() string { return "menu_items" }

type menuImageModel struct {
	ID         string    `gorm:"type:TEXT;primaryKey"`
	MerchantID string    `gorm:"type:TEXT;not null;index"`
	ImageURL   string    `gorm:"type:TEXT;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (menuImageModel) TableName() string { return "menu_images" }

type recommendationModel struct {
	ID        string    `gorm:"type:TEXT;primaryKey"`
	Name      string    `gorm:"type:TEXT;not null;default:''"`
	Contact   string    `gorm:"type:TEXT;not null;default:''"`
	Message   string    `gorm:"type:TEXT;not null"`
	Done      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (recommendationModel) TableName() string { return "recommendations" }
