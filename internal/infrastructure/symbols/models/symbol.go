package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "main/internal/domain/entity/symbols"
)

// SymbolModel is the storage shape of an exchange symbol reference row.
type SymbolModel struct {
	UID        uuid.UUID      `gorm:"primaryKey;column:uid;type:uuid;not null"`
	Symbol     string         `gorm:"column:symbol;type:varchar(50);not null;uniqueIndex"`
	BaseAsset  string         `gorm:"column:base_asset;type:varchar(20);not null"`
	QuoteAsset string         `gorm:"column:quote_asset;type:varchar(20);not null"`
	TickSize   float64        `gorm:"column:tick_size;type:double precision;not null"`
	QtyStep    float64        `gorm:"column:qty_step;type:double precision;not null"`
	Status     string         `gorm:"column:status;type:varchar(20);not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;type:timestamp;index"`
}

func (SymbolModel) TableName() string {
	return "symbols"
}

func (m SymbolModel) ToDomain() domain.Symbol {
	s := domain.Symbol{
		UID:        m.UID,
		Symbol:     m.Symbol,
		BaseAsset:  m.BaseAsset,
		QuoteAsset: m.QuoteAsset,
		TickSize:   m.TickSize,
		QtyStep:    m.QtyStep,
		Status:     domain.Status(m.Status),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.DeletedAt.Valid {
		t := m.DeletedAt.Time
		s.DeletedAt = &t
	}
	return s
}

func FromDomain(s domain.Symbol) SymbolModel {
	m := SymbolModel{
		UID:        s.UID,
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		TickSize:   s.TickSize,
		QtyStep:    s.QtyStep,
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	}
	return m
}
