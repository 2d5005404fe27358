package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Case struct {
	Id          int64             `gorm:"primaryKey;autoIncrement"`
	Title       string            `gorm:"type:varchar(255);not null"`
	ClientName  string            `gorm:"type:varchar(255)"`
	Description string            `gorm:"type:text"`
	Status      string            `gorm:"type:varchar(32);not null;default:'open';index"`
	Attributes  datatypes.JSONMap // jsonb on postgres, JSON on sqlite
	CreatedBy   uuid.UUID         `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt    `gorm:"index"`
}

func (Case) TableName() string {
	return "cases"
}
