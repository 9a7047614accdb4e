package models

import "time"

// NodeModel is one document of the path store.
type NodeModel struct {
	Collection string    `gorm:"type:varchar(64);primaryKey"`
	Key        string    `gorm:"type:varchar(255);primaryKey"`
	Value      string    `gorm:"type:jsonb;not null"`
	Revision   uint64    `gorm:"type:bigint;not null;default:1"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (NodeModel) TableName() string {
	return "store_nodes"
}
