package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the allocation state of a single inventory item.
type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemAllocated ItemStatus = "allocated"
)

// InventoryItem is one sellable credential unit. CredentialPayload is opaque
// to this service; it is stored exactly as delivered by the stock loader and
// handed out once the owning order settles.
type InventoryItem struct {
	ID                uuid.UUID  `json:"id"`
	ProductID         uuid.UUID  `json:"product_id"`
	CredentialPayload []byte     `json:"-"`
	Status            ItemStatus `json:"status"`
	AllocatedOrderID  *uuid.UUID `json:"allocated_order_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	AllocatedAt       *time.Time `json:"allocated_at,omitempty"`
}
