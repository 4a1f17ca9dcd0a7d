package domain

import (
	"context"
	"errors"
)

type CreateItemRequest struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	UnitPrice    *int64 `json:"unit_price"`
	Active       *bool  `json:"active"`
	DisplayOrder int    `json:"display_order"`
}

// UpdateItemRequest patches an item. Nil fields are left untouched;
// ClearPrice removes the price so the item stops being billed.
type UpdateItemRequest struct {
	Name         *string `json:"name"`
	UnitPrice    *int64  `json:"unit_price"`
	ClearPrice   bool    `json:"clear_price"`
	Active       *bool   `json:"active"`
	DisplayOrder *int    `json:"display_order"`
}

type ListItemsRequest struct {
	ActiveOnly bool
}

type Service interface {
	CreateItem(ctx context.Context, req CreateItemRequest) (Item, error)
	UpdateItem(ctx context.Context, id string, req UpdateItemRequest) (Item, error)
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context, req ListItemsRequest) ([]Item, error)
	// ListBillable returns active priced items in display order.
	ListBillable(ctx context.Context) ([]Item, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidCode      = errors.New("invalid_code")
	ErrInvalidUnitPrice = errors.New("invalid_unit_price")
	ErrInvalidID        = errors.New("invalid_id")
	ErrDuplicateCode    = errors.New("duplicate_item_code")
	ErrNotFound         = errors.New("catalog_item_not_found")
)
