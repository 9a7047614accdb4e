package inventory

import (
	"time"

	domainInventory "stokmanager/internal/domain/inventory"
)

type CreateItemRequest struct {
	Barcode string         `json:"barcode" validate:"required,max=128"`
	Name    string         `json:"name" validate:"omitempty,max=255"`
	Attrs   map[string]any `json:"attributes"`
}

type ItemResponse struct {
	ID         string         `json:"id"`
	Barcode    string         `json:"barcode"`
	Name       string         `json:"name,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  *int64         `json:"createdAt,omitempty"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
	Total int            `json:"total"`
}

func ToItemResponse(item *domainInventory.Item) ItemResponse {
	resp := ItemResponse{
		ID:         item.ID,
		Barcode:    item.Barcode,
		Name:       item.Name,
		Attributes: item.Attrs,
	}
	if !item.CreatedAt.IsZero() {
		ms := item.CreatedAt.UnixMilli()
		resp.CreatedAt = &ms
	}
	if len(resp.Attributes) == 0 {
		resp.Attributes = nil
	}
	return resp
}

func ToItemListResponse(items []*domainInventory.Item) *ItemListResponse {
	out := make([]ItemResponse, len(items))
	for i, item := range items {
		out[i] = ToItemResponse(item)
	}
	return &ItemListResponse{Items: out, Total: len(out)}
}

func nowOr(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
