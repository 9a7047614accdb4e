package inventory

import "errors"

var (
	ErrItemNotFound     = errors.New("inventory item not found")
	ErrDuplicateBarcode = errors.New("barcode already registered")
	ErrBarcodeRequired  = errors.New("barcode is required")
)
