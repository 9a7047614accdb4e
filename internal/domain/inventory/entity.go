package inventory

import "time"

// Item is a catalog entry looked up by barcode. Attrs carries catalog
// fields this service does not interpret.
type Item struct {
	ID        string
	Barcode   string
	Name      string
	Attrs     map[string]any
	CreatedAt time.Time
}
