package domain

// Status is the derived stock label stored on every product record.
type Status string

const (
	StatusInStock  Status = "In Stock"
	StatusLowStock Status = "Low Stock"
	StatusArchived Status = "Archived" // terminal, nothing transitions out of it
)

// LowStockThreshold is the highest quantity still reported as Low Stock.
const LowStockThreshold = 2

// DefaultCategory is assigned when a product is created without a category.
const DefaultCategory = "Uncategorized"

// StatusForQuantity derives the stock label for an on-hand quantity.
func StatusForQuantity(qty int) Status {
	if qty <= LowStockThreshold {
		return StatusLowStock
	}
	return StatusInStock
}

// Product is a single record of the inventory collection.
// Field order here is the field order of the persisted and exported JSON.
type Product struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Brand      string            `json:"brand,omitempty"`
	Category   string            `json:"category,omitempty"`
	Model      string            `json:"model,omitempty"`
	Storage    string            `json:"storage,omitempty"`
	Color      string            `json:"color,omitempty"`
	Source     string            `json:"source,omitempty"`
	Warranty   string            `json:"warranty,omitempty"`
	IMEI       string            `json:"imei,omitempty"`
	Serial     string            `json:"serial,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	CostPrice  *float64          `json:"costPrice"` // nil means "not set", not zero
	SalePrice  *float64          `json:"salePrice"`
	QtyOnHand  int               `json:"qtyOnHand"`
	Status     Status            `json:"status"`
	Image      string            `json:"image,omitempty"` // data URL
	Extensions map[string]string `json:"extensions,omitempty"`
}

// IsArchived reports whether the record reached the terminal Archived status.
func (p Product) IsArchived() bool {
	return p.Status == StatusArchived
}

// Clone returns a deep copy of the record.
func (p Product) Clone() Product {
	c := p
	if p.CostPrice != nil {
		v := *p.CostPrice
		c.CostPrice = &v
	}
	if p.SalePrice != nil {
		v := *p.SalePrice
		c.SalePrice = &v
	}
	if p.Extensions != nil {
		c.Extensions = make(map[string]string, len(p.Extensions))
		for k, v := range p.Extensions {
			c.Extensions[k] = v
		}
	}
	return c
}

// CloneAll deep copies a whole collection, preserving order.
func CloneAll(products []Product) []Product {
	out := make([]Product, len(products))
	for i, p := range products {
		out[i] = p.Clone()
	}
	return out
}

// FormFields carries the editable fields collected by the product form.
// A nil pointer means the field was not supplied; on update it keeps the
// existing value.
type FormFields struct {
	Name       *string           `json:"name" validate:"omitempty,max=255"`
	Brand      *string           `json:"brand" validate:"omitempty,max=255"`
	Category   *string           `json:"category" validate:"omitempty,max=255"`
	Model      *string           `json:"model" validate:"omitempty,max=255"`
	Storage    *string           `json:"storage" validate:"omitempty,max=100"`
	Color      *string           `json:"color" validate:"omitempty,max=100"`
	Source     *string           `json:"source" validate:"omitempty,max=255"`
	Warranty   *string           `json:"warranty" validate:"omitempty,max=255"`
	IMEI       *string           `json:"imei" validate:"omitempty,max=64"`
	Serial     *string           `json:"serial" validate:"omitempty,max=128"`
	Notes      *string           `json:"notes"`
	CostPrice  *float64          `json:"costPrice" validate:"omitempty,gte=0"`
	SalePrice  *float64          `json:"salePrice" validate:"omitempty,gte=0"`
	QtyOnHand  *int              `json:"qtyOnHand" validate:"omitempty,gte=0"`
	Image      *string           `json:"image" validate:"omitempty,datauri"`
	Extensions map[string]string `json:"extensions"`
}
