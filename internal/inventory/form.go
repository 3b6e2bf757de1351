package inventory

import (
	"encoding/base64"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"product-inventory-service/internal/domain"
)

// maxIDAttempts bounds id regeneration when a generated id is already taken.
const maxIDAttempts = 8

// NewProductID returns a fresh product identifier.
func NewProductID() string {
	return "prod-" + uuid.NewString()
}

// newFormValidator returns a validator reporting fields by their JSON names.
func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// BuildNew constructs a normalized record from form input. taken holds the ids
// already present in the collection; newID generates candidate ids.
func BuildNew(input domain.FormFields, taken map[string]struct{}, newID func() string) (domain.Product, error) {
	name := trimmed(input.Name)
	if name == "" {
		return domain.Product{}, newValidationError("name", "product name is required")
	}

	id, err := uniqueID(taken, newID)
	if err != nil {
		return domain.Product{}, err
	}

	p := domain.Product{
		ID:       id,
		Name:     name,
		Brand:    trimmed(input.Brand),
		Category: trimmed(input.Category),
		Model:    trimmed(input.Model),
		Storage:  trimmed(input.Storage),
		Color:    trimmed(input.Color),
		Source:   trimmed(input.Source),
		Warranty: trimmed(input.Warranty),
		IMEI:     trimmed(input.IMEI),
		Serial:   trimmed(input.Serial),
		Notes:    valueOf(input.Notes),
		Image:    valueOf(input.Image),
	}
	if p.Category == "" {
		p.Category = domain.DefaultCategory
	}
	if input.CostPrice != nil {
		v := *input.CostPrice
		p.CostPrice = &v
	}
	if input.SalePrice != nil {
		v := *input.SalePrice
		p.SalePrice = &v
	}
	if input.QtyOnHand != nil {
		p.QtyOnHand = *input.QtyOnHand
	}
	if p.QtyOnHand < 0 {
		return domain.Product{}, newValidationError("qtyOnHand", "quantity cannot be negative")
	}
	p.Status = domain.StatusForQuantity(p.QtyOnHand)
	p.Extensions = copyExtensions(nil, input.Extensions)
	return p, nil
}

// ApplyUpdate overlays the supplied form fields on a copy of existing. The id
// never changes and fields left nil keep their current value. Status is
// recomputed from the resulting quantity unless the record is archived.
func ApplyUpdate(existing domain.Product, input domain.FormFields) (domain.Product, error) {
	p := existing.Clone()

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return domain.Product{}, newValidationError("name", "product name is required")
		}
		p.Name = name
	}
	setString(&p.Brand, input.Brand)
	setString(&p.Category, input.Category)
	setString(&p.Model, input.Model)
	setString(&p.Storage, input.Storage)
	setString(&p.Color, input.Color)
	setString(&p.Source, input.Source)
	setString(&p.Warranty, input.Warranty)
	setString(&p.IMEI, input.IMEI)
	setString(&p.Serial, input.Serial)
	if input.Notes != nil {
		p.Notes = *input.Notes
	}
	if input.Image != nil {
		p.Image = *input.Image
	}
	if input.CostPrice != nil {
		v := *input.CostPrice
		p.CostPrice = &v
	}
	if input.SalePrice != nil {
		v := *input.SalePrice
		p.SalePrice = &v
	}
	if input.QtyOnHand != nil {
		if *input.QtyOnHand < 0 {
			return domain.Product{}, newValidationError("qtyOnHand", "quantity cannot be negative")
		}
		p.QtyOnHand = *input.QtyOnHand
	}
	if input.Extensions != nil {
		p.Extensions = copyExtensions(p.Extensions, input.Extensions)
	}
	if !p.IsArchived() {
		p.Status = domain.StatusForQuantity(p.QtyOnHand)
	}
	return p, nil
}

// ImageDataURL embeds an uploaded image as a data URL.
func ImageDataURL(content []byte) (string, error) {
	if len(content) == 0 {
		return "", newValidationError("image", "image file is empty")
	}
	mt := mimetype.Detect(content)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", newValidationError("image", "uploaded file is not an image ("+mt.String()+")")
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(content), nil
}

func uniqueID(taken map[string]struct{}, newID func() string) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := newID()
		if id == "" {
			continue
		}
		if _, dup := taken[id]; !dup {
			return id, nil
		}
	}
	return "", errIDExhausted
}

// copyExtensions merges src into a copy of dst; an empty value deletes the key.
func copyExtensions(dst, src map[string]string) map[string]string {
	out := make(map[string]string, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func valueOf(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
