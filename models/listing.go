package models

import (
	"strconv"
	"strings"
)

// Unknown is the placeholder written for any field that could not be resolved.
const Unknown = "unknown"

// Field is a value that may be missing. Records keep fields as Field values
// and only turn them into the Unknown sentinel when serialised.
type Field struct {
	Value string
	Known bool
}

// Known wraps a resolved value. Blank input stays unknown.
func Known(v string) Field {
	v = strings.TrimSpace(v)
	if v == "" {
		return Field{}
	}
	return Field{Value: v, Known: true}
}

// ParseField reads a serialised value back, mapping the sentinel to unknown.
func ParseField(s string) Field {
	if strings.TrimSpace(s) == Unknown {
		return Field{}
	}
	return Known(s)
}

// Or returns f when known, otherwise a known field holding def.
func (f Field) Or(def string) Field {
	if f.Known {
		return f
	}
	return Known(def)
}

func (f Field) String() string {
	if !f.Known {
		return Unknown
	}
	return f.Value
}

// BasicListing is one card from a discovery page. It is built once and never
// modified afterwards; Folder in particular is derived exactly once.
type BasicListing struct {
	ID           int
	Title        Field
	Price        Field
	PublishedAt  Field
	Year         Field
	FuelType     Field
	Transmission Field
	Seller       Field
	URL          Field
	Folder       string
}

// AssetReference points at a durably written image, relative to the images root.
type AssetReference struct {
	Index int
	Path  string
}

// DetailRecord holds the enrichment fields read from a listing's detail page.
type DetailRecord struct {
	ID          int
	Category    Field
	Sector      Field
	Mileage     Field
	Brand       Field
	Model       Field
	Doors       Field
	Origin      Field
	FirstHand   Field
	FiscalPower Field
	Condition   Field
	Equipment   Field
	SellerCity  Field
	Folder      string
	Images      []AssetReference

	// Card values a detail page can supply when the listing card lacked
	// them. They have no columns of their own; Merge folds them into the
	// listing's fields.
	Seller       Field
	Transmission Field
	FuelType     Field
}

// Detail field keys, used by label tables and per-field fallback chains.
// The last three target card values rather than detail columns.
const (
	FieldCategory    = "category"
	FieldSector      = "sector"
	FieldMileage     = "mileage"
	FieldBrand       = "brand"
	FieldModel       = "model"
	FieldDoors       = "doors"
	FieldOrigin      = "origin"
	FieldFirstHand   = "first_hand"
	FieldFiscalPower = "fiscal_power"
	FieldCondition   = "condition"
	FieldEquipment   = "equipment"
	FieldSellerCity  = "seller_city"

	FieldSeller       = "seller"
	FieldTransmission = "transmission"
	FieldFuelType     = "fuel_type"
)

// DetailFields lists the enrichment keys in output column order.
var DetailFields = []string{
	FieldCategory, FieldSector, FieldMileage, FieldBrand, FieldModel, FieldDoors,
	FieldOrigin, FieldFirstHand, FieldFiscalPower, FieldCondition, FieldEquipment, FieldSellerCity,
}

// NewDetailRecord returns a record whose every field is unknown.
func NewDetailRecord(id int, folder string) DetailRecord {
	return DetailRecord{ID: id, Folder: folder}
}

// Slot returns a pointer to the field named by key, or nil for unknown keys.
func (d *DetailRecord) Slot(key string) *Field {
	switch key {
	case FieldCategory:
		return &d.Category
	case FieldSector:
		return &d.Sector
	case FieldMileage:
		return &d.Mileage
	case FieldBrand:
		return &d.Brand
	case FieldModel:
		return &d.Model
	case FieldDoors:
		return &d.Doors
	case FieldOrigin:
		return &d.Origin
	case FieldFirstHand:
		return &d.FirstHand
	case FieldFiscalPower:
		return &d.FiscalPower
	case FieldCondition:
		return &d.Condition
	case FieldEquipment:
		return &d.Equipment
	case FieldSellerCity:
		return &d.SellerCity
	case FieldSeller:
		return &d.Seller
	case FieldTransmission:
		return &d.Transmission
	case FieldFuelType:
		return &d.FuelType
	}
	return nil
}

// Resolved reports whether at least one enrichment field or image was obtained.
func (d DetailRecord) Resolved() bool {
	if len(d.Images) > 0 {
		return true
	}
	for _, key := range DetailFields {
		if d.Slot(key).Known {
			return true
		}
	}
	return d.Seller.Known || d.Transmission.Known || d.FuelType.Known
}

// ImagePaths joins the asset paths the way the tabular output stores them.
func (d DetailRecord) ImagePaths() string {
	paths := make([]string, len(d.Images))
	for i, img := range d.Images {
		paths[i] = img.Path
	}
	return strings.Join(paths, ", ")
}

// CombinedRecord is the unit handed to output sinks.
type CombinedRecord struct {
	Basic  BasicListing
	Detail DetailRecord
}

// CombinedHeader is the fixed column order of every CombinedRecord.
var CombinedHeader = []string{
	"id", "title", "price", "published_at", "year", "fuel_type", "transmission", "seller",
	"category", "sector", "mileage", "brand", "model", "doors", "origin", "first_hand",
	"fiscal_power", "condition", "equipment", "seller_city",
	"folder", "images",
}

// Row renders the record in CombinedHeader order, with sentinels for gaps.
func (c CombinedRecord) Row() []string {
	b := c.Basic
	row := []string{
		strconv.Itoa(b.ID), b.Title.String(), b.Price.String(), b.PublishedAt.String(), b.Year.String(),
		b.FuelType.String(), b.Transmission.String(), b.Seller.String(),
	}
	d := c.Detail
	for _, key := range DetailFields {
		row = append(row, d.Slot(key).String())
	}
	return append(row, b.Folder, d.ImagePaths())
}

// Values maps every header to its rendered value.
func (c CombinedRecord) Values() map[string]string {
	row := c.Row()
	out := make(map[string]string, len(row))
	for i, h := range CombinedHeader {
		out[h] = row[i]
	}
	return out
}

// BasicHeader is the column order of the intermediate discovery artifact.
var BasicHeader = []string{
	"id", "title", "price", "published_at", "year", "fuel_type", "transmission", "seller", "url", "folder",
}

// Row renders the listing in BasicHeader order.
func (b BasicListing) Row() []string {
	return []string{
		strconv.Itoa(b.ID), b.Title.String(), b.Price.String(), b.PublishedAt.String(), b.Year.String(),
		b.FuelType.String(), b.Transmission.String(), b.Seller.String(), b.URL.String(), b.Folder,
	}
}
