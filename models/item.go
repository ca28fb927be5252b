package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Item categories
const (
	CategoryTop       = "top"
	CategoryBottom    = "bottom"
	CategoryDress     = "dress"
	CategoryOutfit    = "outfit"
	CategoryOuterwear = "outerwear"
	CategoryShoes     = "shoes"
	CategoryAccessory = "accessory"
	CategoryBag       = "bag"
	CategoryJewelry   = "jewelry"
)

// Gender targets
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderUnisex = "unisex"
)

// ItemImage is one catalog photo of an item. Key is an S3 object key.
type ItemImage struct {
	Key       string `bson:"key" json:"key"`
	IsPrimary bool   `bson:"is_primary" json:"is_primary"`
}

// Item represents a catalog product. Items are written by the catalog
// ingestion job and read-only for this service.
type Item struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Category    string             `bson:"category" json:"category"`
	Subcategory string             `bson:"subcategory,omitempty" json:"subcategory,omitempty"`
	Gender      string             `bson:"gender" json:"gender"`
	Price       float64            `bson:"price" json:"price"`
	Currency    string             `bson:"currency" json:"currency"`
	Colors      []string           `bson:"colors,omitempty" json:"colors,omitempty"`
	Tags        []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Occasions   []string           `bson:"occasions,omitempty" json:"occasions,omitempty"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	Images      []ItemImage        `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// PrimaryImageKey returns the key of the primary image, falling back to the
// first image when none is marked primary.
func (it *Item) PrimaryImageKey() string {
	for _, img := range it.Images {
		if img.IsPrimary {
			return img.Key
		}
	}
	if len(it.Images) > 0 {
		return it.Images[0].Key
	}
	return ""
}
