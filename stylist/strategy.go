package stylist

import "github.com/nimastyle/nima-backend/models"

// Strategy describes one outfit shape: which categories are mandatory, which
// may be layered on top, and how many items the result must hold.
type Strategy struct {
	Name         string
	Base         []string
	Optional     []string
	MinItems     int
	MaxItems     int
	CompleteBase bool
}

// Strategies in rotation order. The matcher starts at the caller's strategy
// index so consecutive looks of one request lead with different shapes.
var Strategies = []Strategy{
	{
		Name:         "dress_outfit",
		Base:         []string{models.CategoryDress},
		Optional:     []string{models.CategoryShoes, models.CategoryAccessory, models.CategoryBag, models.CategoryJewelry},
		MinItems:     1,
		MaxItems:     3,
		CompleteBase: true,
	},
	{
		Name:         "set_outfit",
		Base:         []string{models.CategoryOutfit},
		Optional:     []string{models.CategoryShoes, models.CategoryAccessory, models.CategoryBag, models.CategoryJewelry},
		MinItems:     1,
		MaxItems:     3,
		CompleteBase: true,
	},
	{
		Name:     "separates",
		Base:     []string{models.CategoryTop, models.CategoryBottom},
		Optional: []string{models.CategoryShoes, models.CategoryAccessory},
		MinItems: 2,
		MaxItems: 3,
	},
	{
		Name:     "layered",
		Base:     []string{models.CategoryTop, models.CategoryBottom},
		Optional: []string{models.CategoryShoes, models.CategoryOuterwear},
		MinItems: 2,
		MaxItems: 3,
	},
}

// fallbackOrder is the category scan used when every strategy fails: first
// available item per category until two items are gathered. Top and bottom
// are skipped once a dress is in.
var fallbackOrder = []string{models.CategoryDress, models.CategoryTop, models.CategoryBottom, models.CategoryShoes}
