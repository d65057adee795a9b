package services

import "marketplace-scraper/models"

// Merge joins a listing with its detail record. The folder identity always
// comes from the listing; the detail record never recomputes it.
//
// A seller read from the detail page replaces the card's, which is often
// only the site default. Transmission and fuel from the detail page fill the
// card's values only when the card had none.
func Merge(basic models.BasicListing, detail models.DetailRecord) models.CombinedRecord {
	detail.ID = basic.ID
	detail.Folder = basic.Folder

	if detail.Seller.Known {
		basic.Seller = detail.Seller
	}
	if !basic.Transmission.Known {
		basic.Transmission = detail.Transmission
	}
	if !basic.FuelType.Known {
		basic.FuelType = detail.FuelType
	}
	return models.CombinedRecord{Basic: basic, Detail: detail}
}
