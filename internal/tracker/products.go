package tracker

// UnknownProduct is the placeholder product name for SKU combinations the
// table does not know. Unresolvable combinations are never an error; new
// hardware should pair and sync before this table learns its name.
const UnknownProduct = "GPS Tracker"

// productNames maps vendor SKU keys to marketing names.
//
// The key is model_number, or model_number + "_" + hw_edition when the
// vendor distinguishes hardware editions of the same model.
var productNames = map[string]string{
	"TRAXA":        "PawLink GPS",
	"TRAXA_MINI":   "PawLink GPS Mini",
	"TRAXS":        "PawLink GPS S",
	"TRAXL":        "PawLink GPS L",
	"TRAXC_CAT":    "PawLink GPS Cat",
	"TRAXC_CAT4":   "PawLink GPS Cat 4",
	"TRAXD_DOG4":   "PawLink GPS Dog 4",
	"TRAXD_DOG4XL": "PawLink GPS Dog 4 XL",
	"TRAXF_FLORA":  "PawLink GPS Flora",
}

// ProductName derives the marketing name for a model/edition combination.
//
// Lookup order: model + "_" + edition first (more specific), then bare
// model. Unknown combinations yield UnknownProduct.
func ProductName(modelNumber, hwEdition string) string {
	if modelNumber == "" {
		return UnknownProduct
	}
	if hwEdition != "" {
		if name, ok := productNames[modelNumber+"_"+hwEdition]; ok {
			return name
		}
	}
	if name, ok := productNames[modelNumber]; ok {
		return name
	}
	return UnknownProduct
}
