package geo

// builtinCountries covers the countries concerts are most often filtered by
// when the CountriesNow API is unreachable.
var builtinCountries = []Country{
	{"Argentina", "AR"},
	{"Australia", "AU"},
	{"Austria", "AT"},
	{"Belgium", "BE"},
	{"Brazil", "BR"},
	{"Canada", "CA"},
	{"Chile", "CL"},
	{"Czech Republic", "CZ"},
	{"Denmark", "DK"},
	{"Finland", "FI"},
	{"France", "FR"},
	{"Germany", "DE"},
	{"Greece", "GR"},
	{"Hungary", "HU"},
	{"Iceland", "IS"},
	{"Ireland", "IE"},
	{"Israel", "IL"},
	{"Italy", "IT"},
	{"Japan", "JP"},
	{"Mexico", "MX"},
	{"Netherlands", "NL"},
	{"New Zealand", "NZ"},
	{"Norway", "NO"},
	{"Poland", "PL"},
	{"Portugal", "PT"},
	{"Romania", "RO"},
	{"Russia", "RU"},
	{"Serbia", "RS"},
	{"South Africa", "ZA"},
	{"South Korea", "KR"},
	{"Spain", "ES"},
	{"Sweden", "SE"},
	{"Switzerland", "CH"},
	{"Turkey", "TR"},
	{"Ukraine", "UA"},
	{"United Kingdom", "GB"},
	{"United States", "US"},
}

// aliases maps common alternative spellings to ISO2 codes.
var aliases = map[string]string{
	"uk":                       "GB",
	"england":                  "GB",
	"great britain":            "GB",
	"usa":                      "US",
	"united states of america": "US",
	"holland":                  "NL",
	"the netherlands":          "NL",
	"czechia":                  "CZ",
	"korea":                    "KR",
	"russian federation":       "RU",
}
