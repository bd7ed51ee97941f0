package news

var languageToCountry = map[string]string{
	"en": "us",
	"es": "es",
	"ko": "kr",
	"zh": "cn",
	"ja": "jp",
	"de": "de",
	"fr": "fr",
}

// CountryForLanguage maps an ISO language code to the country used for
// top-headline queries. ok is false for unmapped languages.
func CountryForLanguage(lang string) (country string, ok bool) {
	country, ok = languageToCountry[lang]
	return country, ok
}
