package extract

// ExtractMerchant returns the first brand of the lexicon that appears
// anywhere in text, ignoring case, or "" when none does. Lexicon order
// breaks ties when OCR noise makes several brands appear.
func ExtractMerchant(text string) string {
	brand, _ := brandLexicon.first(text)
	return brand
}
