package extract

import "regexp"

// CodeNotFound is returned by ExtractCode when the text holds no code. Stored
// records keep it so a missing code is visible.
const CodeNotFound = "코드 추출 실패"

var (
	reCode          = regexp.MustCompile(`(\w{4}[-\s]?){2}\w{4}`)
	reCodeSeparator = regexp.MustCompile(`[-\s]`)
)

// ExtractCode returns the first 4-4-4 redemption code in text with its
// separators removed, or CodeNotFound.
func ExtractCode(text string) string {
	code := reCode.FindString(text)
	if code == "" {
		return CodeNotFound
	}
	return reCodeSeparator.ReplaceAllString(code, "")
}
