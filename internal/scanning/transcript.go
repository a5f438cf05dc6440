package scanning

import (
	"strings"
)

// noTextMarker is what the prompt asks the model to answer when the image
// holds no readable text.
const noTextMarker = "NO_TEXT"

// transcribePrompt is shared by every model backed scanner.
const transcribePrompt = `You are an OCR engine. The image is a photo or screenshot of a mobile gift voucher (gifticon), usually Korean.

Transcribe every piece of printed text exactly as it appears:
- Keep the original line breaks, one printed line per output line.
- Keep Korean and Latin text, digits, dates, dashes and punctuation unchanged.
- Do not translate, summarize, correct, or reorder anything.
- Do not add commentary, labels, or markdown.

If the image contains no readable text, answer with exactly ` + noTextMarker + `.`

// cleanTranscript strips what models wrap around a transcription: markdown
// fences, Windows line endings and the no-text marker.
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)

	if text == noTextMarker {
		return ""
	}
	return text
}
