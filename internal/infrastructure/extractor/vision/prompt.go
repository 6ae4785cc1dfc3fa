package vision

import (
	"fmt"
	"strings"
)

const pagePromptTemplate = `Analyze this page from a construction/building (BTP) document.
%s
IMPORTANT: The document is in %s. Extract all content in %s.

Extract ALL content from this page in a single, coherent text flow, maintaining the exact reading order.

PAY SPECIAL ATTENTION TO:
1. Handwritten signatures (usually blue or black ink, cursive writing)
2. Company stamps/cachets (circular or rectangular stamps with company info)
3. Official seals
4. Handwritten annotations
5. Logos and letterheads

FORMAT FOR EACH ELEMENT:
- Company logos/letterheads: [LOGO: description]
- Handwritten signatures: [SIGNATURE: description, e.g., "Signature manuscrite de M. Petit Nicolas"]
- Company stamps: [CACHET: description, e.g., "Cachet rond de l'entreprise SICRA avec date"]
- Tables: [TABLEAU: detailed description]
- Checkboxes: [X] for checked, [ ] for unchecked

IMPORTANT: After text like "Le titulaire" or "signature", there is usually a signature and/or stamp. Make sure to describe them.

Example of a complete extraction with signature:
"Fait à Paris, le 01/01/2024
Le Directeur
[SIGNATURE: Signature manuscrite en encre bleue, illisible]
[CACHET: Cachet rond de l'entreprise avec numéro SIRET]"

Extract everything you see, in order.`

// BuildPrompt fills the page transcription template. An empty language
// defaults to French.
func BuildPrompt(hint, language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		language = "French"
	}
	context := ""
	if hint = strings.TrimSpace(hint); hint != "" {
		context = "Document context: " + hint + "\n"
	}
	return fmt.Sprintf(pagePromptTemplate, context, language, language)
}
