package ingredient

import "fmt"

// SystemPrompt frames the categorization service as an ingredient extractor.
const SystemPrompt = "You are a food ingredient identifier. " +
	"Respond only with the ingredient name, or 'none' if no ingredient is found."

const userPromptTemplate = `Identify the food ingredient named in the text below.
Rules:
- Return only the ingredient name, nothing else.
- Ignore brand names, quantities, weights, packaging and cooking or storage instructions.
- If the text mentions several ingredients, return only the main one.
- If no food ingredient can be identified, return 'none'.

Text to analyze: '%s'`

// BuildUserPrompt embeds the OCR text into the categorization instructions.
func BuildUserPrompt(text string) string {
	return fmt.Sprintf(userPromptTemplate, text)
}

// BuildPrompt returns the system and user messages for one fragment.
func BuildPrompt(text string) (system, user string) {
	return SystemPrompt, BuildUserPrompt(text)
}
