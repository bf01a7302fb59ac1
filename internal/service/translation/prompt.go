package translation

import (
	"encoding/json"
	"fmt"
	"strings"
)

const htmlRule = "The text is HTML. Do not add, remove, reorder or rename any tag or attribute. " +
	"Translate only the human-readable text nodes and keep entities as they are."

func buildTextPrompt(text, targetLanguage string, isHTML bool, sourceLanguage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following %s text into %s.\n", sourceLanguage, targetLanguage)
	if isHTML {
		b.WriteString(htmlRule)
		b.WriteString("\n")
	}
	b.WriteString("This is workplace health and safety training material; keep terminology precise.\n")
	b.WriteString("Reply with the translation only, without quotes or commentary.\n\n")
	b.WriteString(text)
	return b.String()
}

type batchPromptItem struct {
	Index   int    `json:"index"`
	HTML    bool   `json:"html,omitempty"`
	Context string `json:"context,omitempty"`
	Text    string `json:"text"`
}

func buildBatchPrompt(items []BatchItem, targetLanguage, sourceLanguage string) (string, error) {
	payload := make([]batchPromptItem, len(items))
	hasHTML := false
	for i, item := range items {
		payload[i] = batchPromptItem{Index: i, HTML: item.IsHTML, Context: item.Context, Text: item.Text}
		hasHTML = hasHTML || item.IsHTML
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch items: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Translate the \"text\" of each of the %d items below from %s into %s.\n", len(items), sourceLanguage, targetLanguage)
	fmt.Fprintf(&b, "Reply with a JSON array of exactly %d strings, in the same order as the items, and nothing else.\n", len(items))
	b.WriteString("\"context\" is a hint about where the text is used; do not translate or return it.\n")
	if hasHTML {
		b.WriteString("Items with \"html\": true contain HTML. " + htmlRule + "\n")
	}
	b.WriteString("\n")
	b.Write(encoded)
	return b.String(), nil
}

func buildSubtitlePrompt(srtContent, targetLanguage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the caption text of this SRT subtitle file from English into %s.\n", targetLanguage)
	b.WriteString("Keep every cue number and every timestamp line exactly as given. Keep the same number of cues ")
	b.WriteString("and the blank line between cues. Do not merge or split cues.\n")
	b.WriteString("Reply with the translated SRT only.\n\n")
	b.WriteString(srtContent)
	return b.String()
}
