package vector

// TextMetadata returns the metadata map stored alongside a document with the
// given text.
func TextMetadata(text string) map[string]any {
	return map[string]any{MetadataTextKey: text}
}

// TextFromMetadata extracts the original text from stored metadata, falling
// back to fallback when absent.
func TextFromMetadata(md map[string]any, fallback string) string {
	if md == nil {
		return fallback
	}
	if text, ok := md[MetadataTextKey].(string); ok {
		return text
	}
	return fallback
}
