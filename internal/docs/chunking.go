package docs

import "strings"

// ChunkText splits text into chunks of roughly maxLen characters, breaking
// at paragraph boundaries where possible. Consecutive chunks overlap by
// overlap characters so retrieval does not lose context at chunk edges.
func ChunkText(text string, maxLen, overlap int) []string {
	if maxLen <= 0 {
		maxLen = 1000
	}
	if overlap < 0 || overlap >= maxLen {
		overlap = 0
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		// Seed the next chunk with the tail of this one.
		if overlap > 0 && len(chunk) > overlap {
			current.WriteString(chunk[len(chunk)-overlap:])
			current.WriteString("\n")
		}
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		// Paragraphs longer than the budget get hard-split.
		for len(paragraph) > maxLen {
			if current.Len() > 0 {
				flush()
			}
			current.WriteString(paragraph[:maxLen])
			flush()
			paragraph = paragraph[maxLen:]
		}

		if current.Len() > 0 && current.Len()+len(paragraph)+2 > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}

	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
