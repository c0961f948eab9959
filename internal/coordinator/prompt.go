package coordinator

import "strings"

// PageContext is the optional page reference attached to a question.
type PageContext struct {
	URL   string
	Title string
}

// PromptFunc turns a validated question into the backend prompt.
type PromptFunc func(question string, page PageContext) string

// DefaultPrompt grounds the answer in the page when a URL is present and
// answers generally otherwise.
func DefaultPrompt(question string, page PageContext) string {
	if page.URL == "" {
		return generalPrompt(question)
	}
	return pagePrompt(question, page)
}

func pagePrompt(question string, page PageContext) string {
	var b strings.Builder
	b.WriteString("You are QuickAsk, an assistant that answers questions about web pages.\n\n")
	b.WriteString("Page URL: ")
	b.WriteString(page.URL)
	b.WriteString("\n")
	if t := strings.TrimSpace(page.Title); t != "" {
		b.WriteString("Page title: ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("1. Read the content of the page at the URL above.\n")
	b.WriteString("2. Answer the question using what that page actually says.\n")
	b.WriteString("3. If you cannot retrieve the page, or it does not contain the answer, say so explicitly.\n")
	b.WriteString("4. Keep the answer concise and accurate.\n")
	return b.String()
}

func generalPrompt(question string) string {
	var b strings.Builder
	b.WriteString("You are QuickAsk, a helpful assistant.\n\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer the question directly and concisely from general knowledge. ")
	b.WriteString("Do not mention or rely on any web page the user may be viewing.\n")
	return b.String()
}
