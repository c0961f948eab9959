package coordinator

import (
	"strings"
	"testing"
)

func TestDefaultPromptWithPage(t *testing.T) {
	questions := []string{
		"What is this page about?",
		"Summarize the main points",
		"Does it mention \"generics\" and <T any>?",
		"multi\nline question",
	}
	urls := []string{
		"https://go.dev/blog/intro-generics",
		"http://localhost:8080/a?b=c#d",
		"not even a url",
	}

	for _, q := range questions {
		for _, u := range urls {
			p := DefaultPrompt(q, PageContext{URL: u})
			if !strings.Contains(p, u) {
				t.Errorf("prompt for %q missing url %q", q, u)
			}
			if !strings.Contains(p, q) {
				t.Errorf("prompt for url %q missing question %q", u, q)
			}
			if !strings.Contains(p, "say so explicitly") {
				t.Errorf("page prompt must ask the backend to report unreadable pages")
			}
		}
	}
}

func TestDefaultPromptWithoutPage(t *testing.T) {
	questions := []string{"What is a goroutine?", "Explain channels", "2+2?"}

	for _, q := range questions {
		p := DefaultPrompt(q, PageContext{})
		if !strings.Contains(p, q) {
			t.Errorf("prompt missing question %q", q)
		}
		for _, banned := range []string{"http", "URL", "Page title"} {
			if strings.Contains(p, banned) {
				t.Errorf("general prompt must not reference a page, found %q in %q", banned, p)
			}
		}
	}
}

func TestDefaultPromptIncludesTitleOnlyForPages(t *testing.T) {
	withPage := DefaultPrompt("q", PageContext{URL: "https://example.com", Title: "Example Domain"})
	if !strings.Contains(withPage, "Page title: Example Domain") {
		t.Errorf("expected title in page prompt, got %q", withPage)
	}

	general := DefaultPrompt("q", PageContext{Title: "Example Domain"})
	if strings.Contains(general, "Example Domain") {
		t.Errorf("general prompt must not carry the page title, got %q", general)
	}
}
