package provider

import "strings"

// Trigger phrases that switch prompt and mock generation to the easter-egg
// template. Matched case-insensitively as substrings of the outline.
var easterEggTriggers = []string{
	"konami",
	"up up down down",
}

// IsEasterEgg reports whether the outline asks for the easter-egg lesson.
func IsEasterEgg(outline string) bool {
	low := strings.ToLower(outline)
	for _, t := range easterEggTriggers {
		if strings.Contains(low, t) {
			return true
		}
	}
	return false
}

// BuildPrompt returns the prompt sent to a live provider for the given
// outline. The easter-egg variant uses a fixed prompt that ignores the
// outline body.
func BuildPrompt(outline string, easterEgg bool) string {
	if easterEgg {
		return easterEggPrompt
	}
	var b strings.Builder
	b.WriteString("You are an experienced teacher. Write a complete, well-structured lesson in Markdown for the outline below.\n")
	b.WriteString("Include a short introduction, 3-5 sections with explanations and examples, and a closing quiz with answers.\n")
	b.WriteString("Return only the lesson document, no preamble.\n\n")
	b.WriteString("Outline: ")
	b.WriteString(strings.TrimSpace(outline))
	return b.String()
}

const easterEggPrompt = "You are an experienced teacher with a sense of humor. " +
	"Write a short, playful lesson in Markdown about the history of the Konami code " +
	"(up, up, down, down, left, right, left, right, B, A) in video-game culture. " +
	"Return only the lesson document, no preamble."
