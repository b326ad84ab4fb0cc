package provider

import (
	"fmt"
	"strings"
)

// MockLesson is the terminal fallback generator: a pure function of the
// outline and the easter-egg flag. It performs no I/O, never fails, and is
// deterministic, so two runs over the same inputs produce identical content.
//
// The normal template embeds the outline as a comment header; the easter-egg
// template is a fixed document that ignores the outline entirely.
func MockLesson(outline string, easterEgg bool) string {
	if easterEgg {
		return mockEasterEggLesson
	}
	return fmt.Sprintf(mockLessonTemplate, strings.TrimSpace(outline))
}

const mockLessonTemplate = `<!-- outline: %s -->
# Placeholder Lesson

No generation provider is available right now, so this is deterministic
stand-in content. Configure a provider API key (or wait for the next
attempt) to receive a real lesson.

## What you would normally see here

1. A short introduction to the topic
2. Three to five sections with explanations and worked examples
3. A closing quiz with answers

## Next steps

Re-submit the outline once a provider is configured.
`

const mockEasterEggLesson = `# ↑ ↑ ↓ ↓ ← → ← → B A

## A Very Short History of the Konami Code

In 1986, programmer Kazuhisa Hashimoto found Gradius too hard to test, so he
built himself a shortcut: a button sequence that granted every power-up at
once. The sequence shipped by accident, players found it, and a legend was
born.

## The Sequence

Up, Up, Down, Down, Left, Right, Left, Right, B, A.

## Quiz

**Q:** What happens when you enter the code in Contra?
**A:** Thirty lives. You are going to need them.
`
