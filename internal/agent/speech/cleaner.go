package speech

import (
	"regexp"
	"strings"
)

// Cleaner strips formatting artifacts the speech model occasionally leaves
// behind so the text vocalizes cleanly. It is a pure, idempotent transform:
// running it on already-clean text changes nothing.
type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

var (
	reBold   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	reItalic = regexp.MustCompile(`\*([^*]+)\*`)
	reCode   = regexp.MustCompile("`([^`]+)`")
	reUnder  = regexp.MustCompile(`_([^_]+)_`)
	reLink   = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reHeader = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBullet = regexp.MustCompile(`(?m)^\s*[-*•]\s+`)
	reBlank  = regexp.MustCompile(`\n{3,}`)
	reSpaces = regexp.MustCompile(`[ \t]{2,}`)

	rePreambles = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^sure[!,.]?\s+here['’a-z\s]*?:\s*`),
		regexp.MustCompile(`(?i)^here['’a-z\s]*?:\s*`),
		regexp.MustCompile(`(?i)^okay[!,.]\s+`),
		regexp.MustCompile(`(?i)^alright[!,.]\s+`),
	}
)

// Clean removes markdown artifacts, link targets, list markers and chatty
// preambles. Factual content is preserved; only formatting is dropped.
func (c *Cleaner) Clean(text string) string {
	out := text
	out = reLink.ReplaceAllString(out, "$1")
	out = reBold.ReplaceAllString(out, "$1")
	out = reItalic.ReplaceAllString(out, "$1")
	out = reCode.ReplaceAllString(out, "$1")
	out = reUnder.ReplaceAllString(out, "$1")
	out = reHeader.ReplaceAllString(out, "")
	out = reBullet.ReplaceAllString(out, "")
	// Preambles can stack ("Okay! Sure! Here's..."); strip until stable so a
	// second Clean is a no-op.
	for changed := true; changed; {
		changed = false
		for _, re := range rePreambles {
			if next := re.ReplaceAllString(out, ""); next != out {
				out = next
				changed = true
			}
		}
	}
	out = reBlank.ReplaceAllString(out, "\n\n")
	out = reSpaces.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
