// Package decompose turns a free-text prompt into a short ordered list of
// actionable tasks without calling a model. It is the recovery path behind
// the provider-backed decomposition: any input yields between 1 and
// MaxTasks tasks.
package decompose

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stepwise-ai/stepwise/internal/model"
)

// MaxTasks bounds every result.
const MaxTasks = 5

var (
	newlineRe  = regexp.MustCompile(`\n+`)
	bulletRe   = regexp.MustCompile(`\n[-*•+~][ \t]*([^\n]+)`)
	numberedRe = regexp.MustCompile(`\n(?:\d+[.)]|Step[ \t]*\d+:?)[ \t]*([^\n]+)`)
	sentenceRe = regexp.MustCompile(`\.\s+`)

	// Ordinal and connective markers, in priority order. Each slot is a set
	// of spellings tried as one alternation. A marker only counts when a
	// period or newline precedes it and a comma/colon-plus-whitespace (or
	// plain whitespace) follows it; a marker at the very start of the
	// prompt is not a boundary.
	separatorRes = compileSeparators([][]string{
		{"first", "1st"}, {"second", "2nd"}, {"third", "3rd"},
		{"fourth", "4th"}, {"fifth", "5th"}, {"sixth", "6th"},
		{"seventh", "7th"}, {"eighth", "8th"}, {"ninth", "9th"},
		{"tenth", "10th"},
		{"next"}, {"then"}, {"finally"}, {"additionally"}, {"moreover"},
		{"furthermore"}, {"also"},
	})

	keywordRe = regexp.MustCompile(
		`(?i)[.\n]\s*(?:(?:(?:the|a|this|your)\s+)?(?:task|step|part|phase|stage)\s+(?:is|will\s+be)\s+to|you\s+(?:need|should|must|have\s+to))`)
)

func compileSeparators(markers [][]string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(markers))
	for i, alts := range markers {
		res[i] = regexp.MustCompile(`(?i)[.\n]\s*(` + strings.Join(alts, "|") + `)[,:]?\s+`)
	}
	return res
}

// Decompose splits prompt into 1..MaxTasks task descriptors. It never fails
// and never returns an empty slice: structural strategies (lines, bullets,
// numbered items) are tried first, then the separator/keyword scan, then
// sentence and word-chunk fallbacks, and as a last resort the whole prompt
// is returned as a single task.
func Decompose(prompt string) []model.TaskDescriptor {
	var tasks []string

	if lines := splitLines(prompt); len(lines) >= 2 {
		tasks = lines
	} else if bullets := splitBullets(prompt); len(bullets) >= 2 {
		tasks = bullets
	} else if numbered := splitNumbered(prompt); len(numbered) >= 2 {
		tasks = numbered
	} else {
		collected, tail := splitSeparators(prompt)
		collected = appendKeywordPhrases(prompt, collected)
		if t := strings.TrimSpace(tail); len(t) > 10 {
			collected = append(collected, t)
		}
		if len(collected) <= 1 {
			collected = splitSentences(prompt)
		}
		if len(collected) <= 1 {
			collected = splitChunks(prompt)
		}
		tasks = collected
	}

	tasks = normalize(tasks)
	if len(tasks) > MaxTasks {
		tasks = tasks[:MaxTasks]
	}
	if len(tasks) == 0 {
		// Guaranteed floor: the original prompt, untouched.
		return []model.TaskDescriptor{{Task: prompt}}
	}

	out := make([]model.TaskDescriptor, len(tasks))
	for i, t := range tasks {
		out[i] = model.TaskDescriptor{Task: t}
	}
	return out
}

// splitLines splits on runs of newlines and keeps trimmed non-blank lines.
func splitLines(prompt string) []string {
	parts := newlineRe.Split(prompt, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitBullets captures lines introduced by a bullet glyph after a newline.
func splitBullets(prompt string) []string {
	var out []string
	for _, m := range bulletRe.FindAllStringSubmatch(prompt, -1) {
		item := strings.TrimSpace(m[1])
		if len(item) > 5 {
			out = append(out, item)
		}
	}
	return out
}

// splitNumbered captures lines introduced by "1." / "2)" / "Step 3:" forms
// after a newline.
func splitNumbered(prompt string) []string {
	var out []string
	for _, m := range numberedRe.FindAllStringSubmatch(prompt, -1) {
		item := strings.TrimSpace(m[1])
		if len(item) > 5 {
			out = append(out, item)
		}
	}
	return out
}

// splitSeparators runs one left-to-right consuming pass over prompt. Each
// marker is searched at most once, in priority order; when found, the text
// before it becomes a candidate and the scan window advances past it.
// Returns the candidates and the unconsumed tail.
func splitSeparators(prompt string) (tasks []string, tail string) {
	window := prompt
	for _, re := range separatorRes {
		loc := re.FindStringSubmatchIndex(window)
		if loc == nil {
			continue
		}
		// loc[2] is the start of the marker word itself, so the candidate
		// keeps the boundary period.
		candidate := strings.TrimSpace(window[:loc[2]])
		if len(candidate) > 10 && !containsTask(tasks, candidate) {
			tasks = append(tasks, candidate)
		}
		window = window[loc[1]:]
	}
	return tasks, window
}

// appendKeywordPhrases scans the original prompt for "the task is to ..." /
// "you need ..." style phrases and appends what follows each one, up to the
// next period (inclusive) or the end of the prompt.
func appendKeywordPhrases(prompt string, tasks []string) []string {
	for _, loc := range keywordRe.FindAllStringIndex(prompt, -1) {
		rest := prompt[loc[1]:]
		if dot := strings.Index(rest, "."); dot >= 0 {
			rest = rest[:dot+1]
		}
		candidate := strings.TrimSpace(rest)
		if len(candidate) > 10 && !containsTask(tasks, candidate) {
			tasks = append(tasks, candidate)
		}
	}
	return tasks
}

// splitSentences splits on whitespace that follows a period, keeping the
// period with the sentence to its left.
func splitSentences(prompt string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceRe.FindAllStringIndex(prompt, -1) {
		piece := strings.TrimSpace(prompt[start : loc[0]+1])
		start = loc[1]
		if len(piece) > 15 {
			out = append(out, piece)
		}
	}
	if piece := strings.TrimSpace(prompt[start:]); len(piece) > 15 {
		out = append(out, piece)
	}
	return out
}

// splitChunks groups whitespace-separated words into chunks of
// max(5, wordCount/3) words each.
func splitChunks(prompt string) []string {
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return nil
	}
	size := len(words) / 3
	if size < 5 {
		size = 5
	}
	var out []string
	for i := 0; i < len(words); i += size {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}

// normalize trims each task and uppercases its first rune; tasks that trim
// to nothing are dropped. Idempotent.
func normalize(tasks []string) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(t)
		out = append(out, string(unicode.ToUpper(r))+t[size:])
	}
	return out
}

func containsTask(tasks []string, candidate string) bool {
	for _, t := range tasks {
		if t == candidate {
			return true
		}
	}
	return false
}
