// Package textproc normalizes raw model output before it is stored or shown:
// speaker-prefix stripping, sentence completion and word-count limiting.
package textproc

import (
	"regexp"
	"strings"

	"postpilot/models"
)

// DefaultWordCount is used when a request does not specify a target.
const DefaultWordCount = 50

// speakerMarker is the literal the upstream model prefixes its replies with.
var speakerMarker = models.AssistantName + ":"

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Result is the outcome of refining a raw generation.
type Result struct {
	Text string
	// Complete reports whether the refined text reached the requested
	// word count.
	Complete bool
}

// Refine normalizes raw generated text against a target word count.
// A wordCount <= 0 falls back to DefaultWordCount. For non-empty input the
// result text is never empty: when no sentence boundary exists at all the
// text is kept as limited by word count only.
func Refine(raw string, wordCount int) Result {
	if wordCount <= 0 {
		wordCount = DefaultWordCount
	}

	text := StripSpeakerPrefix(raw)
	text = CompleteSentences(text)
	text = LimitWords(text, wordCount)
	text = TrimTrailingFragment(text)

	return Result{
		Text:     text,
		Complete: len(strings.Fields(text)) >= wordCount,
	}
}

// StripSpeakerPrefix drops everything up to and including the first
// assistant-name marker, if present.
func StripSpeakerPrefix(text string) string {
	if i := strings.Index(text, speakerMarker); i != -1 {
		return strings.TrimSpace(text[i+len(speakerMarker):])
	}
	return text
}

// CompleteSentences keeps only the complete sentences of text, dropping any
// trailing fragment without terminal punctuation. Text containing no
// complete sentence at all is returned unchanged.
func CompleteSentences(text string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text
	}
	for i, s := range sentences {
		sentences[i] = strings.TrimSpace(s)
	}
	return strings.Join(sentences, " ")
}

// LimitWords keeps at most limit whitespace-delimited words, joined by
// single spaces.
func LimitWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) > limit {
		words = words[:limit]
	}
	return strings.Join(words, " ")
}

// TrimTrailingFragment cuts text back to its last sentence boundary so it
// never ends mid-sentence. Text with no boundary is returned unchanged.
func TrimTrailingFragment(text string) string {
	last := -1
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		last = loc[1]
	}
	if last == -1 {
		return text
	}
	return strings.TrimSpace(text[:last])
}
