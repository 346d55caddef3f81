// Package chunker splits extracted document text into an ordered sequence of
// speakable units bounded by a maximum length.
//
// Splitting happens on real sentence boundaries, not on every period: the
// detector keeps abbreviations ("Dr.", "e.g."), initials ("J. Smith"),
// decimal numbers ("3.14") and quoted sentence-final punctuation intact by
// combining lookback over the token preceding the terminator with lookahead
// to the first character of the following token. Sentences that still exceed
// the length budget are split at clause boundaries (comma, semicolon) and,
// failing that, at whitespace — never inside a word.
//
// The output ordering is the sole source of truth for narration order.
// Chunking is lossless: every unit is an exact substring of the input and
// consecutive units are separated only by whitespace, so the original text is
// reconstructed by re-joining units with the skipped separators.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLen is the default per-unit character budget. Chatterbox output
// quality degrades noticeably past roughly 300 characters of input, so the
// default sits safely below that while still covering almost all prose
// sentences in one piece.
const DefaultMaxLen = 280

// TextUnit is one chunk of document text selected for independent cleaning
// and synthesis.
type TextUnit struct {
	// Index is the 0-based sequence index; it defines playback order.
	Index int

	// Text is the unit's raw text, an exact substring of the document.
	Text string

	// Start and End are the rune-exact byte offsets of Text within the
	// original document, preserved so callers can verify lossless coverage.
	Start int
	End   int
}

// abbreviations lists lowercase tokens whose trailing period does not end a
// sentence. Matching is case-insensitive on the token without its period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "mt": true, "ft": true,
	"vs": true, "etc": true, "approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true, "pp": true, "ch": true,
	"inc": true, "ltd": true, "co": true, "corp": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
	"nov": true, "dec": true,
	"e.g": true, "i.e": true, "a.m": true, "p.m": true, "u.s": true, "u.k": true,
}

// closers are characters that may sit between a sentence terminator and the
// following whitespace, e.g. a closing quote or bracket.
const closers = `"')]}` + "’”"

// Chunk splits text into ordered TextUnits no longer than maxLen characters
// (counted in runes). maxLen values below 1 fall back to DefaultMaxLen.
// Empty or all-whitespace input yields an empty (nil) slice — it is not an
// error.
func Chunk(text string, maxLen int) []TextUnit {
	if maxLen < 1 {
		maxLen = DefaultMaxLen
	}

	var units []TextUnit
	for _, span := range sentenceSpans(text) {
		for _, sub := range splitOversize(text, span, maxLen) {
			raw := text[sub.start:sub.end]
			if strings.TrimSpace(raw) == "" {
				continue
			}
			units = append(units, TextUnit{
				Index: len(units),
				Text:  raw,
				Start: sub.start,
				End:   sub.end,
			})
		}
	}
	return units
}

// span is a half-open byte range [start, end) into the document.
type span struct {
	start, end int
}

// sentenceSpans returns the byte ranges of the sentences in text, trimmed of
// surrounding whitespace. Ranges cover everything except inter-sentence
// whitespace.
func sentenceSpans(text string) []span {
	var spans []span
	start := skipSpace(text, 0)

	for i := start; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '.' && r != '!' && r != '?' {
			i += size
			continue
		}

		end := i + size
		// Swallow a run of terminators ("...", "?!").
		for end < len(text) {
			nr, nsize := utf8.DecodeRuneInString(text[end:])
			if nr == '.' || nr == '!' || nr == '?' {
				end += nsize
				continue
			}
			break
		}
		// Swallow closing quotes/brackets after the terminator.
		for end < len(text) {
			nr, nsize := utf8.DecodeRuneInString(text[end:])
			if strings.ContainsRune(closers, nr) {
				end += nsize
				continue
			}
			break
		}

		if isBoundary(text, i, end) {
			spans = append(spans, span{start: start, end: end})
			start = skipSpace(text, end)
			i = start
			continue
		}
		i = end
	}

	if start < len(text) {
		if tail := trimSpan(text, span{start: start, end: len(text)}); tail.start < tail.end {
			spans = append(spans, tail)
		}
	}
	return spans
}

// isBoundary reports whether the terminator starting at byte offset term
// (with the full terminator+closer run ending at end) closes a sentence.
func isBoundary(text string, term, end int) bool {
	// Lookahead: a real boundary is followed by whitespace then an
	// upper-case letter, digit, or opening quote — or by end of text.
	if end < len(text) {
		nr, _ := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsSpace(nr) {
			return false
		}
		next := skipSpace(text, end)
		if next < len(text) {
			fr, _ := utf8.DecodeRuneInString(text[next:])
			if !unicode.IsUpper(fr) && !unicode.IsDigit(fr) && !strings.ContainsRune(`"'(`+"‘“", fr) {
				return false
			}
		}
	}

	r, _ := utf8.DecodeRuneInString(text[term:])
	if r != '.' {
		return true
	}

	// Lookback for the token preceding the period.
	tok := precedingToken(text, term)
	if tok == "" {
		return true
	}
	low := strings.ToLower(tok)
	if abbreviations[low] || abbreviations[strings.TrimPrefix(low, ".")] {
		return false
	}
	// Single upper-case letter: an initial, as in "J. Smith".
	if utf8.RuneCountInString(tok) == 1 {
		fr, _ := utf8.DecodeRuneInString(tok)
		if unicode.IsUpper(fr) {
			return false
		}
	}
	return true
}

// precedingToken returns the run of non-space characters immediately before
// byte offset i, excluding any trailing period already part of the token
// (so "e.g." yields "e.g" and "Smith" yields "Smith").
func precedingToken(text string, i int) string {
	end := i
	start := end
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsSpace(r) {
			break
		}
		start -= size
	}
	return text[start:end]
}

// splitOversize splits the sentence in s into pieces of at most maxLen runes,
// preferring clause boundaries, then whitespace. A single token longer than
// maxLen is emitted whole — units never break inside a word.
func splitOversize(text string, s span, maxLen int) []span {
	var out []span
	for s.start < s.end {
		s = trimSpan(text, s)
		if s.start >= s.end {
			break
		}
		if utf8.RuneCountInString(text[s.start:s.end]) <= maxLen {
			out = append(out, s)
			break
		}

		cut := clauseCut(text, s, maxLen)
		if cut < 0 {
			cut = whitespaceCut(text, s, maxLen)
		}
		if cut < 0 {
			// One unbreakable token longer than the budget: take it whole.
			cut = nextSpaceOrEnd(text, s)
		}
		out = append(out, trimSpan(text, span{start: s.start, end: cut}))
		s.start = skipSpace(text, cut)
	}
	return out
}

// clauseCut returns the byte offset just past the last ',' or ';' that is
// followed by whitespace and lies within the first maxLen runes of the span,
// or -1 if there is none.
func clauseCut(text string, s span, maxLen int) int {
	best := -1
	runes := 0
	for i := s.start; i < s.end; {
		r, size := utf8.DecodeRuneInString(text[i:])
		runes++
		if runes > maxLen {
			break
		}
		if (r == ',' || r == ';') && i+size < s.end {
			nr, _ := utf8.DecodeRuneInString(text[i+size:])
			if unicode.IsSpace(nr) {
				best = i + size
			}
		}
		i += size
	}
	// A cut right at the start produces an empty piece; reject it.
	if best <= s.start {
		return -1
	}
	return best
}

// whitespaceCut returns the byte offset of the last whitespace run that
// starts within the first maxLen runes of the span, or -1 if there is none.
func whitespaceCut(text string, s span, maxLen int) int {
	best := -1
	runes := 0
	for i := s.start; i < s.end; {
		r, size := utf8.DecodeRuneInString(text[i:])
		runes++
		if runes > maxLen {
			break
		}
		if unicode.IsSpace(r) && i > s.start {
			best = i
		}
		i += size
	}
	if best <= s.start {
		return -1
	}
	return best
}

// nextSpaceOrEnd returns the byte offset of the first whitespace rune after
// the span start, or the span end if the token runs to the end.
func nextSpaceOrEnd(text string, s span) int {
	for i := s.start; i < s.end; {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && i > s.start {
			return i
		}
		i += size
	}
	return s.end
}

// skipSpace returns the offset of the first non-space rune at or after i.
func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

// trimSpan shrinks s so it covers no leading or trailing whitespace.
func trimSpan(text string, s span) span {
	s.start = skipSpace(text, s.start)
	for s.end > s.start {
		r, size := utf8.DecodeLastRuneInString(text[:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.end -= size
	}
	return s
}
