// Package similarity scores how closely two recommendation texts match.
// Scores drive merge decisions in the consolidation engine, so the function
// must be deterministic, symmetric, and reflexive.
package similarity

import (
	"regexp"
	"strings"
)

// Score weights. Jaccard measures strict token-set agreement, the overlap
// coefficient rewards one text containing the other's vocabulary, and the
// phrase bonus rewards exact multi-word runs appearing in both texts.
const (
	jaccardWeight = 0.5
	overlapWeight = 0.3
	phraseWeight  = 0.2

	// minPhraseTokens is the minimum run length considered for the phrase
	// bonus; single shared words are already covered by token overlap
	minPhraseTokens = 2
)

var nonWordRegex = regexp.MustCompile(`[^a-z0-9]+`)

// fillerWords are action verbs and glue words that recommendation titles
// use interchangeably ("Add model versioning" vs "Implement model versioning
// system"). They carry no signal about what is being recommended.
var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "as": true,
	"and": true, "or": true, "but": true,
	"is": true, "are": true, "be": true, "been": true,
	"this": true, "that": true, "it": true, "its": true,
	"add": true, "adding": true, "implement": true, "implementing": true,
	"create": true, "creating": true, "build": true, "building": true,
	"use": true, "using": true, "set": true, "setup": true,
	"should": true, "must": true, "consider": true, "ensure": true,
}

// Score computes a normalized similarity between two recommendation texts.
// The result is in [0,1], with Score(a, a) == 1.0 and Score(a, b) == Score(b, a)
// for all inputs. Two empty strings are considered identical.
func Score(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)

	// Both empty (or whitespace/punctuation only) means identical content.
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	fa := dropFiller(ta)
	fb := dropFiller(tb)

	// Texts made entirely of filler fall back to the raw tokens; dropping
	// everything would make any two such texts look identical.
	if len(fa) == 0 || len(fb) == 0 {
		fa, fb = ta, tb
	}

	// Identical token sequences are a perfect match regardless of length;
	// the phrase bonus below cannot reach 1.0 for single-token texts.
	if equalTokens(fa, fb) {
		return 1.0
	}

	score := jaccardWeight*tokenJaccard(fa, fb) +
		overlapWeight*overlapCoefficient(fa, fb) +
		phraseWeight*phraseOverlap(fa, fb)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// tokenize lowercases text and splits it into alphanumeric word tokens.
func tokenize(text string) []string {
	normalized := nonWordRegex.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Fields(normalized)
}

// dropFiller removes filler words while preserving token order.
func dropFiller(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !fillerWords[tok] {
			kept = append(kept, tok)
		}
	}
	return kept
}

// equalTokens reports whether two token sequences are identical.
func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

// tokenJaccard computes |A ∩ B| / |A ∪ B| over whole-word token sets.
func tokenJaccard(a, b []string) float64 {
	setA, setB := toSet(a), toSet(b)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// overlapCoefficient computes |A ∩ B| / min(|A|, |B|). It is 1.0 when the
// smaller text's vocabulary is fully contained in the larger one, which is
// the common shape of duplicate recommendations with different verbosity.
func overlapCoefficient(a, b []string) float64 {
	setA, setB := toSet(a), toSet(b)

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	if smaller == 0 {
		return 0.0
	}
	return float64(intersection) / float64(smaller)
}

// phraseOverlap returns the length of the longest common ordered token run
// divided by the length of the shorter token sequence. A shared multi-word
// phrase ("model versioning") counts even when the surrounding wording differs.
func phraseOverlap(a, b []string) float64 {
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	if shorter == 0 {
		return 0.0
	}

	longest := longestCommonRun(a, b)
	if longest < minPhraseTokens {
		return 0.0
	}
	return float64(longest) / float64(shorter)
}

// longestCommonRun finds the longest common contiguous token subsequence
// using the standard dynamic-programming formulation.
func longestCommonRun(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	longest := 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > longest {
					longest = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return longest
}
