package scoring

import (
	"regexp"
	"strings"

	"webscout/internal/config"
)

// Features is the heuristic feature record extracted from raw text.
// All fields derive from the text alone plus the source's static
// authority weight; extraction is deterministic and makes no external
// calls.
type Features struct {
	WordCount    int
	TitleLength  int
	HasNumbers   bool
	HasLinks     bool
	QualityCount int
	NoveltyCount int
	JunkCount    int
	Readability  float64
	Depth        float64
	Authority    float64
}

// Empty reports whether the record came from empty content. Downstream
// stages treat an empty record as unscoreable rather than erroring.
func (f Features) Empty() bool {
	return f.WordCount == 0
}

var (
	numberExpr = regexp.MustCompile(`\d`)
	linkExpr   = regexp.MustCompile(`https?://`)
	// Recent-date markers used by the novelty score.
	recentDateExpr = regexp.MustCompile(`\b(today|yesterday|this week|202\d|203\d)\b`)
)

// Target norms for the readability estimate. Deviation from these is
// penalized, so very long sentences and very long words both lower it.
const (
	targetSentenceLen = 18.0
	targetWordLen     = 5.0
)

// Extractor turns raw text into Features using the configured
// indicator vocabularies.
type Extractor struct {
	quality      []string
	novelty      []string
	junk         []string
	depthWordCap int
}

// NewExtractor builds an extractor from the vocabulary config. Terms
// are matched case-insensitively.
func NewExtractor(vocab config.VocabularyConfig, depthWordCap int) *Extractor {
	if depthWordCap <= 0 {
		depthWordCap = 2000
	}
	return &Extractor{
		quality:      lowerAll(vocab.Quality),
		novelty:      lowerAll(vocab.Novelty),
		junk:         lowerAll(vocab.Junk),
		depthWordCap: depthWordCap,
	}
}

// Extract computes the feature record for one document.
func (e *Extractor) Extract(title, content string, authority float64) Features {
	content = strings.TrimSpace(content)
	if content == "" {
		return Features{}
	}

	lower := strings.ToLower(content)
	words := strings.Fields(content)

	f := Features{
		WordCount:    len(words),
		TitleLength:  len(title),
		HasNumbers:   numberExpr.MatchString(content),
		HasLinks:     linkExpr.MatchString(content),
		QualityCount: countTerms(lower, e.quality),
		NoveltyCount: countTerms(lower, e.novelty),
		JunkCount:    countTerms(lower, e.junk),
		Readability:  readability(content, words),
		Authority:    authority,
	}

	depth := float64(len(words)) / float64(e.depthWordCap)
	if depth > 1 {
		depth = 1
	}
	f.Depth = depth

	return f
}

// HasRecentMarkers reports whether the content carries recent-date
// markers; consumed by the novelty score.
func HasRecentMarkers(content string) bool {
	return recentDateExpr.MatchString(strings.ToLower(content))
}

func countTerms(lower string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += strings.Count(lower, t)
	}
	return n
}

// readability favors moderate sentence and word length, penalizing
// deviation from the target norms, normalized to [0,1].
func readability(content string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	sentences := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	nonEmpty := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		nonEmpty = 1
	}

	avgSentence := float64(len(words)) / float64(nonEmpty)

	var chars int
	for _, w := range words {
		chars += len(w)
	}
	avgWord := float64(chars) / float64(len(words))

	sentencePenalty := absf(avgSentence-targetSentenceLen) / targetSentenceLen
	wordPenalty := absf(avgWord-targetWordLen) / targetWordLen

	score := 1.0 - (sentencePenalty+wordPenalty)/2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
