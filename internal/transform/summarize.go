package transform

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
)

// SummaryResult is the output of generate_summary.
type SummaryResult struct {
	Summary      string  `json:"summary"`
	OriginalSize int     `json:"original_size"`
	SummarySize  int     `json:"summary_size"`
	Ratio        float64 `json:"ratio"`
}

// GenerateSummary produces an extractive summary: sentences are scored by
// position, length, and inverse word frequency, then the top scorers are
// kept in original order until the target size is reached. options:
// target_ratio (original/summary size, default 3).
func GenerateSummary(_ context.Context, data []byte, options map[string]any) (any, error) {
	content := string(data)
	targetRatio := floatOption(options, "target_ratio", 3)
	if targetRatio < 1 {
		targetRatio = 1
	}

	sentences := splitIntoSentences(content)
	if len(sentences) == 0 {
		return SummaryResult{Summary: content, OriginalSize: len(content), SummarySize: len(content), Ratio: 1}, nil
	}

	scores := scoreSentences(sentences)
	targetLength := int(float64(len(content)) / targetRatio)
	summary := strings.Join(selectSentences(sentences, scores, targetLength), " ")

	ratio := 1.0
	if len(summary) > 0 {
		ratio = float64(len(content)) / float64(len(summary))
	}
	return SummaryResult{
		Summary:      summary,
		OriginalSize: len(content),
		SummarySize:  len(summary),
		Ratio:        ratio,
	}, nil
}

// CompressResult is the output of compress_text.
type CompressResult struct {
	Output         string  `json:"output"`
	OriginalSize   int     `json:"original_size"`
	CompressedSize int     `json:"compressed_size"`
	Ratio          float64 `json:"ratio"`
}

// CompressText normalizes whitespace (runs of spaces and tabs collapse to
// one space, runs of blank lines to one) and drops consecutive duplicate
// lines. With a target_ratio option above 1, the normalized text is further
// reduced extractively.
func CompressText(ctx context.Context, data []byte, options map[string]any) (any, error) {
	original := string(data)

	var lines []string
	prev := ""
	for i, line := range strings.Split(original, "\n") {
		line = collapseSpaces(strings.TrimRight(line, " \t"))
		if line == "" && prev == "" && i > 0 {
			continue
		}
		if line != "" && line == prev {
			continue
		}
		lines = append(lines, line)
		prev = line
	}
	output := strings.Join(lines, "\n")

	if ratio := floatOption(options, "target_ratio", 1); ratio > 1 {
		summarized, err := GenerateSummary(ctx, []byte(output), map[string]any{"target_ratio": ratio})
		if err != nil {
			return nil, err
		}
		output = summarized.(SummaryResult).Summary
	}

	r := 1.0
	if len(output) > 0 {
		r = float64(len(original)) / float64(len(output))
	}
	return CompressResult{
		Output:         output,
		OriginalSize:   len(original),
		CompressedSize: len(output),
		Ratio:          r,
	}, nil
}

func collapseSpaces(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

const minSentenceLen = 10

func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if len(sentence) > minSentenceLen {
				sentences = append(sentences, sentence)
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		if sentence := strings.TrimSpace(current.String()); sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// scoreSentences weighs position (earlier is better), length (peaking near
// twenty words), and inverse word frequency.
func scoreSentences(sentences []string) []float64 {
	freq := wordFrequency(sentences)
	scores := make([]float64, len(sentences))
	for i, sentence := range sentences {
		score := (1.0 / (float64(i) + 1.0)) * 0.3

		words := strings.Fields(sentence)
		lengthScore := math.Min(float64(len(words))/20.0, 1.0)
		if len(words) > 20 {
			lengthScore = math.Max(1.0-(float64(len(words))-20.0)/50.0, 0.1)
		}
		score += lengthScore * 0.4

		freqScore := 0.0
		for _, word := range words {
			word = normalizeWord(word)
			if f, ok := freq[word]; ok && f > 1 {
				freqScore += 1.0 / float64(f)
			}
		}
		if len(words) > 0 {
			freqScore /= float64(len(words))
		}
		score += freqScore * 0.3

		scores[i] = score
	}
	return scores
}

func wordFrequency(sentences []string) map[string]int {
	freq := make(map[string]int)
	for _, sentence := range sentences {
		for _, word := range strings.Fields(sentence) {
			word = normalizeWord(word)
			if len(word) > 2 {
				freq[word]++
			}
		}
	}
	return freq
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

// selectSentences keeps the highest-scoring sentences that fit the target
// length, re-sorted into original order for coherence. A too-small target
// still yields the single best sentence.
func selectSentences(sentences []string, scores []float64, targetLength int) []string {
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	var picked []int
	currentLength := 0
	for _, idx := range order {
		if currentLength+len(sentences[idx]) <= targetLength {
			picked = append(picked, idx)
			currentLength += len(sentences[idx]) + 1
		}
	}
	if len(picked) == 0 && len(sentences) > 0 {
		picked = append(picked, order[0])
	}
	sort.Ints(picked)

	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = sentences[idx]
	}
	return out
}
