package chunker

import (
	"fmt"
	"strings"
)

// DefaultBudget is the chunk size in characters used when none is given.
const DefaultBudget = 1000

// Piece is one tagged unit of extracted content. A piece carries either Text or Rows.
type Piece struct {
	Section string
	Text    string
	Rows    [][]string
}

// Chunk is one bounded slice of source text sent as a single LLM request, together
// with the tables encountered while it was accumulated.
type Chunk struct {
	Index    int
	Text     string
	Sections []string
	Tables   [][][]string
}

// Line formats a piece the way it appears in chunk text: "[<section>] <text>" when
// the section is known.
func Line(p Piece) (line string) {
	if p.Section == "" {
		line = p.Text
		return line
	}
	line = fmt.Sprintf("[%s] %s", p.Section, p.Text)
	return line
}

// Split groups pieces into chunks of roughly budget characters. A chunk is flushed
// once it reaches the budget and the next piece opens a different section. A single
// section that runs past twice the budget is split anyway.
func Split(pieces []Piece, budget int) (chunks []Chunk) {
	if budget <= 0 {
		budget = DefaultBudget
	}

	var current *Chunk
	var lines []string
	size := 0
	lastSection := ""

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(lines, "\n")
		current.Index = len(chunks)
		chunks = append(chunks, *current)
		current = nil
		lines = nil
		size = 0
	}

	for _, p := range pieces {
		if current != nil && size >= budget && (p.Section != lastSection || size >= 2*budget) {
			flush()
		}
		if current == nil {
			current = &Chunk{}
		}

		if p.Rows != nil {
			current.Tables = append(current.Tables, p.Rows)
			continue
		}

		line := Line(p)
		if len(lines) > 0 {
			size++
		}
		lines = append(lines, line)
		size += len(line)

		if p.Section != "" && !contains(current.Sections, p.Section) {
			current.Sections = append(current.Sections, p.Section)
		}
		lastSection = p.Section
	}
	flush()

	return chunks
}

// Texts returns the text of each chunk in order.
func Texts(chunks []Chunk) (texts []string) {
	texts = make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	return texts
}

func contains(list []string, s string) (found bool) {
	for _, item := range list {
		if item == s {
			found = true
			return found
		}
	}
	return found
}
