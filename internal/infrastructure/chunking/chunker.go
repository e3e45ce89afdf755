package chunking

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
)

// overlapSeparator marks where stitched trailing context from the previous
// chunk ends and the chunk's own content begins.
const overlapSeparator = "\n..."

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`([.!?])\s+`)
)

type Chunker struct {
	ChunkSize int
	Overlap   int
}

func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{ChunkSize: chunkSize, Overlap: overlap}
}

// Chunk splits extracted text into bounded, overlap-linked chunks.
// Paragraphs are greedily packed up to ChunkSize; a paragraph that alone
// exceeds ChunkSize is split on sentence boundaries with the same packing
// rule. Chunk ids are assigned in emission order, so for a fixed input and
// configuration the ids and content are stable across runs.
func (c *Chunker) Chunk(text, sourceFile string, metadata domain.ChunkMetadata) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if metadata == nil {
		metadata = domain.ChunkMetadata{}
	}

	var chunks []domain.Chunk
	var current strings.Builder
	index := 0

	emit := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Content:    content,
			ChunkID:    domain.ChunkID(sourceFile, index),
			SourceFile: sourceFile,
			ChunkIndex: index,
			Metadata:   metadata,
		})
		index++
	}

	for _, para := range splitParagraphs(text) {
		if current.Len()+len(para) <= c.ChunkSize {
			current.WriteString(para)
			current.WriteString("\n\n")
			continue
		}

		emit(current.String())
		current.Reset()

		if len(para) > c.ChunkSize {
			for _, piece := range c.splitLargeParagraph(para) {
				emit(piece)
			}
		} else {
			current.WriteString(para)
			current.WriteString("\n\n")
		}
	}
	emit(current.String())

	chunks = c.stitchOverlap(chunks)

	slog.Debug("chunked document", "source_file", sourceFile, "chunks", len(chunks))
	return chunks
}

func splitParagraphs(text string) []string {
	raw := paragraphSplit.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitLargeParagraph splits on sentence boundaries (.!? followed by
// whitespace) and greedily packs the sentences up to ChunkSize.
func (c *Chunker) splitLargeParagraph(paragraph string) []string {
	sentences := splitSentences(paragraph)

	var pieces []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len()+len(sentence) <= c.ChunkSize {
			current.WriteString(sentence)
			current.WriteString(" ")
			continue
		}
		if piece := strings.TrimSpace(current.String()); piece != "" {
			pieces = append(pieces, piece)
		}
		current.Reset()
		current.WriteString(sentence)
		current.WriteString(" ")
	}
	if piece := strings.TrimSpace(current.String()); piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}

// splitSentences keeps the terminating punctuation with its sentence.
func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	raw := strings.Split(marked, "\x00")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stitchOverlap prepends the trailing Overlap characters of each chunk's
// final content to its successor, separated by the overlap marker. The
// source of the overlap is the predecessor's pre-stitch content, so stitched
// prefixes never compound across chunks.
func (c *Chunker) stitchOverlap(chunks []domain.Chunk) []domain.Chunk {
	if len(chunks) <= 1 || c.Overlap == 0 {
		return chunks
	}

	prev := chunks[0].Content
	for i := 1; i < len(chunks); i++ {
		overlap := prev
		if runes := []rune(prev); len(runes) > c.Overlap {
			overlap = string(runes[len(runes)-c.Overlap:])
		}
		prev = chunks[i].Content
		chunks[i].Content = overlap + overlapSeparator + chunks[i].Content
	}
	return chunks
}
