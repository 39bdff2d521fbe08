// Package chunker splits document content into overlapping pieces sized for
// embedding and retrieval.
package chunker

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Config contains chunking parameters.
type Config struct {
	// ChunkSize is the target size of each chunk in characters.
	// Default: 1000
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the number of characters repeated from the end of one
	// chunk at the start of the next. Default: 200
	ChunkOverlap int `yaml:"chunk_overlap"`

	// MinChunkSize is the minimum chunk size to keep on its own. Smaller
	// fragments are folded into the preceding chunk. Default: 100
	MinChunkSize int `yaml:"min_chunk_size"`
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinChunkSize: 100,
	}
}

// DefaultSeparators is the split hierarchy, largest semantic unit first.
// The first separator present in the text wins; oversized pieces descend to
// the next level, down to a character split as the last resort.
var DefaultSeparators = []string{
	"\n\n", // Paragraph break
	"\n",   // Line break
	". ",   // Sentence end
	"? ",   // Question end
	"! ",   // Exclamation end
	"; ",   // Semicolon
	": ",   // Colon
	", ",   // Comma
	" ",    // Space
	"",     // Character (last resort)
}

// MarkdownSeparators prefer heading boundaries for Markdown documents.
var MarkdownSeparators = []string{
	"\n## ",   // H2 heading
	"\n### ",  // H3 heading
	"\n#### ", // H4 heading
	"\n\n",    // Paragraph break
	"\n",      // Line break
	". ",      // Sentence end
	" ",       // Space
	"",        // Character
}

// RecursiveSplitter splits text on a separator hierarchy: it tries the
// largest boundary first and descends to finer ones only for pieces that
// still exceed the target size.
type RecursiveSplitter struct {
	config     Config
	separators []string
}

// NewRecursiveSplitter creates a splitter with the default hierarchy.
func NewRecursiveSplitter(cfg Config) *RecursiveSplitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultConfig().ChunkOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = DefaultConfig().MinChunkSize
	}
	if cfg.MinChunkSize > cfg.ChunkSize {
		cfg.MinChunkSize = cfg.ChunkSize
	}

	return &RecursiveSplitter{
		config:     cfg,
		separators: DefaultSeparators,
	}
}

// NewMarkdownSplitter creates a splitter that prefers Markdown heading
// boundaries.
func NewMarkdownSplitter(cfg Config) *RecursiveSplitter {
	s := NewRecursiveSplitter(cfg)
	s.separators = MarkdownSeparators
	return s
}

// ForFile returns a splitter tuned for the file type: Markdown files break
// at headings, everything else uses the default hierarchy.
func ForFile(filename string, cfg Config) *RecursiveSplitter {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return NewMarkdownSplitter(cfg)
	}
	return NewRecursiveSplitter(cfg)
}

// WithSeparators sets a custom separator hierarchy.
func (s *RecursiveSplitter) WithSeparators(seps []string) *RecursiveSplitter {
	s.separators = seps
	return s
}

// Name returns the splitter name for logging.
func (s *RecursiveSplitter) Name() string {
	return "recursive_character"
}

// Split breaks content into ordered chunks. Whitespace-only content yields
// nil. Every chunk after the first starts with the configured overlap taken
// from its predecessor.
func (s *RecursiveSplitter) Split(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	chunks := s.splitText(content, s.separators)
	chunks = s.foldSmall(chunks)
	return s.withOverlap(chunks)
}

// splitText recursively splits text using the separator hierarchy and packs
// the pieces into chunks of at most ChunkSize characters.
func (s *RecursiveSplitter) splitText(text string, separators []string) []string {
	if text == "" {
		return nil
	}

	// First separator that occurs in the text wins; "" always matches.
	separator := ""
	for _, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			splits = append(splits, string(r))
		}
	} else {
		splits = strings.Split(text, separator)
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() == 0 {
			return
		}
		content := strings.TrimSpace(current.String())
		current.Reset()
		if content != "" {
			chunks = append(chunks, content)
		}
	}

	for i, split := range splits {
		// Keep the separator at the end of each piece but the last so
		// sentence and paragraph boundaries survive in the chunk text.
		piece := split
		if separator != "" && i < len(splits)-1 {
			piece = split + separator
		}

		if current.Len() > 0 && current.Len()+len(piece) > s.config.ChunkSize {
			flush()
		}

		// A piece that alone exceeds the target descends one separator level.
		if len(piece) > s.config.ChunkSize && len(separators) > 1 {
			flush()
			chunks = append(chunks, s.splitText(piece, separators[1:])...)
			continue
		}

		current.WriteString(piece)
	}
	flush()

	return chunks
}

// foldSmall merges fragments below MinChunkSize into their predecessor so a
// trailing sentence does not become a chunk of its own. A small first chunk
// stays: short documents still produce one chunk.
func (s *RecursiveSplitter) foldSmall(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk) < s.config.MinChunkSize && len(out) > 0 {
			out[len(out)-1] += " " + chunk
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// withOverlap prefixes every chunk after the first with the tail of its
// predecessor. The overlap start is nudged forward to a rune boundary so
// multi-byte text never splits mid-character.
func (s *RecursiveSplitter) withOverlap(chunks []string) []string {
	if len(chunks) <= 1 || s.config.ChunkOverlap <= 0 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		overlap := s.config.ChunkOverlap
		if overlap > len(prev) {
			overlap = len(prev)
		}
		start := len(prev) - overlap
		for start < len(prev) && !utf8.RuneStart(prev[start]) {
			start++
		}
		out[i] = prev[start:] + chunks[i]
	}
	return out
}
