package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want 1000", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 200 {
		t.Errorf("ChunkOverlap = %d, want 200", cfg.ChunkOverlap)
	}
	if cfg.MinChunkSize != 100 {
		t.Errorf("MinChunkSize = %d, want 100", cfg.MinChunkSize)
	}
}

func TestNewRecursiveSplitterGuardrails(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantSize    int
		wantOverlap int
		wantMin     int
	}{
		{
			name:        "defaults when zero",
			cfg:         Config{},
			wantSize:    1000,
			wantOverlap: 200,
			wantMin:     100,
		},
		{
			name:        "custom values kept",
			cfg:         Config{ChunkSize: 500, ChunkOverlap: 100, MinChunkSize: 50},
			wantSize:    500,
			wantOverlap: 100,
			wantMin:     50,
		},
		{
			name:        "overlap at least chunk size is clamped",
			cfg:         Config{ChunkSize: 100, ChunkOverlap: 150, MinChunkSize: 10},
			wantSize:    100,
			wantOverlap: 20, // chunk_size / 5
			wantMin:     10,
		},
		{
			name:        "min above chunk size is clamped",
			cfg:         Config{ChunkSize: 50, ChunkOverlap: 5, MinChunkSize: 500},
			wantSize:    50,
			wantOverlap: 5,
			wantMin:     50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRecursiveSplitter(tt.cfg)
			if s.config.ChunkSize != tt.wantSize {
				t.Errorf("ChunkSize = %d, want %d", s.config.ChunkSize, tt.wantSize)
			}
			if s.config.ChunkOverlap != tt.wantOverlap {
				t.Errorf("ChunkOverlap = %d, want %d", s.config.ChunkOverlap, tt.wantOverlap)
			}
			if s.config.MinChunkSize != tt.wantMin {
				t.Errorf("MinChunkSize = %d, want %d", s.config.MinChunkSize, tt.wantMin)
			}
		})
	}
}

func TestSplitEmptyContent(t *testing.T) {
	s := NewRecursiveSplitter(DefaultConfig())

	if got := s.Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n\n\t  "); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortContent(t *testing.T) {
	s := NewRecursiveSplitter(DefaultConfig())

	got := s.Split("hi")
	if len(got) != 1 || got[0] != "hi" {
		t.Errorf("Split(short) = %v, want [hi]", got)
	}

	got = s.Split("This is a small piece of text.")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0] != "This is a small piece of text." {
		t.Errorf("short content must survive intact, got %q", got[0])
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 32, ChunkOverlap: 10, MinChunkSize: 5})

	first := strings.Repeat("A", 30)
	second := strings.Repeat("B", 30)
	got := s.Split(first + "\n\n" + second)

	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[0] != first {
		t.Errorf("chunk 0 = %q, want the first paragraph", got[0])
	}
	want := strings.Repeat("A", 10) + second
	if got[1] != want {
		t.Errorf("chunk 1 = %q, want overlap prefix + second paragraph %q", got[1], want)
	}
}

func TestSplitFallsBackToSentences(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 40, ChunkOverlap: 0, MinChunkSize: 10})

	content := "First sentence here. Second sentence here. Third sentence here."
	got := s.Split(content)

	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %v", got)
	}
	for i, chunk := range got {
		if len(chunk) > 40+10+1 {
			t.Errorf("chunk %d exceeds bound: %d bytes", i, len(chunk))
		}
	}
}

func TestSplitFoldsTrailingFragment(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 40, ChunkOverlap: 0, MinChunkSize: 15})

	content := strings.Repeat("A", 35) + ". tiny"
	got := s.Split(content)

	if len(got) != 1 {
		t.Fatalf("expected the fragment folded into one chunk, got %v", got)
	}
	if !strings.HasSuffix(got[0], "tiny") {
		t.Errorf("fragment content lost: %q", got[0])
	}
}

func TestSplitSingleLongWord(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 20, ChunkOverlap: 0, MinChunkSize: 5})

	got := s.Split("supercalifragilisticexpialidocious")
	if len(got) < 2 {
		t.Fatalf("expected a character-level split, got %v", got)
	}
	var joined strings.Builder
	for i, chunk := range got {
		if len(chunk) > 20 {
			t.Errorf("chunk %d exceeds target: %d bytes", i, len(chunk))
		}
		joined.WriteString(chunk)
	}
	if joined.String() != "supercalifragilisticexpialidocious" {
		t.Errorf("character split lost content: %q", joined.String())
	}
}

func TestSplitLongTextBounded(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 100, ChunkOverlap: 20, MinChunkSize: 10})

	content := make([]byte, 10000)
	for i := range content {
		content[i] = 'a' + byte(i%26)
		if i > 0 && i%80 == 0 {
			content[i] = '\n'
		}
	}

	got := s.Split(string(content))
	if len(got) < 50 {
		t.Fatalf("expected many chunks for 10KB, got %d", len(got))
	}
	for i, chunk := range got {
		// Bound: target + overlap prefix + one folded fragment.
		if len(chunk) > 100+20+10+1 {
			t.Errorf("chunk %d too large: %d bytes", i, len(chunk))
		}
		if chunk == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitKeepsRuneBoundaries(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 64, ChunkOverlap: 11, MinChunkSize: 5})

	content := strings.TrimSpace(strings.Repeat("héhé ", 50))
	got := s.Split(content)

	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d contains a split rune: %q", i, chunk)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := NewRecursiveSplitter(Config{ChunkSize: 50, ChunkOverlap: 10, MinChunkSize: 10})
	content := "Les tâches du projet avancent. La revue est prévue demain. Le déploiement suivra la semaine prochaine."

	first := s.Split(content)
	second := s.Split(content)

	if len(first) != len(second) {
		t.Fatalf("nondeterministic chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestForFile(t *testing.T) {
	cfg := DefaultConfig()

	md := ForFile("notes.md", cfg)
	if md.separators[0] != "\n## " {
		t.Errorf("markdown splitter first separator = %q, want heading", md.separators[0])
	}
	md = ForFile("README.MARKDOWN", cfg)
	if md.separators[0] != "\n## " {
		t.Error("extension match must be case-insensitive")
	}

	txt := ForFile("notes.txt", cfg)
	if txt.separators[0] != "\n\n" {
		t.Errorf("plain splitter first separator = %q, want paragraph", txt.separators[0])
	}
}

func TestMarkdownSplitterBreaksAtHeadings(t *testing.T) {
	s := NewMarkdownSplitter(Config{ChunkSize: 60, ChunkOverlap: 0, MinChunkSize: 10})

	content := "# Main Title\n\nIntroduction paragraph here.\n\n## Section One\n\nContent for section one.\n\n## Section Two\n\nContent for section two."
	got := s.Split(content)

	if len(got) < 2 {
		t.Fatalf("expected heading-bounded chunks, got %v", got)
	}
	// Heading boundaries keep each section's body in a single chunk.
	found := false
	for _, chunk := range got {
		if strings.Contains(chunk, "Content for section two") {
			found = true
			if strings.Contains(chunk, "Content for section one") {
				t.Errorf("sections merged across a heading: %q", chunk)
			}
		}
	}
	if !found {
		t.Errorf("section content lost: %v", got)
	}
}

func TestWithSeparators(t *testing.T) {
	s := NewRecursiveSplitter(DefaultConfig()).WithSeparators([]string{"|", ""})

	got := s.Split("a|b|c")
	if len(got) != 1 || got[0] != "a|b|c" {
		t.Errorf("unexpected chunks: %v", got)
	}
}

func TestName(t *testing.T) {
	if got := NewRecursiveSplitter(DefaultConfig()).Name(); got != "recursive_character" {
		t.Errorf("Name() = %q", got)
	}
}

func BenchmarkSplitLargeText(b *testing.B) {
	s := NewRecursiveSplitter(DefaultConfig())
	content := make([]byte, 100000)
	for i := range content {
		content[i] = 'a' + byte(i%26)
		if i > 0 && i%100 == 0 {
			content[i] = '\n'
		}
	}
	text := string(content)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Split(text)
	}
}
