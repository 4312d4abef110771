package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/models"
)

// CurriculumService serves read-only curriculum excerpts for prompt grounding.
// Implementations are immutable after construction and safe for concurrent use.
type CurriculumService interface {
	// Subjects lists the ingested subject names in deterministic order.
	Subjects() []string
	// RelevantExcerpts returns the page texts of the subject matched by hint,
	// one string per page, in page order. Truncation happens only on page
	// boundaries: the first page of a matched subject is always returned whole,
	// later pages only while the running total stays within maxChars (counted
	// in runes; the corpus is Arabic). An unmatched hint yields nil: grounding
	// is best-effort context, not a hard requirement.
	RelevantExcerpts(subjectHint string, maxChars int) []string
}

type curriculumServiceImpl struct {
	corpus   models.Corpus
	subjects []string
}

// LoadCurriculum reads and validates the corpus JSON produced by the ingest
// command. A missing file reports ErrCorpusNotFound, structural problems
// report ErrCorpusMalformed; both are meant to abort startup.
func LoadCurriculum(path string) (CurriculumService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (run the ingest command first)", ErrCorpusNotFound, path)
		}
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}

	var corpus models.Corpus
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusMalformed, err)
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: no subjects", ErrCorpusMalformed)
	}

	subjects := make([]string, 0, len(corpus))
	for subject, entry := range corpus {
		if strings.TrimSpace(subject) == "" {
			return nil, fmt.Errorf("%w: empty subject key", ErrCorpusMalformed)
		}
		if len(entry.Pages) == 0 {
			return nil, fmt.Errorf("%w: subject %q has no pages", ErrCorpusMalformed, subject)
		}
		sort.SliceStable(entry.Pages, func(i, j int) bool {
			return entry.Pages[i].PageNum < entry.Pages[j].PageNum
		})
		corpus[subject] = entry
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	log.Info().Int("subjects", len(subjects)).Str("path", path).Msg("curriculum corpus loaded")
	return &curriculumServiceImpl{corpus: corpus, subjects: subjects}, nil
}

func (s *curriculumServiceImpl) Subjects() []string {
	out := make([]string, len(s.subjects))
	copy(out, s.subjects)
	return out
}

func (s *curriculumServiceImpl) RelevantExcerpts(subjectHint string, maxChars int) []string {
	entry, ok := s.match(subjectHint)
	if !ok {
		return nil
	}

	var out []string
	total := 0
	for i, page := range entry.Pages {
		n := utf8.RuneCountInString(page.Text)
		if i > 0 && total+n > maxChars {
			break
		}
		out = append(out, page.Text)
		total += n
	}
	return out
}

// match resolves a subject hint to a corpus entry: exact key first, then
// case-insensitive substring containment in either direction. Subjects are
// scanned in sorted order so ambiguous hints resolve deterministically.
func (s *curriculumServiceImpl) match(hint string) (models.CurriculumEntry, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return models.CurriculumEntry{}, false
	}
	if entry, ok := s.corpus[hint]; ok {
		return entry, true
	}
	folded := strings.ToLower(hint)
	for _, subject := range s.subjects {
		fs := strings.ToLower(subject)
		if strings.Contains(fs, folded) || strings.Contains(folded, fs) {
			return s.corpus[subject], true
		}
	}
	return models.CurriculumEntry{}, false
}
