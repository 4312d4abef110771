package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/itsm0000/al-muallim-bot/models"
)

func init() {
	// Load .env file from the current directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on environment variables")
	}
	if key := os.Getenv("UNIDOC_LICENSE_KEY"); key != "" {
		if err := license.SetMeteredKey(key); err != nil {
			log.Error().Err(err).Msg("failed to set Unidoc license key, PDF extraction will fail")
		}
	}
}

// ExtractCurriculumPages reads a curriculum PDF and returns one CurriculumPage
// per PDF page, skipping pages with no extractable text. Callers that need
// bounded page sizes run the result through SplitOversizedPages.
func ExtractCurriculumPages(path string) ([]models.CurriculumPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]models.CurriculumPage, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			log.Warn().Int("page", i).Str("pdf", path).Msg("no text found on page")
			continue
		}
		pages = append(pages, models.CurriculumPage{PageNum: i, Text: text})
	}

	log.Info().Int("pages", len(pages)).Str("pdf", path).Msg("extracted curriculum pages")
	return pages, nil
}

// SplitOversizedPages breaks pages longer than maxRunes into consecutive
// sub-pages, renumbering everything so page order stays strictly increasing.
func SplitOversizedPages(pages []models.CurriculumPage, maxRunes int) ([]models.CurriculumPage, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxRunes),
		textsplitter.WithChunkOverlap(0),
	)

	out := make([]models.CurriculumPage, 0, len(pages))
	num := 0
	for _, page := range pages {
		num++
		if len([]rune(page.Text)) <= maxRunes {
			out = append(out, models.CurriculumPage{PageNum: num, Text: page.Text})
			continue
		}
		chunks, err := splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting page %d: %w", page.PageNum, err)
		}
		log.Debug().Int("page", page.PageNum).Int("chunks", len(chunks)).Msg("split oversized page")
		for i, chunk := range chunks {
			if i > 0 {
				num++
			}
			out = append(out, models.CurriculumPage{PageNum: num, Text: chunk})
		}
	}
	return out, nil
}
