package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/itsm0000/al-muallim-bot/models"
	"github.com/itsm0000/al-muallim-bot/services"
)

// ingest builds the curriculum corpus JSON from textbook PDFs.
//
// Usage:
//
//	ingest -out curriculum_data/curriculum.json "فيزياء=books/physics.pdf" "كيمياء=books/chemistry.pdf"
//
// Each argument is subject=path; the subject name is what teachers will type
// to select the lesson context.
func main() {
	out := flag.String("out", "curriculum_data/curriculum.json", "output corpus file")
	maxRunes := flag.Int("max-page-runes", 6000, "split pages longer than this many runes")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [-out file] subject=path.pdf [subject=path.pdf ...]")
		os.Exit(2)
	}

	corpus := models.Corpus{}
	for _, arg := range flag.Args() {
		subject, path, ok := strings.Cut(arg, "=")
		if !ok || subject == "" || path == "" {
			log.Fatal().Str("arg", arg).Msg("FATAL: arguments must be subject=path.pdf")
		}

		pages, err := services.ExtractCurriculumPages(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("FATAL: extraction failed")
		}
		pages, err = services.SplitOversizedPages(pages, *maxRunes)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("FATAL: splitting pages failed")
		}

		corpus[subject] = models.CurriculumEntry{
			SourceFile: filepath.Base(path),
			Pages:      pages,
		}
		log.Info().Str("subject", subject).Int("pages", len(pages)).Msg("Ingested")
	}

	if err := writeCorpus(*out, corpus); err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("FATAL: writing corpus failed")
	}
	log.Info().Str("path", *out).Int("subjects", len(corpus)).Msg("Corpus written")
}

// writeCorpus writes via a temp file and rename so watchers never observe a
// half-written corpus.
func writeCorpus(path string, corpus models.Corpus) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".curriculum-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(corpus); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
