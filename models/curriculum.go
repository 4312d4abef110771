package models

// CurriculumPage is one page of extracted curriculum text.
type CurriculumPage struct {
	PageNum int    `json:"page_num"`
	Text    string `json:"text"`
}

// CurriculumEntry holds the extracted pages of one ingested subject.
// Entries are created once at ingestion time and read-only afterwards.
type CurriculumEntry struct {
	SourceFile string           `json:"source_file"`
	Pages      []CurriculumPage `json:"pages"`
}

// Corpus is the on-disk curriculum format: subject name -> extracted pages.
type Corpus map[string]CurriculumEntry
