package models

import "unicode/utf8"

// RecordVersion selects the ClassifiedDocument variant.
type RecordVersion int

const (
	// RecordV1 emits entity text and the raw text length.
	RecordV1 RecordVersion = 1
	// RecordV2 omits entity text and adds language confidence and content word count.
	RecordV2 RecordVersion = 2
)

// DocumentMeta is the metadata shared by every chunk of one document.
type DocumentMeta struct {
	DocumentID       string
	FileName         string
	FileType         string
	FileURI          string
	Language         Language
	ContentWordCount int
}

// ClassifiedDocument is the per-chunk working document. The filter, updater and merger
// only use these methods, so they work with every variant.
type ClassifiedDocument interface {
	DocRaw() string
	PIIHits() []EntityHit
	SetPIIHits(hits []EntityHit)
	Language() Language
	Scores() *RiskScores
	Detection() *DetectionSummary
	Record() *ClassificationRecord
}

// NewClassifiedDocument returns the variant for version; unknown versions get RecordV1.
func NewClassifiedDocument(version RecordVersion, meta DocumentMeta, raw string) ClassifiedDocument {
	base := classifiedBase{meta: meta, raw: raw}
	if version == RecordV2 {
		return &ClassificationDocV2{classifiedBase: base}
	}
	return &ClassificationDoc{classifiedBase: base}
}

type classifiedBase struct {
	meta      DocumentMeta
	raw       string
	hits      []EntityHit
	scores    RiskScores
	detection DetectionSummary
}

func (d *classifiedBase) DocRaw() string               { return d.raw }
func (d *classifiedBase) PIIHits() []EntityHit         { return d.hits }
func (d *classifiedBase) SetPIIHits(hits []EntityHit)  { d.hits = hits }
func (d *classifiedBase) Language() Language           { return d.meta.Language }
func (d *classifiedBase) Scores() *RiskScores          { return &d.scores }
func (d *classifiedBase) Detection() *DetectionSummary { return &d.detection }

func (d *classifiedBase) record(version RecordVersion) *ClassificationRecord {
	rec := &ClassificationRecord{
		DocumentID:       d.meta.DocumentID,
		FileName:         d.meta.FileName,
		FileType:         d.meta.FileType,
		FileURI:          d.meta.FileURI,
		Language:         d.meta.Language.Code,
		Entities:         make([]EntityHit, len(d.hits)),
		RiskScores:       d.scores,
		DetectionSummary: d.detection,
		RecordVersion:    version,
	}
	copy(rec.Entities, d.hits)
	rec.DetectedPIITypes = append([]string(nil), d.detection.DetectedPIITypes...)
	rec.DetectedPIITypeFrequencies = make(map[string]int, len(d.detection.DetectedPIITypeFrequencies))
	for k, v := range d.detection.DetectedPIITypeFrequencies {
		rec.DetectedPIITypeFrequencies[k] = v
	}
	return rec
}

// ClassificationDoc is the version 1 record layout: entity text and raw length included.
type ClassificationDoc struct {
	classifiedBase
}

// Record returns the chunk record including entity text.
func (d *ClassificationDoc) Record() *ClassificationRecord {
	rec := d.record(RecordV1)
	rec.RawTextLength = utf8.RuneCountInString(d.raw)
	return rec
}

// ClassificationDocV2 is the compact layout: entity text is never emitted.
type ClassificationDocV2 struct {
	classifiedBase
}

// Record returns the chunk record with entity text stripped.
func (d *ClassificationDocV2) Record() *ClassificationRecord {
	rec := d.record(RecordV2)
	for i := range rec.Entities {
		rec.Entities[i].Text = ""
	}
	rec.LanguageConfidence = d.meta.Language.Confidence
	rec.ContentWordCount = d.meta.ContentWordCount
	return rec
}
