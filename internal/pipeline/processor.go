package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/engine"
	"github.com/hyperjump/kakushi/internal/extract"
	"github.com/hyperjump/kakushi/internal/jobs"
	"github.com/hyperjump/kakushi/internal/langdetect"
	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/internal/ner"
	"github.com/hyperjump/kakushi/internal/storage"
)

// RecordIndexer makes processed records searchable.
type RecordIndexer interface {
	IndexRecord(ctx context.Context, rec *models.ClassificationRecord) error
	Delete(ctx context.Context, id string) error
}

// Options are per-batch overrides.
type Options struct {
	// Language skips detection and analyzes every document in this language.
	Language string
	// FileTypes restricts accepted file types. Empty uses the configured list; when that
	// is empty too every file type is accepted.
	FileTypes []string
}

// Processor runs batches of documents through the classification pipeline.
// Documents and their chunks are processed sequentially.
type Processor struct {
	cfg       config.PipelineConfig
	analyzer  engine.Analyzer
	post      *PostProcessor
	extractor *extract.Extractor
	detector  *langdetect.Detector
	splitter  *Splitter

	store   storage.Storage
	index   RecordIndexer
	tracker jobs.Tracker
	logger  *zap.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger. Skipped documents are logged at warn level.
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// WithStorage persists records and non-treated documents as they are produced.
func WithStorage(s storage.Storage) ProcessorOption {
	return func(p *Processor) { p.store = s }
}

// WithIndex indexes every produced record.
func WithIndex(idx RecordIndexer) ProcessorOption {
	return func(p *Processor) { p.index = idx }
}

// WithTracker saves the job after every document.
func WithTracker(t jobs.Tracker) ProcessorOption {
	return func(p *Processor) { p.tracker = t }
}

// NewProcessor creates a processor with the given collaborators. recognizer may be nil,
// in which case PERSON hits are confirmed with the heuristic recognizer.
func NewProcessor(
	cfg config.PipelineConfig,
	analyzer engine.Analyzer,
	recognizer ner.Recognizer,
	extractor *extract.Extractor,
	detector *langdetect.Detector,
	opts ...ProcessorOption,
) *Processor {
	if extractor == nil {
		extractor = extract.NewExtractor(extract.WithExtendedFormats(cfg.ExtendedFormats))
	}
	if detector == nil {
		detector = langdetect.New(cfg.Languages)
	}
	p := &Processor{
		cfg:       cfg,
		analyzer:  analyzer,
		post:      NewPostProcessor(recognizer, cfg.PersonScoreThreshold),
		extractor: extractor,
		detector:  detector,
		splitter:  NewSplitter(cfg.ChunkSize),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process classifies docs in order. Every document yields either a record or a
// non-treated entry; one bad document never stops the batch. job is advanced after
// each document and saved to the tracker when one is set; a nil job is replaced by a
// fresh one.
//
// When ctx is cancelled, processing stops between documents and the partial result
// is returned with ctx.Err().
func (p *Processor) Process(ctx context.Context, job *jobs.Job, docs []models.DocumentInput, opts Options) (*models.BatchResult, error) {
	if job == nil {
		job = jobs.NewJob(len(docs))
	}
	job.Total = len(docs)
	job.Start()
	p.saveJob(ctx, job)

	result := models.NewBatchResult()
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return result, p.finish(job, err)
		}
		doc := &docs[i]
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}
		outcome := p.processDocument(ctx, doc, opts)
		if outcome.Skip != nil && ctx.Err() != nil {
			// the skip was caused by the cancellation, not by the document
			return result, p.finish(job, ctx.Err())
		}
		p.persist(ctx, job.ID, outcome)
		result.Add(outcome)
		job.Advance(outcome.Skip != nil)
		p.saveJob(ctx, job)
	}
	return result, p.finish(job, nil)
}

func (p *Processor) finish(job *jobs.Job, err error) error {
	job.Finish(err)
	// the batch context may be done; the final state must still be visible
	p.saveJob(context.Background(), job)
	return err
}

func (p *Processor) saveJob(ctx context.Context, job *jobs.Job) {
	if p.tracker == nil {
		return
	}
	if err := p.tracker.Save(ctx, job); err != nil {
		p.logger.Error("failed to save job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (p *Processor) persist(ctx context.Context, jobID string, o models.Outcome) {
	switch {
	case o.Record != nil:
		if p.store != nil {
			if err := p.store.SaveRecord(ctx, jobID, o.Record); err != nil {
				p.logger.Error("failed to store record", zap.String("document_id", o.Record.DocumentID), zap.Error(err))
			}
		}
		if p.index != nil {
			if err := p.index.IndexRecord(ctx, o.Record); err != nil {
				p.logger.Error("failed to index record", zap.String("document_id", o.Record.DocumentID), zap.Error(err))
			}
		}
	case o.Skip != nil:
		if p.store != nil {
			if err := p.store.SaveNonTreated(ctx, jobID, *o.Skip); err != nil {
				p.logger.Error("failed to store non-treated", zap.String("document_id", o.Skip.DocumentID), zap.Error(err))
			}
		}
	}
}

func (p *Processor) skip(doc *models.DocumentInput, reason models.SkipReason, err error) models.Outcome {
	fields := []zap.Field{
		zap.String("document_id", doc.ID),
		zap.String("file_name", doc.Source.FileName),
		zap.String("reason", string(reason)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.logger.Warn("document not treated", fields...)
	return models.Skipped(doc.ID, reason)
}

// processDocument runs the gates in order and, when all pass, analyzes the chunks.
func (p *Processor) processDocument(ctx context.Context, doc *models.DocumentInput, opts Options) models.Outcome {
	fileTypes := opts.FileTypes
	if len(fileTypes) == 0 {
		fileTypes = p.cfg.FileTypes
	}
	if len(fileTypes) > 0 && !extensionAllowed(doc.NormalizedFileType(), fileTypes) {
		return p.skip(doc, models.ReasonInvalidFileType, nil)
	}

	content, err := doc.Bytes()
	if err != nil {
		return p.skip(doc, models.ReasonProcessingFailed, err)
	}

	mimeType := doc.Source.MimeType
	if mimeType == "" {
		mimeType = p.extractor.DetectMime(content, doc.Source.FileName)
	}
	if !p.extractor.Supported(mimeType) {
		return p.skip(doc, models.ReasonUnsupportedMime, fmt.Errorf("mime type %s", mimeType))
	}

	text, err := p.extractor.ExtractMime(content, mimeType)
	if err != nil {
		return p.skip(doc, models.ReasonExtractionFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return p.skip(doc, models.ReasonEmptyContent, nil)
	}

	if chars, words := utf8.RuneCountInString(strings.TrimSpace(text)), len(strings.Fields(text)); chars < p.cfg.MinChars || words < p.cfg.MinWords {
		return p.skip(doc, models.ReasonProcessingFailed,
			fmt.Errorf("text too short: %d characters, %d words", chars, words))
	}

	normalized := Normalize(text)
	lang := models.Language{Code: strings.ToLower(opts.Language), Confidence: 1}
	if lang.Code == "" {
		lang = p.detector.Detect(normalized)
	}
	if !p.detector.Supported(lang.Code) {
		return p.skip(doc, models.ReasonUnsupportedLanguage, fmt.Errorf("language %q", lang.Code))
	}

	meta := models.DocumentMeta{
		DocumentID:       doc.ID,
		FileName:         doc.Source.FileName,
		FileType:         doc.NormalizedFileType(),
		FileURI:          doc.FileURI(),
		Language:         lang,
		ContentWordCount: len(p.detector.ContentWords(normalized, lang.Code)),
	}
	rec, err := p.classify(ctx, meta, text)
	if err != nil {
		return p.skip(doc, models.ReasonProcessingFailed, err)
	}
	p.logger.Debug("document classified",
		zap.String("document_id", doc.ID),
		zap.String("language", lang.Code),
		zap.Int("detections", rec.DetectionCount))
	return models.Treated(rec)
}

// classify analyzes every chunk of text and merges the chunk records.
func (p *Processor) classify(ctx context.Context, meta models.DocumentMeta, text string) (*models.ClassificationRecord, error) {
	var chunks []models.Chunk
	if utf8.RuneCountInString(text) <= p.cfg.ChunkThreshold {
		chunks = []models.Chunk{{Content: text, StartOffset: 0, EndOffset: len(text)}}
	} else {
		chunks = p.splitter.Split(text)
	}

	records := make([]*models.ClassificationRecord, 0, len(chunks))
	for _, chunk := range chunks {
		rec, err := p.classifyChunk(ctx, meta, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		// chunk offsets become document offsets
		shift := utf8.RuneCountInString(text[:chunk.StartOffset])
		for i := range rec.Entities {
			rec.Entities[i].Start += shift
			rec.Entities[i].End += shift
		}
		records = append(records, rec)
	}
	merged := MergeChunks(records)
	if merged == nil {
		return nil, errors.New("no chunks produced")
	}
	merged.ProcessedAt = time.Now().UTC()
	return merged, nil
}

func (p *Processor) classifyChunk(ctx context.Context, meta models.DocumentMeta, chunk models.Chunk) (*models.ClassificationRecord, error) {
	res, err := p.analyzer.Analyze(ctx, chunk.Content, meta.Language.Code, p.cfg.ScoreThreshold)
	if err != nil {
		return nil, err
	}
	FilterScores(res, chunk.Content, p.cfg.ScoreThreshold, p.cfg.RemoveDuplicatesOrDefault())
	hits, err := p.post.Apply(ctx, res.Hits())
	if err != nil {
		return nil, err
	}
	res.SetHits(hits)
	res.DetectionSummary = models.Summarize(chunk.Content, hits)

	doc := models.NewClassifiedDocument(models.RecordVersion(p.cfg.RecordVersion), meta, chunk.Content)
	doc.SetPIIHits(hits)
	UpdateClassification(doc, res)
	return doc.Record(), nil
}
