package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/engine"
	"github.com/hyperjump/kakushi/internal/extract"
	"github.com/hyperjump/kakushi/internal/jobs"
	"github.com/hyperjump/kakushi/internal/keyword"
	"github.com/hyperjump/kakushi/internal/langdetect"
	"github.com/hyperjump/kakushi/internal/ner"
	"github.com/hyperjump/kakushi/internal/pipeline"
	"github.com/hyperjump/kakushi/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Storage    storage.Storage
	Index      keyword.RecordIndex
	Tracker    jobs.Tracker
	Recognizer ner.Recognizer
	Processor  *pipeline.Processor
}

// Close releases every component that was opened.
func (c *Components) Close() {
	if c.Recognizer != nil {
		_ = c.Recognizer.Close()
	}
	if c.Tracker != nil {
		_ = c.Tracker.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}
	c.Storage = store

	index, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize record index: %w", err))
	}
	c.Index = index

	tracker, err := jobs.NewTracker(ctx, cfg.Jobs)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize job tracker: %w", err))
	}
	c.Tracker = tracker

	analyzer, err := engine.New(cfg.Engine, engine.WithLogger(logger))
	if err != nil {
		return fail(fmt.Errorf("failed to initialize engine: %w", err))
	}

	recognizer, err := ner.New(cfg.NER, ner.WithLogger(logger))
	if err != nil {
		// PERSON hits are still confirmed by the heuristic recognizer
		logger.Warn("ner recognizer unavailable, using heuristic",
			zap.String("mode", cfg.NER.Mode), zap.Error(err))
		recognizer = ner.NewHeuristic()
	}
	c.Recognizer = recognizer

	extractor := extract.NewExtractor(extract.WithExtendedFormats(cfg.Pipeline.ExtendedFormats))
	detector := langdetect.New(cfg.Pipeline.Languages)
	c.Processor = pipeline.NewProcessor(cfg.Pipeline, analyzer, recognizer, extractor, detector,
		pipeline.WithLogger(logger),
		pipeline.WithStorage(store),
		pipeline.WithIndex(index),
		pipeline.WithTracker(tracker),
	)

	logger.Info("components initialized",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("engine", cfg.Engine.Mode),
		zap.String("ner", recognizer.Name()),
		zap.String("jobs", cfg.Jobs.Backend),
	)
	return c, nil
}
