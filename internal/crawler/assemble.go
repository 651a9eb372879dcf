package crawler

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/extract"
	"github.com/data-to-insight/inspection-crawler/internal/inspection"
	"github.com/data-to-insight/inspection-crawler/internal/metrics"
	"github.com/data-to-insight/inspection-crawler/internal/storage"
)

// assemble builds the record for a provider's selected publication. The
// second return reports whether the document could not be downloaded or
// decoded; the record is still produced with null extracted fields.
func (e *Engine) assemble(
	ctx context.Context,
	p inspection.ProviderEntry,
	pub inspection.PublicationEntry,
	captureText bool,
	logger *zap.Logger,
) (inspection.InspectionRecord, bool) {
	name := p.NormalizedName
	if name == "" {
		name = p.DisplayName
	}
	rec := inspection.InspectionRecord{
		URN:            p.Identifier,
		LocalAuthority: name,
		InspectionLink: pub.SourceReference,
		Lightweight:    !captureText,
	}
	if !captureText && !e.cfg.PersistDocuments {
		return rec, false
	}

	doc, err := e.fetcher.Fetch(ctx, pub.SourceReference)
	if err != nil {
		logger.Warn("document download failed", zap.String("document", pub.SourceReference), zap.Error(err))
		if captureText {
			ApplyFacts(&rec, extract.FromPages(nil, e.cfg.TrailingMarker), pub)
		}
		return rec, true
	}

	if e.cfg.PersistDocuments {
		path := storage.DocumentPath(p.Identifier, name, pub.DescriptorText)
		uri, err := e.store.PutObject(ctx, path, storage.PDFContentType, bytes.NewReader(doc))
		if err != nil {
			logger.Warn("document persist failed", zap.String("path", path), zap.Error(err))
		} else {
			rec.LocalLink = uri
			e.logStored(uri, doc, logger)
		}
	}
	if !captureText {
		return rec, false
	}

	pages, err := e.decoder.Decode(ctx, doc)
	if err != nil {
		logger.Warn("document decode failed", zap.String("document", pub.SourceReference), zap.Error(err))
		ApplyFacts(&rec, extract.FromPages(nil, e.cfg.TrailingMarker), pub)
		return rec, true
	}

	facts := extract.FromPages(pages, e.cfg.TrailingMarker)
	if facts.Dates.Err != nil {
		logger.Debug("inspection dates incomplete", zap.Error(facts.Dates.Err))
	}
	ApplyFacts(&rec, facts, pub)
	return rec, false
}

func (e *Engine) logStored(uri string, doc []byte, logger *zap.Logger) {
	fields := []zap.Field{zap.String("uri", uri), zap.Int("bytes", len(doc))}
	if e.hasher != nil {
		if digest, err := e.hasher.Hash(doc); err == nil {
			fields = append(fields, zap.String("sha256", digest))
		}
	}
	logger.Info("document stored", fields...)
}

// ApplyFacts copies extracted facts onto rec and reads the publish date from
// the publication descriptor. Fields that stayed null are counted.
func ApplyFacts(rec *inspection.InspectionRecord, f extract.Facts, pub inspection.PublicationEntry) {
	rec.OutcomeGrade = f.Grade
	rec.PreviousInspection = f.Dates.Previous
	rec.InspectionStart = f.Dates.Start
	rec.InspectionEnd = f.Dates.End
	rec.NextInspection = f.NextInspection
	rec.NextInspectionByDate = f.NextInspectionBy
	rec.NextInspectionNote = f.NextInspectionNote
	rec.OutcomeText = f.OutcomeText
	if d, ok := extract.ParsePublishedDate(pub.DescriptorText); ok {
		rec.PublicationDate = &d
	}

	missing := map[string]bool{
		inspection.ColOutcomeGrade:         rec.OutcomeGrade == nil,
		inspection.ColInspectionStart:      rec.InspectionStart == nil,
		inspection.ColInspectionEnd:        rec.InspectionEnd == nil,
		inspection.ColPublicationDate:      rec.PublicationDate == nil,
		inspection.ColNextInspection:       rec.NextInspection == nil,
		inspection.ColNextInspectionByDate: rec.NextInspectionByDate == nil,
	}
	for field, isMissing := range missing {
		if isMissing {
			metrics.ObserveMissingField(field)
		}
	}
}
