package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"mediawatch/internal/catalog"
	"mediawatch/internal/classify"
	"mediawatch/internal/freshness"
	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/retry"
	"mediawatch/internal/services"
)

const (
	stageFetchLibrary    = "fetch_library"
	stageFetchCandidates = "fetch_candidates"
	stageFilter          = "filter_duplicates"
	stagePersist         = "persist"
	stageEmit            = "emit"
)

// subjectBatch is the outcome of one subject's catalog fetch.
type subjectBatch struct {
	subject media.Subject
	facts   []media.CandidateFact
	fetched bool
}

// RunOnce executes a single pass. The returned error is non-nil only when the
// run aborted: the library could not be listed, a collaborator reported a
// fatal error, or ctx ended. The report is populated either way.
func (p *Pipeline) RunOnce(ctx context.Context) (Report, error) {
	report := Report{
		RunID:          p.newRunID(),
		StartedAt:      p.now().UTC(),
		CategoryCounts: map[string]int{},
	}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("run started", logging.String(logging.FieldEventType, "run_start"))

	err := p.run(ctx, &report)
	report.Duration = p.now().Sub(report.StartedAt)
	if err != nil {
		logging.ErrorWithContext(logger, "run aborted", "run_aborted",
			logging.Error(err),
			logging.String("error_kind", services.Kind(err)),
			logging.Duration("duration", report.Duration),
		)
		return report, err
	}
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("subjects_processed", report.SubjectsProcessed),
		logging.Int("subjects_skipped", report.SubjectsSkipped),
		logging.Int("subjects_cached", report.SubjectsCached),
		logging.Int("facts_accepted", report.FactsAccepted),
		logging.Int("facts_duplicate", report.FactsDuplicate),
		logging.Int("facts_failed", report.FactsFailed),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, report *Report) error {
	catalog.BeginRun(p.catalog)

	subjects, err := p.fetchLibrary(ctx)
	if err != nil {
		return err
	}
	p.log(ctx).Info("library listed", logging.Int("subjects", len(subjects)))

	batches, err := p.fetchCandidates(ctx, subjects, report)
	if err != nil {
		return err
	}
	if err := stageDone(ctx, stageFetchCandidates); err != nil {
		return err
	}

	fresh, quiet := p.filterDuplicates(ctx, batches, report)
	if err := stageDone(ctx, stageFilter); err != nil {
		return err
	}
	buckets := classify.Classify(fresh)
	accepted := p.persist(ctx, buckets, report)

	for category, n := range accepted.Counts() {
		report.CategoryCounts[string(category)] = n
	}
	for _, group := range accepted.Ordered() {
		report.Accepted = append(report.Accepted, group.Facts...)
	}
	// Recorded facts stay recorded; an ended ctx only stops the digest.
	if err := stageDone(ctx, stagePersist); err != nil {
		return err
	}
	p.recordFetches(ctx, quiet)
	p.emit(ctx, accepted, report)
	return nil
}

// stageDone returns ctx's error, tagged with the stage that just finished,
// once ctx has ended.
func stageDone(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

func (p *Pipeline) fetchLibrary(ctx context.Context) ([]media.Subject, error) {
	ctx = services.WithStage(ctx, stageFetchLibrary)
	subjects, err := retry.Do(ctx, p.executor, stageFetchLibrary, p.library.ListSubjects)
	if err != nil {
		return nil, fmt.Errorf("fetch library: %w", err)
	}
	return subjects, nil
}

// fetchCandidates fans out one catalog call per subject. Results keep library
// order so downstream stages are deterministic.
func (p *Pipeline) fetchCandidates(ctx context.Context, subjects []media.Subject, report *Report) ([]subjectBatch, error) {
	batches := make([]subjectBatch, len(subjects))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(services.WithStage(ctx, stageFetchCandidates))
	g.SetLimit(p.concurrency)
	for i, subject := range subjects {
		batches[i].subject = subject
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sctx := services.WithSubjectID(gctx, subject.ID)
			if p.fetchCached(sctx, subject) {
				mu.Lock()
				report.SubjectsCached++
				mu.Unlock()
				return nil
			}

			facts, err := retry.Do(sctx, p.executor, stageFetchCandidates, func(c context.Context) ([]media.CandidateFact, error) {
				return p.catalog.ListCandidates(c, subject)
			})
			if err != nil {
				if services.IsFatal(err) || gctx.Err() != nil {
					return fmt.Errorf("fetch candidates for %s: %w", subject.ID, err)
				}
				logging.WarnWithContext(p.log(sctx), "subject skipped", "subject_skipped",
					logging.String("title", subject.Title),
					logging.Error(err),
					logging.String("error_kind", services.Kind(err)),
					logging.String(logging.FieldErrorHint, "the catalog will be queried again next run"),
					logging.String(logging.FieldImpact, "no facts for this subject this run"),
				)
				mu.Lock()
				report.SubjectsSkipped++
				report.FactsFailed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			batches[i].facts = facts
			batches[i].fetched = true
			report.SubjectsProcessed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// fetchCached reports whether the subject's catalog fetch is suppressed by a
// live catalog_fetch record. Store errors fall through to a real fetch.
func (p *Pipeline) fetchCached(ctx context.Context, subject media.Subject) bool {
	if !p.fetchCache {
		return false
	}
	seen, err := p.store.WasSeen(ctx, subject.ID, p.fetchCacheKey(), p.policy.CatalogFetch)
	if err != nil {
		logging.WarnWithContext(p.log(ctx), "fetch cache lookup failed", "fetch_cache_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "catalog is queried for this subject"),
		)
		return false
	}
	return seen
}

type factKey struct {
	subjectID string
	key       string
}

// filterDuplicates collapses repeats within the batch and drops facts with a
// live record. It also returns the subjects that fetched successfully,
// contributed nothing new and had every lookup succeed, for the fetch cache.
func (p *Pipeline) filterDuplicates(ctx context.Context, batches []subjectBatch, report *Report) ([]media.CandidateFact, []media.Subject) {
	ctx = services.WithStage(ctx, stageFilter)
	var (
		fresh []media.CandidateFact
		quiet []media.Subject
	)
	inBatch := make(map[factKey]bool)
	for _, batch := range batches {
		if !batch.fetched {
			continue
		}
		// A subject with a failed lookup is never cached, so the fact is
		// fetched and looked up again next run.
		cacheable := true
		for _, fact := range batch.facts {
			if fact.SubjectID == "" {
				fact.SubjectID = batch.subject.ID
			}
			if fact.SubjectTitle == "" {
				fact.SubjectTitle = batch.subject.Title
			}
			k := factKey{fact.SubjectID, fact.Key}
			if inBatch[k] {
				report.FactsDuplicate++
				continue
			}
			inBatch[k] = true

			seen, err := p.store.WasSeen(ctx, fact.SubjectID, fact.Key, p.policy.ForFact(fact.Kind))
			if err != nil {
				logging.WarnWithContext(p.log(ctx), "freshness lookup failed", "freshness_lookup_failed",
					logging.String(logging.FieldSubjectID, fact.SubjectID),
					logging.String("fact_key", fact.Key),
					logging.Error(err),
					logging.String(logging.FieldImpact, "fact skipped this run and retried next run"),
				)
				report.FactsFailed++
				cacheable = false
				continue
			}
			if seen {
				report.FactsDuplicate++
				continue
			}
			fresh = append(fresh, fact)
			cacheable = false
		}
		if cacheable {
			quiet = append(quiet, batch.subject)
		}
	}
	return fresh, quiet
}

// persist records every classified fact and returns the buckets that were
// actually committed. Each write stands alone; nothing is rolled back.
func (p *Pipeline) persist(ctx context.Context, buckets classify.Buckets, report *Report) classify.Buckets {
	ctx = services.WithStage(ctx, stagePersist)
	var accepted []media.CandidateFact
	for _, group := range buckets.Ordered() {
		for _, fact := range group.Facts {
			attrs := fact.Attributes()
			attrs["classification"] = string(group.Category)
			attrs["run_id"] = report.RunID
			rec := freshness.Record{SubjectID: fact.SubjectID, FactKey: fact.Key, Attributes: attrs}
			err := p.store.RecordSeen(ctx, rec, p.policy.ForFact(fact.Kind))
			switch {
			case err == nil:
				accepted = append(accepted, fact)
				report.FactsAccepted++
			case errors.Is(err, services.ErrConflict):
				report.FactsDuplicate++
			default:
				logging.WarnWithContext(p.log(ctx), "failed to record fact", "persist_failed",
					logging.String(logging.FieldSubjectID, fact.SubjectID),
					logging.String("fact_key", fact.Key),
					logging.Error(err),
					logging.String(logging.FieldImpact, "fact left out of the digest and may be announced next run"),
				)
				report.FactsFailed++
			}
		}
	}
	return classify.Classify(accepted)
}

// recordFetches marks quiet subjects so the next runs inside the fetch window
// skip their catalog call.
func (p *Pipeline) recordFetches(ctx context.Context, quiet []media.Subject) {
	if !p.fetchCache {
		return
	}
	ctx = services.WithStage(ctx, stagePersist)
	for _, subject := range quiet {
		rec := freshness.Record{SubjectID: subject.ID, FactKey: p.fetchCacheKey(), Attributes: map[string]string{"subject_title": subject.Title}}
		err := p.store.RecordSeen(ctx, rec, p.policy.CatalogFetch)
		if err != nil && !errors.Is(err, services.ErrConflict) {
			p.log(ctx).Debug("fetch cache record failed",
				logging.String(logging.FieldSubjectID, subject.ID),
				logging.Error(err),
			)
		}
	}
}

func (p *Pipeline) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, p.logger)
}

func (p *Pipeline) emit(ctx context.Context, accepted classify.Buckets, report *Report) {
	digest := classify.Digest{RunID: report.RunID, GeneratedAt: p.now().UTC(), Buckets: accepted}
	if digest.Empty() {
		p.log(ctx).Info("nothing new to deliver")
		return
	}
	ctx = services.WithStage(ctx, stageEmit)
	if err := p.notifier.Deliver(ctx, digest); err != nil {
		report.DeliveryError = err.Error()
		logging.ErrorWithContext(p.log(ctx), "digest delivery failed", "delivery_failed",
			logging.Error(err),
			logging.Int("facts", digest.Buckets.Total()),
			logging.String(logging.FieldErrorHint, "run 'mediawatch test-notify' to check the notifier configuration"),
		)
		return
	}
	report.Delivered = true
	p.log(ctx).Info("digest delivered",
		logging.String(logging.FieldEventType, "digest_delivered"),
		logging.Int("facts", digest.Buckets.Total()),
	)
}
