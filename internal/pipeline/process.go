package pipeline

import (
	"context"
	"time"

	"github.com/tphakala/screamguard/internal/detection"
	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/escalation"
	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/logger"
)

// Process runs one clip through the pipeline. The clip file is released on
// every path. A returned error means the clip produced no detection;
// location and persistence problems degrade the result instead.
func (p *Pipeline) Process(ctx context.Context, in Input) (*Result, error) {
	if in.Clip == nil {
		return nil, errors.Newf("no clip supplied").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	defer func() {
		if err := in.Clip.Release(); err != nil {
			p.log.Warn("failed to release clip",
				logger.String("clip_id", in.Clip.ID),
				logger.Error(err))
		}
	}()

	start := time.Now()
	log := p.log.WithContext(ctx).With(logger.String("clip_id", in.Clip.ID))
	state := StateReceived

	fail := func(err error) (*Result, error) {
		category := errors.CategoryOf(err)
		p.metrics.RecordFailure(string(category))
		log.Warn("clip processing failed",
			logger.String("state", string(state)),
			logger.String("category", string(category)),
			logger.Error(err))
		return nil, err
	}

	stageStart := time.Now()
	clip, err := in.Clip.Decode(p.maxDuration)
	if err != nil {
		return fail(err)
	}
	p.observeStage(stageDecode, stageStart)

	stageStart = time.Now()
	vec, err := p.extractor.Extract(clip)
	if err != nil {
		return fail(err)
	}
	p.observeStage(stageExtract, stageStart)
	state = StateFeatureExtracted

	stageStart = time.Now()
	classified, err := p.classifier.Classify(vec)
	if err != nil {
		return fail(err)
	}
	p.observeStage(stageClassify, stageStart)
	p.metrics.ObserveProbability(classified.Probability)
	state = StateClassified

	det := detection.New(p.sourceNode, p.now(), classified, vec,
		detection.NewAudioSource(in.Source, in.Clip.Name, in.Clip.Path))

	if det.Positive() {
		stageStart = time.Now()
		det.Location = p.locate(ctx, in.Location)
		p.observeStage(stageLocate, stageStart)
		state = StateLocationResolved
	}

	det.ProcessingTime = time.Since(start)
	stored := p.persist(ctx, det, log)

	res := &Result{
		DetectionID: det.ID,
		Result:      det.Result(),
		Location:    det.Location,
		Stored:      stored,
	}

	if det.Positive() {
		p.aggregator.Record(det.Timestamp)
		state = StateAggregatorUpdated

		snapshot := det.Location
		candidate, crossed := p.aggregator.CheckThreshold(ctx, p.now(), func(ctx context.Context) location.Location {
			return snapshot
		})
		p.metrics.SetWindowSize(p.aggregator.Len(p.now()))
		if crossed {
			state = StateThresholdCrossed
			res.ActionRequired = p.register(candidate, log)
		}
		p.metrics.RecordClip("positive")
	} else {
		p.metrics.RecordClip("negative")
	}

	res.State = StateCompleted
	log.Info("clip processed",
		logger.String("detection_id", det.ID),
		logger.String("prediction", det.Label.String()),
		logger.Float64("probability", det.Probability),
		logger.String("location_source", det.Location.Source.String()),
		logger.Bool("stored", stored),
		logger.Bool("action_required", res.ActionRequired != nil),
		logger.String("last_state", string(state)),
		logger.Duration("duration", time.Since(start)))
	return res, nil
}

func (p *Pipeline) locate(ctx context.Context, req location.Request) location.Location {
	if p.locator == nil {
		return location.Unresolved(p.now())
	}
	return p.locator.Resolve(ctx, req)
}

// persist writes the detection. Failures are logged and reported through
// the return value only.
func (p *Pipeline) persist(ctx context.Context, det *detection.Detection, log logger.Logger) bool {
	if p.store == nil {
		return false
	}
	start := time.Now()
	defer p.observeStage(stagePersist, start)

	rec, err := p.mapper.ToDatastore(det)
	if err == nil {
		err = p.store.Insert(ctx, &rec)
	}
	if err != nil {
		log.Error("failed to persist detection",
			logger.String("detection_id", det.ID),
			logger.Error(err))
		return false
	}
	return true
}

func (p *Pipeline) register(c *escalation.Candidate, log logger.Logger) *ActionRequired {
	p.candidates.put(c)
	p.metrics.RecordCandidate()
	p.metrics.SetPendingCandidates(p.candidates.Len())

	log.Warn("escalation threshold crossed, awaiting confirmation",
		logger.String("candidate_id", c.ID),
		logger.Int("count", c.Count),
		logger.String("location_source", c.Location.Source.String()))

	return &ActionRequired{
		RequiresApproval: true,
		EmergencyNumber:  c.EmergencyNumber,
		Location:         c.Location,
		CandidateID:      c.ID,
		Count:            c.Count,
	}
}
