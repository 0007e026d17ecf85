// Package pipeline runs one audio clip through feature extraction,
// classification, location resolution, persistence and the escalation
// window, and dispatches confirmed escalations.
//
// Escalation is two-phase. Process only reports that the threshold was
// crossed and registers a pending candidate; nothing is sent until a caller
// confirms it through Dispatch.
package pipeline

import (
	"context"
	"time"

	"github.com/tphakala/screamguard/internal/classifier"
	"github.com/tphakala/screamguard/internal/datastore"
	"github.com/tphakala/screamguard/internal/detection"
	"github.com/tphakala/screamguard/internal/escalation"
	"github.com/tphakala/screamguard/internal/features"
	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/myaudio"
	"github.com/tphakala/screamguard/internal/notification"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// DefaultCandidateTTL is how long a candidate waits for confirmation.
const DefaultCandidateTTL = 10 * time.Minute

// State is a step of the per-clip state machine.
type State string

const (
	StateReceived          State = "received"
	StateFeatureExtracted  State = "feature_extracted"
	StateClassified        State = "classified"
	StateLocationResolved  State = "location_resolved"
	StateAggregatorUpdated State = "aggregator_updated"
	StateThresholdCrossed  State = "threshold_crossed"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

// Stage names used in metrics.
const (
	stageDecode   = "decode"
	stageExtract  = "extract"
	stageClassify = "classify"
	stageLocate   = "locate"
	stagePersist  = "persist"
)

// Extractor computes the feature vector of a decoded clip.
type Extractor interface {
	Extract(clip *myaudio.Clip) (features.Vector, error)
}

// Classifier labels a feature vector.
type Classifier interface {
	Classify(v features.Vector) (classifier.Result, error)
}

// Locator resolves a location. It never fails.
type Locator interface {
	Resolve(ctx context.Context, req location.Request) location.Location
}

// Dispatcher delivers alerts.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *notification.Alert) notification.Report
	DispatchChannel(ctx context.Context, name string, alert *notification.Alert) (notification.Result, error)
}

// Config wires a Pipeline. Store and Dispatcher may be nil.
type Config struct {
	Extractor  Extractor
	Classifier Classifier
	Locator    Locator
	Aggregator *escalation.Aggregator
	Store      datastore.Interface
	Dispatcher Dispatcher

	SourceNode      string
	EmergencyNumber string
	MaxDuration     time.Duration // 0 decodes the whole clip
	CandidateTTL    time.Duration

	Logger  logger.Logger
	Metrics *metrics.PipelineMetrics
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// Input is one clip to process.
type Input struct {
	Clip     *myaudio.StoredClip
	Location location.Request
	Source   string // detection.SourceUpload or detection.SourceRealtime
}

// ActionRequired asks an operator to confirm an escalation.
type ActionRequired struct {
	RequiresApproval bool              `json:"requires_approval"`
	EmergencyNumber  string            `json:"emergency_number"`
	Location         location.Location `json:"location"`
	CandidateID      string            `json:"candidate_id"`
	Count            int               `json:"count"`
}

// Result is the outcome of Process.
type Result struct {
	DetectionID string `json:"detection_id"`
	classifier.Result
	Location       location.Location `json:"location"`
	Stored         bool              `json:"stored"`
	State          State             `json:"state"`
	ActionRequired *ActionRequired   `json:"action_required,omitempty"`
}

// EscalationEvent is the outcome of a confirmed dispatch.
type EscalationEvent struct {
	CandidateID  string              `json:"candidate_id"`
	Location     location.Location   `json:"location"`
	Results      notification.Report `json:"results"`
	DispatchedAt time.Time           `json:"dispatched_at"`
}

// Pipeline processes clips. Safe for concurrent use.
type Pipeline struct {
	extractor  Extractor
	classifier Classifier
	locator    Locator
	aggregator *escalation.Aggregator
	store      datastore.Interface
	dispatcher Dispatcher
	mapper     *detection.Mapper
	candidates *registry

	sourceNode      string
	emergencyNumber string
	maxDuration     time.Duration

	log     logger.Logger
	metrics *metrics.PipelineMetrics
	now     func() time.Time
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.CandidateTTL
	if ttl <= 0 {
		ttl = DefaultCandidateTTL
	}
	agg := cfg.Aggregator
	if agg == nil {
		agg = escalation.New(escalation.Config{EmergencyNumber: cfg.EmergencyNumber})
	}

	return &Pipeline{
		extractor:       cfg.Extractor,
		classifier:      cfg.Classifier,
		locator:         cfg.Locator,
		aggregator:      agg,
		store:           cfg.Store,
		dispatcher:      cfg.Dispatcher,
		mapper:          detection.NewMapper(),
		candidates:      newRegistry(ttl),
		sourceNode:      cfg.SourceNode,
		emergencyNumber: cfg.EmergencyNumber,
		maxDuration:     cfg.MaxDuration,
		log:             log.Module("pipeline"),
		metrics:         cfg.Metrics,
		now:             now,
	}
}

// Aggregator returns the escalation window.
func (p *Pipeline) Aggregator() *escalation.Aggregator { return p.aggregator }

// Pending returns the number of candidates awaiting confirmation.
func (p *Pipeline) Pending() int { return p.candidates.Len() }

// observeStage records the time since start under stage.
func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.ObserveStage(stage, time.Since(start).Seconds())
}
