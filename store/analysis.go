package store

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type DefectMeasurements struct {
	Length float64 `json:"length,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Depth  float64 `json:"depth,omitempty"`
	Area   float64 `json:"area,omitempty"`
}

type DefectDetection struct {
	BaseRecord
	Type         string              `json:"type"`
	Confidence   float64             `json:"confidence"`
	BoundingBox  BoundingBox         `json:"bounding_box"`
	Severity     Severity            `json:"severity"`
	Measurements *DefectMeasurements `json:"measurements,omitempty"`
}

type MaterialAnalysis struct {
	Type       string  `json:"type"`
	Condition  string  `json:"condition"`
	Confidence float64 `json:"confidence"`
}

type EnvironmentalFactors struct {
	Lighting    string  `json:"lighting"`
	Weather     string  `json:"weather,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Humidity    float64 `json:"humidity,omitempty"`
}

type AnalysisResult struct {
	Defects              []DefectDetection    `json:"defects"`
	MaterialAnalysis     MaterialAnalysis     `json:"material_analysis"`
	EnvironmentalFactors EnvironmentalFactors `json:"environmental_factors"`
	QualityScore         float64              `json:"quality_score"`
	Recommendations      []string             `json:"recommendations"`
}

type ComparisonVerdict string

const (
	VerdictImproved  ComparisonVerdict = "improved"
	VerdictUnchanged ComparisonVerdict = "unchanged"
	VerdictDegraded  ComparisonVerdict = "degraded"
)

type Comparison struct {
	Changes []string          `json:"changes"`
	Verdict ComparisonVerdict `json:"verdict"`
}

type defectPattern struct {
	patternType string
	severity    Severity
	boundingBox BoundingBox
}

type analysisFuture struct {
	done   chan struct{}
	result *AnalysisResult
	err    error
}

// AnalysisEngine produces simulated defect detections per photo. This
// is a stand-in for real inference: it consults a static per-job-type
// pattern table with a pseudo-random inclusion filter and confidence.
// randFloat is swappable so tests can pin the outcome.
//
// The first Analyze call for a photo id wins; concurrent callers for
// the same id attach to the in-flight future and receive the identical
// result.
type AnalysisEngine struct {
	mu        sync.Mutex
	history   map[string]*AnalysisResult
	inflight  map[string]*analysisFuture
	patterns  map[string][]defectPattern
	randFloat func() float64
}

func NewAnalysisEngine() *AnalysisEngine {
	return &AnalysisEngine{
		history:   map[string]*AnalysisResult{},
		inflight:  map[string]*analysisFuture{},
		patterns:  defaultDefectPatterns(),
		randFloat: rand.Float64,
	}
}

func defaultDefectPatterns() map[string][]defectPattern {
	return map[string][]defectPattern{
		"concrete": {
			{patternType: "crack", severity: SeverityMedium, boundingBox: BoundingBox{X: 100, Y: 150, Width: 50, Height: 10}},
			{patternType: "spalling", severity: SeverityHigh, boundingBox: BoundingBox{X: 200, Y: 300, Width: 100, Height: 100}},
		},
		"steel": {
			{patternType: "corrosion", severity: SeverityMedium, boundingBox: BoundingBox{X: 150, Y: 200, Width: 75, Height: 75}},
		},
	}
}

// Analyze runs defect detection for the photo, caching the result by
// photo id. Concurrent calls for the same id coalesce onto one run.
func (e *AnalysisEngine) Analyze(photo *PhotoAttachment) (*AnalysisResult, error) {
	e.mu.Lock()
	if fut, ok := e.inflight[photo.Id]; ok {
		e.mu.Unlock()
		<-fut.done
		return fut.result, fut.err
	}
	fut := &analysisFuture{done: make(chan struct{})}
	e.inflight[photo.Id] = fut
	e.mu.Unlock()

	result, err := e.performAnalysis(photo)

	// Clear the in-flight marker even on failure, and release waiters
	// exactly once.
	e.mu.Lock()
	fut.result = result
	fut.err = err
	if err == nil {
		e.history[photo.Id] = result
	}
	delete(e.inflight, photo.Id)
	e.mu.Unlock()
	close(fut.done)

	return result, err
}

func (e *AnalysisEngine) performAnalysis(photo *PhotoAttachment) (*AnalysisResult, error) {
	defects := e.detectDefects(photo)
	material := MaterialAnalysis{Type: "concrete", Condition: "acceptable", Confidence: 0.85}
	environment := EnvironmentalFactors{Lighting: "adequate", Weather: "clear", Temperature: 72, Humidity: 45}

	return &AnalysisResult{
		Defects:              defects,
		MaterialAnalysis:     material,
		EnvironmentalFactors: environment,
		QualityScore:         qualityScore(defects, material, environment),
		Recommendations:      e.Recommend(defects),
	}, nil
}

// detectDefects rolls each pattern registered for the photo's job type
// ("concrete", "steel", ...) through the inclusion filter.
func (e *AnalysisEngine) detectDefects(photo *PhotoAttachment) []DefectDetection {
	var defects []DefectDetection
	for _, pattern := range e.patterns[photo.JobType] {
		if e.randFloat() > 0.5 {
			defects = append(defects, DefectDetection{
				BaseRecord:  BaseRecord{Id: newId()},
				Type:        pattern.patternType,
				Confidence:  0.7 + e.randFloat()*0.3,
				BoundingBox: pattern.boundingBox,
				Severity:    pattern.severity,
			})
		}
	}
	return defects
}

// qualityScore starts at 1.0, subtracts 0.1 per defect, 0.2 when the
// material condition is not acceptable, 0.1 for poor lighting, and
// clamps to [0, 1].
func qualityScore(defects []DefectDetection, material MaterialAnalysis, environment EnvironmentalFactors) float64 {
	score := 1.0
	score -= float64(len(defects)) * 0.1
	if material.Condition != "acceptable" {
		score -= 0.2
	}
	if environment.Lighting == "poor" {
		score -= 0.1
	}
	return math.Max(0, math.Min(1, score))
}

// Recommend maps defect type x severity to a base recommendation set,
// unioned with size-threshold recommendations. Duplicates are dropped;
// ordering is not significant.
func (e *AnalysisEngine) Recommend(defects []DefectDetection) []string {
	seen := map[string]struct{}{}
	var recommendations []string
	add := func(rec string) {
		if _, ok := seen[rec]; ok {
			return
		}
		seen[rec] = struct{}{}
		recommendations = append(recommendations, rec)
	}

	for _, defect := range defects {
		switch defect.Type {
		case "crack":
			add("Document crack width and length")
			add("Monitor for progression")
			if defect.Severity == SeverityHigh {
				add("Immediate structural assessment required")
			}
		case "spalling":
			add("Remove loose material")
			add("Assess underlying reinforcement")
		case "corrosion":
			add("Clean affected area")
			add("Apply rust inhibitor")
		}

		if defect.Measurements != nil {
			if defect.Measurements.Area > 100 {
				add("Large affected area - consider full section repair")
			}
			if defect.Measurements.Depth > 50 {
				add("Deep defect detected - structural review required")
			}
		}
	}

	return recommendations
}

// History returns the stored analysis for a photo id, if any.
func (e *AnalysisEngine) History(photoId string) (*AnalysisResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result, ok := e.history[photoId]
	return result, ok
}

// Compare reports defect-count and quality-score deltas between two
// analyzed photos. Either id lacking a stored analysis is ErrNotFound.
func (e *AnalysisEngine) Compare(photoId, previousPhotoId string) (*Comparison, error) {
	e.mu.Lock()
	current, okCurrent := e.history[photoId]
	previous, okPrevious := e.history[previousPhotoId]
	e.mu.Unlock()

	if !okCurrent || !okPrevious {
		return nil, ErrNotFound
	}

	var changes []string
	severityScore := 0

	currentCount := len(current.Defects)
	previousCount := len(previous.Defects)
	if currentCount != previousCount {
		changes = append(changes, fmt.Sprintf("Defect count changed from %d to %d", previousCount, currentCount))
		severityScore += sign(currentCount - previousCount)
	}

	qualityDiff := current.QualityScore - previous.QualityScore
	if math.Abs(qualityDiff) > 0.1 {
		direction := "improved"
		if qualityDiff < 0 {
			direction = "decreased"
		}
		changes = append(changes, fmt.Sprintf("Quality score %s by %.2f", direction, math.Abs(qualityDiff)))
		severityScore -= signFloat(qualityDiff)
	}

	verdict := VerdictUnchanged
	if severityScore > 0 {
		verdict = VerdictDegraded
	} else if severityScore < 0 {
		verdict = VerdictImproved
	}

	return &Comparison{Changes: changes, Verdict: verdict}, nil
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

func signFloat(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}
