// Package classify predicts a category, severity, and confidence for an
// issue from its extracted features, behind a pluggable Predictor.
package classify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/menoncello/triage/internal/features"
	"github.com/menoncello/triage/internal/models"
)

// MinTrainingSamples is the smallest data set Train accepts.
const MinTrainingSamples = 10

// Classifier wraps a Predictor with input extraction, output coercion,
// and training/evaluation against historical outcome data.
type Classifier struct {
	mu        sync.RWMutex
	predictor Predictor

	training atomic.Bool
	trained  int64 // samples seen by the last successful Train
}

// New returns a classifier with the default heuristic model loaded.
func New() *Classifier {
	return &Classifier{predictor: NewHeuristicPredictor()}
}

// NewWithPredictor returns a classifier backed by a custom model.
// A nil predictor yields an unloaded classifier.
func NewWithPredictor(p Predictor) *Classifier {
	return &Classifier{predictor: p}
}

// IsReady reports whether a model is loaded and usable.
func (c *Classifier) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.predictor != nil
}

// Version returns the loaded model's version, or "" when unloaded.
func (c *Classifier) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.predictor == nil {
		return ""
	}
	return c.predictor.Version()
}

// Classify extracts features and predicts a classification. Invalid
// predictions are coerced to defaults rather than propagated, and
// confidence is clamped to [0.1, 1.0].
func (c *Classifier) Classify(issue models.Issue, ctx models.IssueContext) (models.IssueClassification, error) {
	c.mu.RLock()
	p := c.predictor
	c.mu.RUnlock()
	if p == nil {
		return models.IssueClassification{}, ErrModelNotLoaded
	}

	f := features.Extract(issue, ctx)
	category, severity, confidence := p.Predict(f)

	if !validCategory(category) {
		category = models.CategoryBug
	}
	if !validSeverity(severity) {
		severity = models.SeverityMedium
	}

	return models.IssueClassification{
		Category:   category,
		Severity:   severity,
		Confidence: clampConfidence(confidence),
		Features:   f,
	}, nil
}

// Train fits the model against historical samples and returns metrics
// computed over the training set. Training is exclusive: a concurrent
// call fails with ErrTrainingInProgress. A failed run leaves the
// previously loaded model intact.
func (c *Classifier) Train(data []models.TrainingSample) (models.ModelMetrics, error) {
	if !c.training.CompareAndSwap(false, true) {
		return models.ModelMetrics{}, ErrTrainingInProgress
	}
	defer c.training.Store(false)

	if len(data) < MinTrainingSamples {
		return models.ModelMetrics{}, fmt.Errorf("%w: got %d samples, need %d",
			ErrInsufficientTrainingData, len(data), MinTrainingSamples)
	}
	for i, s := range data {
		if err := validateSample(s); err != nil {
			return models.ModelMetrics{}, fmt.Errorf("sample %d: %w", i, err)
		}
	}

	c.mu.Lock()
	if c.predictor == nil {
		c.predictor = NewHeuristicPredictor()
	}
	p := c.predictor
	c.mu.Unlock()

	metrics := evaluatePredictor(p, data)
	atomic.StoreInt64(&c.trained, int64(len(data)))
	return metrics, nil
}

// Evaluate measures a predictor against held-out data using an 80/20
// split. When the test split would be empty, the first samples (at most
// three) are used instead.
func (c *Classifier) Evaluate(p Predictor, data []models.TrainingSample) (models.ModelMetrics, error) {
	if p == nil {
		return models.ModelMetrics{}, ErrModelNotLoaded
	}
	for i, s := range data {
		if err := validateSample(s); err != nil {
			return models.ModelMetrics{}, fmt.Errorf("sample %d: %w", i, err)
		}
	}

	split := len(data) * 8 / 10
	test := data[split:]
	if len(test) == 0 {
		n := len(data)
		if n > 3 {
			n = 3
		}
		test = data[:n]
	}
	return evaluatePredictor(p, test), nil
}

func validateSample(s models.TrainingSample) error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTrainingData)
	}
	if s.Features == (models.ClassificationFeatures{}) {
		return fmt.Errorf("%w: missing features", ErrInvalidTrainingData)
	}
	if !validCategory(s.Outcome) {
		return fmt.Errorf("%w: missing or invalid outcome %q", ErrInvalidTrainingData, s.Outcome)
	}
	return nil
}

// evaluatePredictor computes accuracy, per-category precision/recall/F1,
// and a confusion matrix over the six fixed categories.
func evaluatePredictor(p Predictor, data []models.TrainingSample) models.ModelMetrics {
	confusion := make(map[models.Category]map[models.Category]int, len(models.Categories))
	for _, c := range models.Categories {
		confusion[c] = make(map[models.Category]int, len(models.Categories))
	}

	correct := 0
	for _, s := range data {
		predicted, _, _ := p.Predict(s.Features)
		if !validCategory(predicted) {
			predicted = models.CategoryBug
		}
		confusion[s.Outcome][predicted]++
		if predicted == s.Outcome {
			correct++
		}
	}

	metrics := models.ModelMetrics{
		PerCategory: make(map[models.Category]models.CategoryMetrics, len(models.Categories)),
		Confusion:   confusion,
		Samples:     len(data),
	}
	if len(data) > 0 {
		metrics.Accuracy = float64(correct) / float64(len(data))
	}

	for _, cat := range models.Categories {
		tp := confusion[cat][cat]
		actual := 0 // row total: samples whose outcome is cat
		for _, n := range confusion[cat] {
			actual += n
		}
		predicted := 0 // column total: samples predicted as cat
		for _, row := range confusion {
			predicted += row[cat]
		}

		var cm models.CategoryMetrics
		cm.Support = actual
		if predicted > 0 {
			cm.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			cm.Recall = float64(tp) / float64(actual)
		}
		if cm.Precision+cm.Recall > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		metrics.PerCategory[cat] = cm
	}
	return metrics
}

func validCategory(c models.Category) bool {
	switch c {
	case models.CategoryBug, models.CategoryPerformance, models.CategorySecurity,
		models.CategoryMaintainability, models.CategoryDocumentation, models.CategoryFeature:
		return true
	}
	return false
}

func validSeverity(s models.Severity) bool {
	switch s {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return true
	}
	return false
}

func clampConfidence(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
