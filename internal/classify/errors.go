package classify

import "errors"

var (
	// ErrModelNotLoaded is returned by Classify when no model has been
	// trained or loaded.
	ErrModelNotLoaded = errors.New("classification model not loaded")

	// ErrTrainingInProgress is returned when Train is called while
	// another training run is still active.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrInsufficientTrainingData is returned when Train receives fewer
	// than MinTrainingSamples samples.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrInvalidTrainingData is returned when a sample is missing its
	// id, features, or outcome.
	ErrInvalidTrainingData = errors.New("invalid training data")
)
