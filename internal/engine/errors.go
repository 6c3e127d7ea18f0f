package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineStart means the engine process could not be launched or
	// initialised. It is fatal to the unit of work that needed the engine.
	ErrEngineStart = errors.New("engine start failed")

	// ErrEvaluation covers a failed search on a running session. Callers fall
	// back to the previous evaluation.
	ErrEvaluation = errors.New("engine evaluation failed")

	// ErrEvaluationTimeout is an ErrEvaluation caused by the per-call deadline.
	ErrEvaluationTimeout = fmt.Errorf("%w: timed out", ErrEvaluation)

	// ErrSessionClosed is returned by every call made after Close.
	ErrSessionClosed = errors.New("engine session closed")
)
