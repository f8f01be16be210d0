package core

import (
	"errors"
	"time"
)

// Response header names set by the engine
const (
	HeaderAllow       = "Allow"
	HeaderContentType = "Content-Type"
)

// Engine errors
var (
	ErrEngineRunning = errors.New("engine is already running")
	ErrNilCallback   = errors.New("callback is nil")
	ErrNoResponse    = errors.New("packet has no response")
)

// Stage bookkeeping errors; both indicate a bug in the pipeline
var (
	ErrStageMarked = errors.New("stage was already marked")
	ErrStageOrder  = errors.New("stage marked after a later stage")
)

const (
	defaultBufferSize   = 4096
	defaultDrainTimeout = time.Second
	internalError       = "internal server error"
	busyMessage         = "server is busy"
)
