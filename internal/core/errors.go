package core

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// Ingestion operations reported by IngestError.
const (
	IngestOpFile   = "file processing"
	IngestOpSource = "paper source processing"
)

// IngestError is an ingestion failure meant to be shown to the user.
type IngestError struct {
	Op  string
	Err error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

var debugEnabled atomic.Bool

// SetDebug turns on pipeline stage logging.
func SetDebug(enabled bool) { debugEnabled.Store(enabled) }

func debugf(format string, args ...any) {
	if debugEnabled.Load() {
		log.Output(2, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}
