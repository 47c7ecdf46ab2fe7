package worker

import (
	"context"

	"github.com/mattjoyce/scriptbridge/internal/journal"
)

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/mattjoyce/scriptbridge/internal/worker Recorder

// Recorder receives one entry per handled request. *journal.Journal
// satisfies it.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}
