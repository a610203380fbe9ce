package textproc

import (
	"strings"

	"github.com/hammamikhairi/nayru/internal/domain"
	"github.com/hammamikhairi/nayru/internal/logger"
)

// Preparer turns one speak() call's raw text into an ordered stream of
// Chunks, stamped with the epoch and Config live at the time Prepare was
// called. It holds no goroutine of its own; the engine calls it
// synchronously from Speak and feeds the result into the Synthesizer
// stage's input queue.
type Preparer struct {
	log *logger.Logger
}

// New constructs a Preparer. log may be nil only in tests.
func New(log *logger.Logger) *Preparer {
	if log != nil {
		log = log.With("preparer")
	}
	return &Preparer{log: log}
}

// Prepare cleans and segments text into Chunks carrying epoch and cfg.
// A pathological input (no sentence terminators found) still yields exactly
// one chunk so the pipeline never stalls on unusual text. Text that cleans
// down to nothing yields nil.
func (p *Preparer) Prepare(epoch uint64, text string, cfg domain.Config) []domain.Chunk {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	merged := SplitChunks(cleaned)
	if len(merged) == 0 {
		merged = []string{strings.TrimSpace(cleaned)}
	}
	chunks := make([]domain.Chunk, len(merged))
	for i, text := range merged {
		chunks[i] = domain.Chunk{
			Epoch:  epoch,
			Index:  i,
			Text:   text,
			Config: cfg,
			IsLast: i == len(merged)-1,
		}
	}

	if p.log != nil {
		p.log.Debug("prepared %d chunk(s) for epoch %d", len(chunks), epoch)
	}

	return chunks
}
