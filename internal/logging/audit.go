package logging

import (
	"go.uber.org/zap"

	"morphogen/internal/events"
)

// auditSink writes every engine event as one structured entry.
type auditSink struct {
	logger *zap.Logger
}

// NewSink returns an events.Sink that logs each event to logger, or to the
// audit category when logger is nil.
func NewSink(logger *zap.Logger) events.Sink {
	if logger == nil {
		logger = Get(CategoryAudit)
	}
	return auditSink{logger: logger}
}

func (s auditSink) HandleEvent(ev events.Event) {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.Uint64("tick", ev.Tick),
		zap.Uint64("artifact_id", ev.ArtifactID),
		zap.Uint64("generation", ev.Generation),
	}
	switch ev.Kind {
	case events.Interaction:
		fields = append(fields, zap.Uint64("interaction_count", ev.InteractionCount))
	case events.ArtifactCreated:
		fields = append(fields, zap.String("genome", ev.Genome), zap.Bool("mutated", ev.Mutated))
		if ev.ParentA != 0 {
			fields = append(fields, zap.Uint64("parent_a", ev.ParentA), zap.Uint64("parent_b", ev.ParentB))
		}
	case events.EvolutionTriggered:
		fields = append(fields, zap.Uint64("parent_a", ev.ParentA), zap.Uint64("parent_b", ev.ParentB))
	}
	s.logger.Debug("event", fields...)
}
