package notify

import (
	"github.com/rs/zerolog"

	"github.com/ayusman/campuswatch/internal/liveview"
)

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging through l.
func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{logger: l}
}

func (s *LogSink) NotifySuccess(text string) {
	s.logger.Info().Msg(text)
}

func (s *LogSink) NotifyError(text string) {
	s.logger.Warn().Msg(text)
}

func (s *LogSink) RecordCommand(rec liveview.CommandRecord) {
	s.logger.Debug().
		Str("id", rec.ID.String()).
		Str("command", string(rec.Command)).
		Str("target", rec.Target).
		Bool("success", rec.Success).
		Dur("took", rec.Duration()).
		Msg("Command recorded")
}
