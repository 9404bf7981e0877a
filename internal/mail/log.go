package mail

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log.Named("mail")}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.log.Info("email",
		zap.String("id", id),
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return id, nil
}
