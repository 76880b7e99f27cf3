package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/alem-hub/academy-finance/pkg/logger"
)

// IDGeneratorImpl implements command.IDGenerator.
type IDGeneratorImpl struct{}

func NewIDGenerator() *IDGeneratorImpl {
	return &IDGeneratorImpl{}
}

func (g *IDGeneratorImpl) NewID() string {
	return uuid.New().String()
}

// LogNotifier implements eventhandler.Notifier by writing notifications to the log.
// The school messaging service consumes them from there.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{logger: log.With(logger.Component("notifier"))}
}

func (n *LogNotifier) Notify(ctx context.Context, recipientID, subject, body string) error {
	n.logger.Info("notification",
		logger.UserID(recipientID),
		logger.String("subject", subject),
		logger.String("body", body),
	)
	return nil
}
