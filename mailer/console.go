package mailer

import (
	"sync"

	"go.uber.org/zap"
)

// ConsoleService logs messages instead of delivering them. Used when no
// SendGrid key is configured and in tests; sent messages are retained
// for inspection.
type ConsoleService struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Service = (*ConsoleService)(nil)

func NewConsoleService(logger *zap.Logger) *ConsoleService {
	return &ConsoleService{logger: logger}
}

func (svc *ConsoleService) Send(msg *Message) error {
	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()

	svc.logger.Info("email (console)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Sent returns a copy of every message handed to Send.
func (svc *ConsoleService) Sent() []Message {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]Message(nil), svc.sent...)
}
