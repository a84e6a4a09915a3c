// Package mailer sends transactional email. Delivery is best-effort:
// failures are reported to the caller for logging but must never abort
// the operation that triggered the send.
package mailer

type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

type Service interface {
	Send(msg *Message) error
}
