package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendgridService struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

var _ Service = (*sendgridService)(nil)

func NewSendGridService(key, appName, fromEmail string) Service {
	return &sendgridService{
		client:     sendgrid.NewSendClient(key),
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (svc *sendgridService) Send(msg *Message) error {
	to := sgmail.NewEmail(msg.ToName, msg.To)
	email := sgmail.NewSingleEmail(svc.from, svc.subjPrefix+msg.Subject, to, msg.TextBody, msg.HTMLBody)

	resp, err := svc.client.Send(email)
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", msg.To, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sending email to %s: status %d: %s", msg.To, resp.StatusCode, resp.Body)
	}
	return nil
}
