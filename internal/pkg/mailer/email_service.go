package mailer

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendCaseReceipt(toEmail string, receipt CaseReceipt) error
}

// CaseReceipt is the content of a "case created" mail.
type CaseReceipt struct {
	CaseId     int64
	Title      string
	ClientName string
	CaseURL    string
	FileName   string
	PDF        []byte
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	send        func(m ...*gomail.Message) error
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)
	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		send:        d.DialAndSend,
	}
}

var receiptBody = template.Must(template.New("receipt").Parse(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Case #{{.CaseId}} recorded</h2>
			<p><strong>{{.Title}}</strong>{{if .ClientName}} for {{.ClientName}}{{end}}</p>
			{{if .CaseURL}}<p><a href="{{.CaseURL}}">Open the case</a></p>{{end}}
			<p>The case document is attached.</p>
		</div>
`))

func (s *emailService) buildReceipt(toEmail string, r CaseReceipt) (*gomail.Message, error) {
	var body strings.Builder
	if err := receiptBody.Execute(&body, r); err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Case #%d: %s", r.CaseId, r.Title))
	m.SetBody("text/html", body.String())

	if len(r.PDF) > 0 {
		data := r.PDF
		m.Attach(r.FileName,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		)
	}
	return m, nil
}

func (s *emailService) SendCaseReceipt(toEmail string, receipt CaseReceipt) error {
	m, err := s.buildReceipt(toEmail, receipt)
	if err != nil {
		return fmt.Errorf("failed to build receipt: %w", err)
	}

	if err := s.send(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send receipt for case %d to %s: %v\n", receipt.CaseId, toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Receipt for case %d sent to %s\n", receipt.CaseId, toEmail)
	return nil
}
