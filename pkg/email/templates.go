package email

import (
	"fmt"
	"html"
)

// InviteEmailData is the data for the new-member invitation e-mail.
type InviteEmailData struct {
	FirstName         string
	Email             string
	CenterName        string
	Role              string
	TemporaryPassword string
	LoginURL          string
	AppName           string
}

// BuildMemberInviteEmail creates the e-mail sent when a new user is added to a
// center. It carries the generated temporary password.
func BuildMemberInviteEmail(data InviteEmailData) Message {
	appName := data.AppName
	if appName == "" {
		appName = "MedCenter"
	}
	firstName := data.FirstName
	if firstName == "" {
		firstName = "there"
	}

	subject := fmt.Sprintf("You have been added to %s on %s", data.CenterName, appName)

	textBody := fmt.Sprintf(`Hi %s,

You have been added to %s as %s.

Sign in with:
  Email: %s
  Temporary password: %s

%s

Please change your password after the first sign-in.

Thanks,
The %s Team`,
		firstName, data.CenterName, data.Role, data.Email, data.TemporaryPassword, data.LoginURL, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #0f766e;">Hi %s,</h2>
    <p>You have been added to <strong>%s</strong> as <strong>%s</strong>.</p>
    <p>Email: <code>%s</code><br>Temporary password: <code>%s</code></p>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #0f766e; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Sign in</a>
    </p>
    <p>Please change your password after the first sign-in.</p>
    <p>Thanks,<br>The %s Team</p>
</body>
</html>`,
		html.EscapeString(firstName), html.EscapeString(data.CenterName), html.EscapeString(data.Role),
		html.EscapeString(data.Email), html.EscapeString(data.TemporaryPassword),
		html.EscapeString(data.LoginURL), html.EscapeString(appName))

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// ReceiptEmailData is the data for a payment receipt.
type ReceiptEmailData struct {
	Email         string
	PatientName   string
	CenterName    string
	InvoiceNumber string
	Amount        int64
	Currency      string
	Outstanding   int64
	Reference     string
}

// BuildPaymentReceiptEmail creates a plain-text receipt for a settled payment.
func BuildPaymentReceiptEmail(data ReceiptEmailData) Message {
	subject := fmt.Sprintf("Payment received for invoice %s", data.InvoiceNumber)
	body := fmt.Sprintf(`Dear %s,

%s received your payment of %d %s for invoice %s.
Reference: %s
Remaining balance: %d %s

Thank you.`,
		data.PatientName, data.CenterName, data.Amount, data.Currency, data.InvoiceNumber,
		data.Reference, data.Outstanding, data.Currency)

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: body,
	}
}
