package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

type Template string

const (
	TemplateWelcome                Template = "welcome"
	TemplateDepositConfirmed       Template = "deposit_confirmed"
	TemplateDepositRejected        Template = "deposit_rejected"
	TemplateWithdrawalApproved     Template = "withdrawal_approved"
	TemplateWithdrawalRejected     Template = "withdrawal_rejected"
	TemplateCryptoDepositConfirmed Template = "crypto_deposit_confirmed"
	TemplateCryptoDepositRejected  Template = "crypto_deposit_rejected"
	TemplateKYCApproved            Template = "kyc_approved"
	TemplateKYCRejected            Template = "kyc_rejected"
	TemplateSMTPTest               Template = "smtp_test"
)

type emailTemplate struct {
	subject string
	body    string
}

const layout = `<body style="margin:0;padding:0;background:#f6f6f6;font-family:Arial,sans-serif;">
<table width="100%" cellpadding="0" cellspacing="0" border="0" style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:16px;">
<tr><td style="padding:32px;">
<h1 style="margin:0 0 16px 0;font-size:24px;color:#111;">{{.Title}}</h1>
<p style="margin:0 0 12px 0;font-size:16px;color:#222;">Hi {{.Name}},</p>
{{.Content}}
<p style="margin:24px 0 0 0;font-size:13px;color:#888;">Varlixo support team</p>
</td></tr>
</table>
</body>`

var templates = map[Template]emailTemplate{
	TemplateWelcome: {
		subject: "Welcome to Varlixo",
		body:    `<p>Your account is ready. Your referral code is <b>{{.code}}</b>.</p>`,
	},
	TemplateDepositConfirmed: {
		subject: "Deposit confirmed",
		body:    `<p>Your deposit of <b>${{.amount}}</b> via {{.method}} has been confirmed and credited to your wallet.</p>`,
	},
	TemplateDepositRejected: {
		subject: "Deposit rejected",
		body:    `<p>Your deposit of <b>${{.amount}}</b> was rejected.</p><p>Reason: {{.reason}}</p>`,
	},
	TemplateWithdrawalApproved: {
		subject: "Withdrawal approved",
		body:    `<p>Your withdrawal of <b>${{.amount}}</b> was approved. Net payout after fees: <b>${{.net}}</b>.</p>`,
	},
	TemplateWithdrawalRejected: {
		subject: "Withdrawal rejected",
		body:    `<p>Your withdrawal of <b>${{.amount}}</b> was rejected.</p><p>Reason: {{.reason}}</p>`,
	},
	TemplateCryptoDepositConfirmed: {
		subject: "Crypto deposit confirmed",
		body:    `<p>Your {{.currency}} deposit ({{.network}}) was confirmed. <b>${{.amount}}</b> has been credited.</p><p>Transaction: {{.tx_hash}}</p>`,
	},
	TemplateCryptoDepositRejected: {
		subject: "Crypto deposit rejected",
		body:    `<p>Your {{.currency}} deposit to {{.address}} was rejected.</p><p>Reason: {{.reason}}</p>`,
	},
	TemplateKYCApproved: {
		subject: "Identity verified",
		body:    `<p>Your identity verification was approved.</p>`,
	},
	TemplateKYCRejected: {
		subject: "Identity verification rejected",
		body:    `<p>Your identity verification was rejected.</p><p>Reason: {{.reason}}</p>`,
	},
	TemplateSMTPTest: {
		subject: "Varlixo SMTP test",
		body:    `<p>This is a test message sent at {{.sent_at}}.</p>`,
	},
}

var layoutTmpl = template.Must(template.New("layout").Parse(layout))

// Render returns the subject and HTML body for a template.
func Render(name Template, recipient string, data map[string]string) (string, string, error) {
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	bodyTmpl, err := template.New(string(name)).Option("missingkey=zero").Parse(t.body)
	if err != nil {
		return "", "", err
	}

	var content bytes.Buffer
	if err := bodyTmpl.Execute(&content, data); err != nil {
		return "", "", err
	}

	var out bytes.Buffer
	err = layoutTmpl.Execute(&out, map[string]interface{}{
		"Title":   t.subject,
		"Name":    recipient,
		"Content": template.HTML(content.String()),
	})
	if err != nil {
		return "", "", err
	}
	return t.subject, out.String(), nil
}
