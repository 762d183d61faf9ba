// Command smtptest sends one email with the configured SMTP settings.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/pkg/config"
)

func main() {
	to := pflag.StringP("to", "t", "", "recipient address (required)")
	pflag.Parse()

	if *to == "" {
		fmt.Fprintln(os.Stderr, "usage: smtptest --to someone@example.com")
		os.Exit(2)
	}

	if err := run(*to); err != nil {
		fmt.Fprintf(os.Stderr, "smtp test failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Test email sent")
}

func run(to string) error {
	cfg := config.LoadSMTPConfig()
	fmt.Printf("Connecting to %s:%d (ssl=%t) as %q\n", cfg.Host, cfg.Port, cfg.Secure, cfg.User)

	mailer := notification.NewSMTPMailer(cfg)
	if err := mailer.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	fmt.Println("SMTP connection ok")

	subject, body, err := notification.Render(notification.TemplateSMTPTest, to, map[string]string{
		"sent_at": time.Now().UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return mailer.Send(ctx, to, subject, body)
}
