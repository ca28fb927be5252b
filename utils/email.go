package utils

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/nimastyle/nima-backend/config"
)

// SendEmail sends a transactional email via SendGrid
func SendEmail(toName, toEmail, subject, textContent, htmlContent string) error {
	if config.SendGridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is not set")
	}

	from := mail.NewEmail("Nima", "hello@nimastyle.app")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, textContent, htmlContent)

	client := sendgrid.NewSendClient(config.SendGridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %v", toEmail, err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected email to %s: status %d", toEmail, response.StatusCode)
	}

	log.Printf("Email sent to %s (status %d)", toEmail, response.StatusCode)
	return nil
}

// SendOTPEmail sends the verification code used by signup and password reset
func SendOTPEmail(toName, toEmail, otp string) error {
	subject := "Your Nima verification code"
	text := fmt.Sprintf("Hi %s,\n\nYour verification code is: %s\n\nThis code expires in 10 minutes.", toName, otp)
	html := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px;">
			<h2>Your verification code</h2>
			<p>Hi %s,</p>
			<p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">%s</p>
			<p>This code expires in 10 minutes. If you didn't request it, you can ignore this email.</p>
		</div>`, toName, otp)
	return SendEmail(toName, toEmail, subject, text, html)
}
