package alert

import (
	"fmt"
	"log/slog"
	"time"

	gomail "gopkg.in/mail.v2"
)

// smtpTimeout はSMTP接続のタイムアウト。
const smtpTimeout = 10 * time.Second

// EmailConfig はSMTP配信の設定を保持する。
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	Enabled    bool
}

// Sender はダイジェストメールの配信インターフェース。
type Sender interface {
	Send(toEmail string, digest *RenderedDigest) error
}

// EmailSender はSMTP経由でダイジェストを配信するSenderの実装。
type EmailSender struct {
	cfg    EmailConfig
	logger *slog.Logger
}

// NewEmailSender は指定されたSMTP設定でEmailSenderを生成する。
func NewEmailSender(cfg EmailConfig, logger *slog.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, logger: logger}
}

// Send はHTML本文とプレーンテキストフォールバック付きでメールを配信する。
// 配信が無効化されている場合は何もせず成功を返す。
func (s *EmailSender) Send(toEmail string, digest *RenderedDigest) error {
	if !s.cfg.Enabled {
		s.logger.Debug("メール配信は無効化されています",
			slog.String("to", toEmail),
		)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", digest.Subject)
	m.SetBody("text/plain", digest.Text)
	m.AddAlternative("text/html", digest.HTML)

	dialer := gomail.NewDialer(s.cfg.SMTPServer, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	dialer.Timeout = smtpTimeout

	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}

	s.logger.Info("ダイジェストメールを送信しました",
		slog.String("to", toEmail),
		slog.String("subject", digest.Subject),
	)
	return nil
}

// compile-time interface check
var _ Sender = (*EmailSender)(nil)
