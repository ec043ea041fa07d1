package delivery_test

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sunny/internal/delivery"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/summarize"
	"sunny/internal/testsupport"
)

type fakeMailer struct {
	sent []delivery.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg delivery.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) Configured() error { return nil }

func deliverableSession(t *testing.T, store *sessions.Store, dir string) *sessions.Session {
	t.Helper()
	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)

	reportPath := filepath.Join(dir, "report.docx")
	if err := os.WriteFile(reportPath, []byte("report bytes"), 0o644); err != nil {
		t.Fatalf("write report fixture: %v", err)
	}
	session.ReportFile = reportPath

	summary := summarize.MeetingSummary{
		ExecutiveSummary: "We planned the launch.",
		ActionItems:      []string{"alice: announcement"},
		Confidence:       0.9,
	}
	encoded, err := summary.Encode()
	if err != nil {
		t.Fatalf("encode summary: %v", err)
	}
	session.SummaryJSON = encoded
	return session
}

func TestStageSendsFollowupEmail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mailer := &fakeMailer{}
	handler := delivery.NewStageWithMailer(cfg, store, logging.NewNop(), mailer)

	session := deliverableSession(t, store, t.TempDir())

	ctx := context.Background()
	if err := handler.Prepare(ctx, session); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, session); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "notes@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if msg.AttachmentPath != session.ReportFile {
		t.Fatalf("report not attached: %q", msg.AttachmentPath)
	}
	if !strings.Contains(msg.Body, "We planned the launch.") {
		t.Fatalf("body missing summary:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "alice: announcement") {
		t.Fatalf("body missing action items:\n%s", msg.Body)
	}
}

func TestStageClassifiesInvalidRecipient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := delivery.NewStageWithMailer(cfg, store, logging.NewNop(), &fakeMailer{})

	session := deliverableSession(t, store, t.TempDir())
	session.RecipientEmail = "not-an-address"

	err := handler.Prepare(context.Background(), session)
	if !services.IsKind(err, services.KindInvalidRecipient) {
		t.Fatalf("expected invalid_recipient, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("invalid recipient must not be retried")
	}
}

func TestStageClassifiesTransientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mailer := &fakeMailer{err: errors.New("connection refused")}
	handler := delivery.NewStageWithMailer(cfg, store, logging.NewNop(), mailer)

	session := deliverableSession(t, store, t.TempDir())

	err := handler.Execute(context.Background(), session)
	if !services.IsKind(err, services.KindDeliveryTransient) {
		t.Fatalf("expected delivery_transient, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("transient delivery failures should retry")
	}
}

func TestSMTPMailerBuildsMultipartMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mailer := delivery.NewSMTPMailer(cfg)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotPayload []byte
	mailer.WithSendFunc(func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotPayload = addr, from, to, msg
		return nil
	})

	attachment := filepath.Join(t.TempDir(), "report.docx")
	if err := os.WriteFile(attachment, []byte("docx bytes"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	err := mailer.Send(context.Background(), delivery.Message{
		To:             "notes@example.com",
		Subject:        "Meeting report",
		Body:           "attached",
		AttachmentPath: attachment,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.test.invalid:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if gotFrom != "sunny@test.invalid" || len(gotTo) != 1 || gotTo[0] != "notes@example.com" {
		t.Fatalf("unexpected envelope %q %v", gotFrom, gotTo)
	}
	payload := string(gotPayload)
	if !strings.Contains(payload, "multipart/mixed") {
		t.Fatalf("expected multipart message:\n%s", payload)
	}
	if !strings.Contains(payload, `filename="report.docx"`) {
		t.Fatalf("attachment headers missing:\n%s", payload)
	}
}

func TestSMTPMailerRequiresConfiguration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Email.SMTPHost = ""
	mailer := delivery.NewSMTPMailer(cfg)
	if err := mailer.Configured(); err == nil {
		t.Fatal("expected configuration error")
	}
}
