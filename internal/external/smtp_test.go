package external

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strings"
	"testing"
	"time"

	"ridecast/internal/types"
)

func newTestSMTPClient(host string, port int) *SMTPClient {
	return NewSMTPClient(SMTPClientConfig{
		Host:        host,
		Port:        port,
		FromAddress: "forecasts@example.com",
		FromName:    "RideCast",
		UseStartTLS: false,
		DialTimeout: time.Second,
		Logger:      discardLogger(),
	})
}

func TestSMTPBuildMessage_MultipartAlternative(t *testing.T) {
	client := newTestSMTPClient("smtp.example.com", 587)

	raw, err := client.buildMessage(types.SendInput{
		To:       "dana@example.com",
		ToName:   "Dana",
		Subject:  "🏍️ RideCast Forecast for Dana",
		BodyHTML: "<p>Ride on.</p>",
		BodyText: "Ride on.",
	})
	if err != nil {
		t.Fatalf("buildMessage failed: %v", err)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("message does not parse as RFC 5322: %v", err)
	}

	from, err := mail.ParseAddress(msg.Header.Get("From"))
	if err != nil {
		t.Fatalf("From header does not parse: %v", err)
	}
	if from.Address != "forecasts@example.com" || from.Name != "RideCast" {
		t.Errorf("unexpected From header %q", msg.Header.Get("From"))
	}

	to, err := mail.ParseAddress(msg.Header.Get("To"))
	if err != nil {
		t.Fatalf("To header does not parse: %v", err)
	}
	if to.Address != "dana@example.com" || to.Name != "Dana" {
		t.Errorf("unexpected To header %q", msg.Header.Get("To"))
	}

	// The emoji subject must survive a Q-encoding round trip.
	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("Subject header does not decode: %v", err)
	}
	if subject != "🏍️ RideCast Forecast for Dana" {
		t.Errorf("expected subject to round-trip, got %q", subject)
	}

	if _, err := time.Parse(time.RFC1123Z, msg.Header.Get("Date")); err != nil {
		t.Errorf("Date header is not RFC1123Z: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("Content-Type does not parse: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Errorf("expected multipart/alternative, got %s", mediaType)
	}

	reader := multipart.NewReader(msg.Body, params["boundary"])

	text, err := reader.NextPart()
	if err != nil {
		t.Fatalf("missing first body part: %v", err)
	}
	if ct := text.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected the plaintext part first, got %s", ct)
	}
	textBody, _ := io.ReadAll(text)
	if string(textBody) != "Ride on." {
		t.Errorf("unexpected text body %q", textBody)
	}

	html, err := reader.NextPart()
	if err != nil {
		t.Fatalf("missing second body part: %v", err)
	}
	if ct := html.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected the HTML part last, got %s", ct)
	}
	htmlBody, _ := io.ReadAll(html)
	if string(htmlBody) != "<p>Ride on.</p>" {
		t.Errorf("unexpected html body %q", htmlBody)
	}

	if _, err := reader.NextPart(); !errors.Is(err, io.EOF) {
		t.Errorf("expected exactly two parts, got extra part (err %v)", err)
	}
}

func TestSMTPSend_ConnectFailureMapsToUpstreamEmail(t *testing.T) {
	// Grab a free port, then close the listener so the dial is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	client := newTestSMTPClient("127.0.0.1", port)

	sendErr := client.Send(context.Background(), types.SendInput{
		To:      "dana@example.com",
		Subject: "test",
	})
	var appErr *types.AppError
	if !errors.As(sendErr, &appErr) {
		t.Fatalf("expected AppError, got: %v", sendErr)
	}
	if appErr.Code != types.ErrCodeUpstreamEmail {
		t.Errorf("expected code %s, got %s", types.ErrCodeUpstreamEmail, appErr.Code)
	}
}

func TestNewSMTPClient_DefaultsDialTimeout(t *testing.T) {
	client := NewSMTPClient(SMTPClientConfig{Host: "smtp.example.com"})
	if client.cfg.DialTimeout != 10*time.Second {
		t.Errorf("expected 10s default dial timeout, got %v", client.cfg.DialTimeout)
	}
}
