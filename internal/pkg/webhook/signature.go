package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/agenciohq/agencio/app/models"
	"github.com/agenciohq/agencio/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
)

// SignatureScheme describes how one provider frames its HMAC-SHA256 webhook
// signature: which header carries it and whether the hex digest is prefixed.
type SignatureScheme struct {
	Provider string
	Header   string
	Prefix   string
}

// SchemeFor returns the signature framing for a provider. The lead-gen and
// messaging providers both use the hub-style "sha256=" prefixed header; the
// payments provider sends the bare hex digest in its own header.
func SchemeFor(provider string) SignatureScheme {
	switch provider {
	case models.ProviderPayments:
		return SignatureScheme{Provider: provider, Header: "X-Provider-Signature"}
	default:
		return SignatureScheme{Provider: provider, Header: "X-Hub-Signature-256", Prefix: "sha256="}
	}
}

// Verify checks the signature header against HMAC-SHA256 of the exact raw
// request bytes. The comparison is constant time over the full framed string
// including the prefix. It must run before any JSON decoding because
// re-serialization is not guaranteed byte-identical to the signed payload.
func (s SignatureScheme) Verify(rawBody []byte, headerValue, secret string) bool {
	sig := strings.TrimSpace(headerValue)
	sec := strings.TrimSpace(secret)
	if sig == "" || sec == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(sec))
	mac.Write(rawBody)
	expected := s.Prefix + hex.EncodeToString(mac.Sum(nil))

	if len(sig) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1
}

// Enforced reports whether signature verification is mandatory for a
// provider. Payment callbacks always verify; for the other providers a
// permissive mode exists for local testing in non-production, and every
// bypass is logged so it can never become a silent default.
func Enforced(provider string) bool {
	if provider == models.ProviderPayments {
		return true
	}
	if env.GetEnv("WEBHOOK_SIGNATURE_MODE", "strict") == "permissive" && env.IsDev() {
		log.Warnf("[Webhook] signature verification bypassed for provider %s (permissive mode)", provider)
		return false
	}
	return true
}

// VerifyHandshake implements the subscription handshake used by the lead-gen
// and messaging providers: echo the challenge only when the mode is
// "subscribe" and the verify token matches.
func VerifyHandshake(mode, token, expectedToken string) bool {
	if mode != "subscribe" {
		return false
	}
	expected := strings.TrimSpace(expectedToken)
	got := strings.TrimSpace(token)
	if expected == "" || len(got) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
