package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

// VerifySignature checks a Paymongo-Signature header against the raw request
// body. The header carries comma-separated pairs: t=<unix ts>, then te= (test
// mode) or li= (live mode) holding hex HMAC-SHA256 over "<ts>.<body>" keyed by
// the webhook secret. Callers must verify before parsing the body.
func (c *Client) VerifySignature(body []byte, header string) error {
	if c == nil || c.webhookSecret == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "webhook secret not configured")
	}
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range signatures {
		decoded, decodeErr := hex.DecodeString(candidate)
		if decodeErr != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
}

func parseSignatureHeader(header string) (timestamp string, signatures []string, err error) {
	if strings.TrimSpace(header) == "" {
		return "", nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook signature header")
	}
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "te", "li":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed webhook signature header")
	}
	return timestamp, signatures, nil
}
