package surge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "surge-signature"

// ValidateSignature checks a Surge webhook signature header of the form
// "t=<timestamp>,v1=<hex>[,v1=<hex>...]" against the raw request body.
// With no secret configured every request passes.
func ValidateSignature(secret, header string, body []byte) bool {
	if secret == "" {
		log.Printf("surge: webhook secret not set, skipping signature check")
		return true
	}

	var ts string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			candidates = append(candidates, v)
		}
	}

	expected := []byte(Sign(secret, ts, body))
	for _, c := range candidates {
		if hmac.Equal([]byte(c), expected) {
			return true
		}
	}
	return false
}

// Sign returns the hex v1 signature for a timestamp and body.
func Sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
