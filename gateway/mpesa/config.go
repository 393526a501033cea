package mpesa

import (
	"encoding/base64"
	"time"
)

const (
	transactionTypePayBillOnline = "CustomerPayBillOnline"
	timestampLayout              = "20060102150405"
	defaultTimeout               = 10 * time.Second
)

// eat is the provider's local time; password timestamps must be in it.
var eat = time.FixedZone("EAT", 3*60*60)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	// Timeout bounds each outbound call, token fetch included.
	Timeout time.Duration
}

func timestamp(now time.Time) string {
	return now.In(eat).Format(timestampLayout)
}

// password is base64(shortcode + passkey + timestamp).
func password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
