package domain

// OTPRecord is a one-time code held in the code store.
// Code holds the bcrypt hash of the code, never the code itself.
// ExpiresAt is a Unix timestamp; stores with native TTL may leave it zero.
type OTPRecord struct {
	Key       string `json:"key" dynamodbav:"key"`
	Code      string `json:"code" dynamodbav:"code"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
