package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign: HMAC-SHA256 hex, skema signature Razorpay.
func Sign(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCheckoutSignature: signature checkout dihitung atas
// "{rzp_order_id}|{rzp_payment_id}" dengan key secret.
func VerifyCheckoutSignature(secret, rzpOrderID, rzpPaymentID, sig string) bool {
	expected := Sign(secret, rzpOrderID+"|"+rzpPaymentID)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// VerifyWebhookSignature: signature webhook dihitung atas raw body persis
// seperti yang diterima; body yang sudah di-parse ulang tidak boleh dipakai.
func VerifyWebhookSignature(secret string, body []byte, sig string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
