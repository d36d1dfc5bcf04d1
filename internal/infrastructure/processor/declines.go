package processor

// declineMessages is the fixed mapping from processor failure codes to
// user-safe messages. Raw processor payloads never reach clients.
var declineMessages = map[string]string{
	"INSUFFICIENT_FUNDS":   "The card has insufficient funds to complete this purchase.",
	"CARD_DECLINED":        "The card was declined. Try a different payment method.",
	"CARD_EXPIRED":         "The card has expired. Update the card details and try again.",
	"INVALID_CARD":         "The card number is invalid.",
	"INVALID_CVV":          "The security code does not match.",
	"AVS_MISMATCH":         "The billing address does not match the card on file.",
	"FRAUD_SUSPECTED":      "The payment was flagged by the card issuer. Contact your bank.",
	"LIMIT_EXCEEDED":       "The purchase exceeds the card's transaction limit.",
	"CURRENCY_UNSUPPORTED": "The card does not support this currency.",
}

const genericDeclineMessage = "payment failed"

// DeclineMessage returns the user-safe message for a processor failure code.
// Unknown codes map to a generic message; the raw code still travels alongside
// for client-side branching.
func DeclineMessage(code string) string {
	if msg, ok := declineMessages[code]; ok {
		return msg
	}
	return genericDeclineMessage + " (" + code + ")"
}
