package errors

var userMessages = map[Kind]string{
	KindNotFound:                 "I couldn't find that token on this chain. Paste its contract address and I'll look it up directly.",
	KindAddressLookupFailed:      "I couldn't read that contract on-chain. Check the address and the network, then try again.",
	KindInvalidAddressFormat:     "That doesn't look like a valid contract address for this network.",
	KindWalletNotConnected:       "Connect a wallet before placing an order.",
	KindUserRejectedSwitch:       "The network switch was declined, so the order was not placed.",
	KindSwitchUnsupported:        "Your wallet can't switch networks automatically. Switch to the required network manually and try again.",
	KindChainMismatchAfterSwitch: "The wallet reported a different network after switching. Please try again.",
	KindClientUnavailable:        "The network connection isn't available right now. Please try again shortly.",
	KindInsufficientBalance:      "Your balance is too low for this order.",
	KindApprovalRejected:         "The token approval was not completed, so the order was not placed.",
	KindSigningRejected:          "The transaction signature was declined, so the order was not placed.",
	KindSubmissionFailed:         "The order could not be submitted. Please try again.",
	KindQuoteExpired:             "This quote has been replaced by a newer one. Use the latest quote to continue.",
	KindPriceMoved:               "The price moved past your slippage tolerance since the quote was shown. Ask for a fresh quote.",
	KindSimulationFailed:         "A dry run of this transaction failed, so nothing was sent. The price or your balance may have changed; ask for a fresh quote.",
}

const genericMessage = "Something went wrong while processing your order. Please try again."

// UserMessage returns the single human-readable message shown for a failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := userMessages[KindOf(err)]; ok {
		return msg
	}
	return genericMessage
}
