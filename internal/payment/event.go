package payment

// Payment providers.
const (
	ProviderStripe = "stripe"
	ProviderZiina  = "ziina"
)

// EventKind classifies a provider callback after decoding.
type EventKind int

const (
	// EventIgnored is a valid event the application does not act on.
	EventIgnored EventKind = iota
	// EventCompleted is a confirmed charge; the unlock must be applied.
	EventCompleted
	// EventFailed is a failed attempt; the matching Payment is marked failed.
	EventFailed
)

// Event is the provider-neutral result of decoding a webhook delivery.
type Event struct {
	Provider      string
	Kind          EventKind
	TransactionID string
	Amount        int64
	Currency      string
	Context       CheckoutContext
}
