package errcode

// Error code convention:
// - 0: no error
// - 4xxx: recoverable business errors (caller can continue)
// - 5xxx: system errors (flow must stop)
const (
	OK              = 0
	ResourceMissing = 4004
	PaymentRequired = 4020
	SystemError     = 5000
)
