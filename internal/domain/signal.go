package domain

// SignalStatus is the outcome code carried by a gateway return redirect.
type SignalStatus string

const (
	SignalStatusOK        SignalStatus = "OK"
	SignalStatusCancelled SignalStatus = "CANCELLED"
	SignalStatusError     SignalStatus = "ERROR"
)

// ReturnSignal is the parsed result of a gateway redirect indicating
// payment outcome. Consumed once; never stored.
type ReturnSignal struct {
	Authority string
	Status    SignalStatus
	RefID     string
}

// VerificationResult is the gateway's answer to a verify call.
// Success and Pending are mutually exclusive; neither set means the
// gateway explicitly reported the transaction as failed.
type VerificationResult struct {
	Success bool
	Pending bool
}
