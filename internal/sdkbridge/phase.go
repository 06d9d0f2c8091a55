package sdkbridge

// Phase is the lifecycle position of a Client.
type Phase int

const (
	Uninitialized Phase = iota
	Initializing
	Ready
	Connecting
	Connected
	FetchingSubAccount
	SubAccountAvailable
)

var phaseNames = [...]string{
	Uninitialized:       "uninitialized",
	Initializing:        "initializing",
	Ready:               "ready",
	Connecting:          "connecting",
	Connected:           "connected",
	FetchingSubAccount:  "fetching-sub-account",
	SubAccountAvailable: "sub-account-ready",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
