package domain

type SessionState int32

const (
	LoggedOut SessionState = iota
	LoggingIn
	Authenticated
	LoggingOut
)

func (s SessionState) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggingIn:
		return "logging_in"
	case Authenticated:
		return "authenticated"
	case LoggingOut:
		return "logging_out"
	default:
		return "unknown"
	}
}
