package app

import "github.com/dkeye/meetcore/internal/domain"

// ErrorPolicy maps a failed completion onto the kind the caller sees.
// hint is the adapter's own classification and may be KindNone.
type ErrorPolicy interface {
	Classify(req RequestKind, code int, hint domain.ErrorKind) domain.ErrorKind
}

type SimplePolicy struct{}

func (SimplePolicy) Classify(req RequestKind, code int, hint domain.ErrorKind) domain.ErrorKind {
	if code == domain.CodeOK {
		return domain.KindNone
	}
	switch code {
	case domain.CodeTimeout:
		return domain.KindNetworkTimeout
	case domain.CodeNetwork:
		return domain.KindNetwork
	case domain.CodeCanceled:
		return domain.KindCanceled
	}
	if hint != domain.KindNone {
		return hint
	}
	// An unclassified rejection of the login itself means the backend refused the credential.
	if req == RequestLogin {
		return domain.KindInvalidCredential
	}
	return domain.KindBackend
}
