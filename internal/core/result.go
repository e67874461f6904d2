package core

import "github.com/dkeye/meetcore/internal/domain"

// Result is what every correlated request completes with. Code 0 is success.
type Result struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Kind    domain.ErrorKind `json:"-"`
}

// Callback receives exactly one Result per request.
type Callback func(Result)

func OK() Result { return Result{Code: domain.CodeOK, Message: "success"} }

// ResultOf converts a surfaced error into a Result.
func ResultOf(err *domain.Error) Result {
	if err == nil {
		return OK()
	}
	return Result{Code: err.Code, Message: err.Message, Kind: err.Kind}
}

func (r Result) OK() bool { return r.Code == domain.CodeOK }

func (r Result) Retryable() bool { return r.Kind.Retryable() }

// Err returns nil on success and a *domain.Error otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return domain.NewError(r.Kind, r.Code, r.Message)
}

// Executor runs callbacks on one caller-chosen context, one at a time, in post order.
type Executor interface {
	Post(fn func())
}
