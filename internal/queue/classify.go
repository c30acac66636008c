package queue

import (
	"strings"

	"github.com/adjutant-ai/adjutant/internal/providers"
)

type failureKind int

const (
	failureTransient failureKind = iota
	failureAuth
	failureBadRequest
)

// badRequestSignature is how a 4xx rejection from the completion service
// shows up in error text ("400 {"type":"error",...}").
const badRequestSignature = "400 {"

func classify(err error) failureKind {
	if providers.IsAuthError(err) {
		return failureAuth
	}
	if strings.Contains(err.Error(), badRequestSignature) {
		return failureBadRequest
	}
	return failureTransient
}
