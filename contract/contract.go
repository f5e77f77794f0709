//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Generic workers are reported without their type arguments.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	for i, r := range name {
		if r == '[' {
			return name[:i]
		}
	}
	return name
}

// Publisher pushes a payload to every subscriber of a destination
type Publisher interface {
	Publish(destination string, body []byte)
}
