package errors_test

import (
	"fmt"
	"io"

	"github.com/shayan-nathan/airbyte/pkg/errors"
)

func Example() {
	err := errors.New(errors.ErrorTypeConnection, "notion returned 502").
		WithDetail("path", "/v1/search").
		WithDetail("status", 502)

	fmt.Println(err.Error())
	fmt.Println(errors.IsRetryable(err))

	// Output:
	// connection: notion returned 502
	// true
}

func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeData, "failed to decode block page")

	fmt.Println(errors.IsType(err, errors.ErrorTypeData))
	fmt.Println(errors.Is(err, io.ErrUnexpectedEOF))

	// Output:
	// true
	// true
}

func ExampleTypeOf() {
	exhausted := errors.Wrap(
		errors.New(errors.ErrorTypeConnection, "bad gateway"),
		errors.ErrorTypeRetryExhausted, "giving up after 6 attempts")

	fmt.Println(errors.TypeOf(exhausted))
	fmt.Println(errors.TypeOf(io.EOF))
	fmt.Println(errors.IsRetryable(exhausted))

	// Output:
	// retry_exhausted
	// internal
	// false
}
