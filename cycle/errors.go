package cycle

import "fmt"

// Kind classifies cycle errors. None of them is retried within a cycle;
// the next wake is the retry.
type Kind int

const (
	// ConnectivityError: the network never came up.
	ConnectivityError Kind = iota + 1
	// ResolutionError: the listing failed, was empty, or the resolved
	// identifier cannot be stored.
	ResolutionError
	// TransferError: bad status, bad declared size, allocation failure or
	// short read.
	TransferError
	// RenderError: decode or panel failure.
	RenderError
	// MarkerError: the marker region could not be read or written.
	MarkerError
)

func (k Kind) String() string {
	switch k {
	case ConnectivityError:
		return "ConnectivityError"
	case ResolutionError:
		return "ResolutionError"
	case TransferError:
		return "TransferError"
	case RenderError:
		return "RenderError"
	case MarkerError:
		return "MarkerError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// notice is the text painted on a blank panel for the error.
func (k Kind) notice() string {
	switch k {
	case ConnectivityError:
		return "WiFi failed"
	case ResolutionError:
		return "No images in repo"
	case TransferError:
		return "Download failed"
	case RenderError:
		return "Display failed"
	}
	return "Marker storage failed"
}

// Error is a cycle failure detected in State.
type Error struct {
	Kind  Kind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s in %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
