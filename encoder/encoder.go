package encoder

import "context"

// Encoder converts a slice of typed records into the binary payload offered
// downstream.
//
// Implementations must be safe for concurrent use unless documented otherwise.
type Encoder[iType any] interface {
	Encode(ctx context.Context, items []iType) (data []byte, err error)
	FileExtension() string
	ContentType() string
}
