package transformer

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transformer converts a raw message body into a typed record.
type Transformer[O any] interface {
	Transform(ctx context.Context, body []byte) (O, error)
}

// JSON decodes message bodies as JSON into O.
type JSON[O any] struct{}

func (JSON[O]) Transform(_ context.Context, body []byte) (O, error) {
	var out O
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode json body: %w", err)
	}
	return out, nil
}

// Func adapts a plain function into a Transformer.
type Func[O any] func(ctx context.Context, body []byte) (O, error)

func (f Func[O]) Transform(ctx context.Context, body []byte) (O, error) {
	return f(ctx, body)
}
