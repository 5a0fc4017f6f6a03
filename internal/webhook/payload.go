package webhook

import (
	"fmt"

	"github.com/feral-file/ff-webhook-engine/internal/adapter"
)

// PayloadBuilder turns an envelope into the canonical bytes stored on a delivery
type PayloadBuilder struct {
	json adapter.JSON
	jcs  adapter.JCS
}

// NewPayloadBuilder creates a payload builder
func NewPayloadBuilder(json adapter.JSON, jcs adapter.JCS) *PayloadBuilder {
	return &PayloadBuilder{json: json, jcs: jcs}
}

// Build serializes the envelope as RFC 8785 canonical JSON: keys sorted, no insignificant
// whitespace. The same envelope always yields the same bytes, so signatures are reproducible.
func (b *PayloadBuilder) Build(envelope Envelope) ([]byte, error) {
	if len(envelope.Data) == 0 {
		envelope.Data = []byte("null")
	}

	raw, err := b.json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook envelope: %w", err)
	}

	canonical, err := b.jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize webhook envelope: %w", err)
	}

	return canonical, nil
}
