package sync_queue

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	QUEUE_VERSION = 1
	QUEUE_MAGIC   = "FILE_SYNC_QUEUE"
)

// jsonHeader is used for marshaling/unmarshaling metadata for queue JSON files.
type jsonHeader struct {
	Version int    `json:"version"`
	Magic   string `json:"magic"`
	Created string `json:"created"`
}

type jsonQueue struct {
	Header jsonHeader `json:"header"`
	Items  []Item     `json:"items"`
}

// readQueue decodes a queue file and validates its header and items.
func readQueue(r io.Reader) (Queue, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var doc jsonQueue
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode queue: %w", err)
	}

	if err := doc.Header.validate(); err != nil {
		return nil, fmt.Errorf("invalid queue header: %w", err)
	}

	queue := Queue(doc.Items)
	if queue == nil {
		queue = Queue{}
	}
	if err := queue.Validate(); err != nil {
		return nil, err
	}
	return queue, nil
}

// writeQueue encodes the queue with a fresh header. Item order is preserved.
func writeQueue(w io.Writer, queue Queue) error {
	items := []Item(queue)
	if items == nil {
		items = []Item{}
	}
	doc := jsonQueue{
		Header: jsonHeader{
			Version: QUEUE_VERSION,
			Magic:   QUEUE_MAGIC,
			Created: time.Now().Format(time.RFC3339),
		},
		Items: items,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	return nil
}

// validate checks that the JSON header matches the expected version and magic string.
func (hdr *jsonHeader) validate() error {
	if hdr.Version != QUEUE_VERSION {
		return fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.Magic != QUEUE_MAGIC {
		return fmt.Errorf("invalid magic: %s", hdr.Magic)
	}
	return nil
}
