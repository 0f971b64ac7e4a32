package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Records are stored as JSON in the same shape as the public record schema,
// so a database dump can be inspected or re-imported without this package.

func encodeItem(item *media.Item) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w: %w", item.ID, metadata.ErrInvalidRecord, err)
	}
	return data, nil
}

func decodeItem(data []byte) (*media.Item, error) {
	var item media.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &item, nil
}
