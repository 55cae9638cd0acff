package core

import "github.com/book-expert/events"

// DatasetBuiltEvent announces that a dataset was published to the object store.
type DatasetBuiltEvent struct {
	Header       events.EventHeader `json:"header"`
	MetadataKey  string             `json:"metadata_key"`
	SampleKeys   []string           `json:"sample_keys"`
	TotalSamples int                `json:"total_samples"`
}
