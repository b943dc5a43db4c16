// Package config provides the runtime configuration surface consumed by
// the ingestion pipeline. The pipeline never owns configuration state; it
// reads string-valued entries through the Source capability, which in
// production is backed by the remote session and in tests by a Static map.
package config

import (
	"strings"

	perrors "github.com/ekrich/spark/pkg/errors"
)

// Keys read by the ingestion pipeline. Values are strings; boolean keys
// use "true"/anything-else semantics.
const (
	// KeyInferDictAsStruct infers nested mappings as structs.
	KeyInferDictAsStruct = "spark.sql.pyspark.inferNestedDictAsStruct.enabled"
	// KeyInferArrayFromFirstElement types arrays from their first element.
	KeyInferArrayFromFirstElement = "spark.sql.pyspark.legacy.inferArrayTypeFromFirstElement.enabled"
	// KeyTimestampType selects the preferred timestamp flavor; the value
	// "TIMESTAMP_NTZ" prefers timezone-naive timestamps.
	KeyTimestampType = "spark.sql.timestampType"
	// KeySessionTimeZone is the session time zone applied to timestamp
	// column encodings.
	KeySessionTimeZone = "spark.sql.session.timeZone"
	// KeySafeArrowCast enables lossless-only value casts when building
	// columnar buffers.
	KeySafeArrowCast = "spark.sql.execution.pandas.convertToArrowArraySafely"
)

// TimestampNTZ is the KeyTimestampType value selecting naive timestamps.
const TimestampNTZ = "TIMESTAMP_NTZ"

// Source supplies configuration values by key. Implementations return one
// value per requested key, in order.
type Source interface {
	GetConfigs(keys ...string) ([]string, error)
}

// Static is an in-memory Source. Missing keys resolve to the pipeline
// defaults.
type Static map[string]string

// GetConfigs implements Source.
func (s Static) GetConfigs(keys ...string) ([]string, error) {
	values := make([]string, len(keys))
	for i, k := range keys {
		if v, ok := s[k]; ok {
			values[i] = v
			continue
		}
		values[i] = defaults[k]
	}
	return values, nil
}

var defaults = map[string]string{
	KeyInferDictAsStruct:          "false",
	KeyInferArrayFromFirstElement: "false",
	KeyTimestampType:              "TIMESTAMP_LTZ",
	KeySessionTimeZone:            "UTC",
	KeySafeArrowCast:              "false",
}

// Defaults returns a Source holding only the pipeline defaults.
func Defaults() Static {
	return Static{}
}

// Ingest holds the resolved ingestion options.
type Ingest struct {
	InferDictAsStruct          bool
	InferArrayFromFirstElement bool
	PreferTimestampNTZ         bool
	SessionTimeZone            string
	SafeArrowCast              bool
}

// ResolveIngest reads and decodes all ingestion keys from a Source.
func ResolveIngest(src Source) (Ingest, error) {
	values, err := src.GetConfigs(
		KeyInferDictAsStruct,
		KeyInferArrayFromFirstElement,
		KeyTimestampType,
		KeySessionTimeZone,
		KeySafeArrowCast,
	)
	if err != nil {
		return Ingest{}, perrors.Wrap(err, perrors.ErrorTypeConfig, "failed to read session configs")
	}
	if len(values) != 5 {
		return Ingest{}, perrors.Newf(perrors.ErrorTypeConfig,
			"config source returned %d values, want 5", len(values))
	}

	tz := values[3]
	if tz == "" {
		tz = defaults[KeySessionTimeZone]
	}

	return Ingest{
		InferDictAsStruct:          values[0] == "true",
		InferArrayFromFirstElement: values[1] == "true",
		PreferTimestampNTZ:         strings.EqualFold(values[2], TimestampNTZ),
		SessionTimeZone:            tz,
		SafeArrowCast:              values[4] == "true",
	}, nil
}
