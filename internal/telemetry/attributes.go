// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across packages.
const (
	CatalogDirKey      = "catalog.dir"
	CatalogEntriesKey  = "catalog.entries"
	CatalogPlannedKey  = "catalog.planned"
	CatalogDerivedKey  = "catalog.derived"
	RenditionFileKey   = "rendition.file"
	RenditionResKey    = "rendition.resolution"
	RenditionFormatKey = "rendition.format"
	SessionIDKey       = "session.id"
	SessionRemoteKey   = "session.remote"
	StreamProtocolKey  = "stream.protocol"
)

// RenditionAttributes describes one rendition.
func RenditionAttributes(file string, resolution int, format string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RenditionFileKey, file),
		attribute.Int(RenditionResKey, resolution),
		attribute.String(RenditionFormatKey, format),
	}
}

// StreamAttributes describes a dispatched stream.
func StreamAttributes(file, protocol string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RenditionFileKey, file),
		attribute.String(StreamProtocolKey, protocol),
	}
}

// RecordError marks span failed with err. A nil err is a no-op.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
