// Package rpc is the wire contract between the client sync worker and the
// remote document store. Messages are protobuf well-known types
// (structpb.Struct, emptypb.Empty), so no generated code is needed; this
// package supplies the typed envelopes and the gRPC service description.
package rpc

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformed is returned when a wire struct lacks a required field.
var ErrMalformed = errors.New("malformed message")

// Field names of the envelopes.
const (
	fieldCollection      = "collection"
	fieldKey             = "key"
	fieldFields          = "fields"
	fieldServerTimestamp = "serverTimestampFields"
	fieldUpdatedAt       = "updatedAt"
)

// UpsertRequest merges Fields into the document Collection/Key, creating it
// if needed. Every name in ServerTimestampFields is set by the server to its
// own commit time, overriding any client-supplied value.
type UpsertRequest struct {
	Collection            string
	Key                   string
	Fields                map[string]any
	ServerTimestampFields []string
}

// GetRequest addresses a single document.
type GetRequest struct {
	Collection string
	Key        string
}

// Document is a stored document as returned by the server.
type Document struct {
	Key       string
	Fields    map[string]any
	UpdatedAt time.Time
}

func (r UpsertRequest) Encode() (*structpb.Struct, error) {
	ts := make([]any, len(r.ServerTimestampFields))
	for i, f := range r.ServerTimestampFields {
		ts[i] = f
	}
	fields := r.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return structpb.NewStruct(map[string]any{
		fieldCollection:      r.Collection,
		fieldKey:             r.Key,
		fieldFields:          fields,
		fieldServerTimestamp: ts,
	})
}

func DecodeUpsertRequest(s *structpb.Struct) (UpsertRequest, error) {
	var r UpsertRequest
	var err error
	if r.Collection, r.Key, err = address(s); err != nil {
		return r, err
	}
	m := s.AsMap()
	fields, ok := m[fieldFields].(map[string]any)
	if !ok {
		return r, fmt.Errorf("%w: %s is not an object", ErrMalformed, fieldFields)
	}
	r.Fields = fields
	if raw, ok := m[fieldServerTimestamp].([]any); ok {
		for _, v := range raw {
			name, ok := v.(string)
			if !ok {
				return r, fmt.Errorf("%w: %s entries must be strings", ErrMalformed, fieldServerTimestamp)
			}
			r.ServerTimestampFields = append(r.ServerTimestampFields, name)
		}
	}
	return r, nil
}

func (r GetRequest) Encode() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{fieldCollection: r.Collection, fieldKey: r.Key})
}

func DecodeGetRequest(s *structpb.Struct) (GetRequest, error) {
	var r GetRequest
	var err error
	r.Collection, r.Key, err = address(s)
	return r, err
}

func (d Document) Encode() (*structpb.Struct, error) {
	fields := d.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return structpb.NewStruct(map[string]any{
		fieldKey:       d.Key,
		fieldFields:    fields,
		fieldUpdatedAt: d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func DecodeDocument(s *structpb.Struct) (Document, error) {
	var d Document
	m := s.AsMap()
	d.Key, _ = m[fieldKey].(string)
	if d.Key == "" {
		return d, fmt.Errorf("%w: missing %s", ErrMalformed, fieldKey)
	}
	d.Fields, _ = m[fieldFields].(map[string]any)
	if ts, ok := m[fieldUpdatedAt].(string); ok && ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return d, fmt.Errorf("%w: %s: %v", ErrMalformed, fieldUpdatedAt, err)
		}
		d.UpdatedAt = t
	}
	return d, nil
}

func address(s *structpb.Struct) (collection, key string, err error) {
	if s == nil {
		return "", "", fmt.Errorf("%w: empty message", ErrMalformed)
	}
	m := s.AsMap()
	collection, _ = m[fieldCollection].(string)
	key, _ = m[fieldKey].(string)
	if collection == "" || key == "" {
		return "", "", fmt.Errorf("%w: collection and key are required", ErrMalformed)
	}
	return collection, key, nil
}
