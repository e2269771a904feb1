package qdrant

import (
	"strconv"

	"github.com/fyrsmithlabs/vecli/internal/vectorstore"
	"github.com/qdrant/go-client/qdrant"
)

func toPointStruct(p vectorstore.Point) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = qdrant.NewValueString(v)
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: payload,
	}
}

// pointID returns the numeric id of a point. vecli never writes UUID ids, so
// those report false.
func pointID(id *qdrant.PointId) (uint64, bool) {
	num, ok := id.GetPointIdOptions().(*qdrant.PointId_Num)
	if !ok {
		return 0, false
	}
	return num.Num, true
}

func toRecord(id *qdrant.PointId, payload map[string]*qdrant.Value) (vectorstore.Record, bool) {
	n, ok := pointID(id)
	if !ok {
		return vectorstore.Record{}, false
	}
	return vectorstore.Record{ID: n, Payload: payloadStrings(payload)}, true
}

// payloadStrings renders scalar payload values as strings and drops lists
// and structs.
func payloadStrings(payload map[string]*qdrant.Value) map[string]string {
	if payload == nil {
		return nil
	}
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		if s, ok := scalarString(v); ok {
			out[k] = s
		}
	}
	return out
}

func scalarString(v *qdrant.Value) (string, bool) {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue, true
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(kind.IntegerValue, 10), true
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(kind.DoubleValue, 'g', -1, 64), true
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue), true
	}
	return "", false
}
