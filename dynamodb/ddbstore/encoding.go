package ddbstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"strconv"

	"github.com/acksell/csvload/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key encoding for BadgerDB that supports proper lexicographic ordering.
// Item key format: [tableName][separator][partitionKey][separator][sortKey]
// Table metadata:  [separator]meta[separator][tableName]
//
// Table names never contain 0x00 and never start with it, so metadata keys
// cannot collide with item keys.

const keySeparator byte = 0x00

// Key type markers for encoding
const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

var metaPrefix = []byte{keySeparator, 'm', 'e', 't', 'a', keySeparator}

func metaKey(tableName string) []byte {
	return append(bytes.Clone(metaPrefix), tableName...)
}

func tablePrefix(tableName string) []byte {
	return append([]byte(tableName), keySeparator)
}

func encodeItemKey(tableName string, pk table.PrimaryKey) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(tablePrefix(tableName))

	pkBytes, err := encodeKeyValue(pk.Values.PartitionKey, pk.Definition.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(pkBytes)
	buf.WriteByte(keySeparator)

	if pk.Definition.SortKey.Name != "" {
		skBytes, err := encodeKeyValue(pk.Values.SortKey, pk.Definition.SortKey.Kind)
		if err != nil {
			return nil, fmt.Errorf("encode sort key: %w", err)
		}
		buf.Write(skBytes)
	}

	return buf.Bytes(), nil
}

// encodeKeyValue encodes a key value with proper ordering based on key kind.
func encodeKeyValue(value any, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer

	switch kind {
	case table.KeyKindS:
		buf.WriteByte(keyTypeString)
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for S key, got %T", value)
		}
		buf.Write(escapeBytes([]byte(s)))

	case table.KeyKindN:
		buf.WriteByte(keyTypeNumber)
		// Numbers in DynamoDB are stored as strings
		var numStr string
		switch v := value.(type) {
		case string:
			numStr = v
		case float64:
			numStr = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			numStr = strconv.Itoa(v)
		case int64:
			numStr = strconv.FormatInt(v, 10)
		default:
			return nil, fmt.Errorf("expected number for N key, got %T", value)
		}
		encoded, err := encodeNumber(numStr)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)

	case table.KeyKindB:
		buf.WriteByte(keyTypeBinary)
		var b []byte
		switch v := value.(type) {
		case []byte:
			b = v
		case string:
			b = []byte(v)
		default:
			return nil, fmt.Errorf("expected binary for B key, got %T", value)
		}
		buf.Write(escapeBytes(b))

	default:
		return nil, fmt.Errorf("unsupported key kind: %s", kind)
	}

	return buf.Bytes(), nil
}

// encodeNumber encodes a number string so byte order matches numeric order.
// Format: [sign byte][big-endian float64 bits]
// Positive numbers: 0x80 + bits with the sign bit flipped
// Negative numbers: 0x7F + all bits inverted
func encodeNumber(numStr string) ([]byte, error) {
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", numStr, err)
	}

	bits := math.Float64bits(f)
	buf := make([]byte, 9)

	if f >= 0 {
		buf[0] = 0x80
		bits ^= (1 << 63)
	} else {
		buf[0] = 0x7F
		bits = ^bits
	}

	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf, nil
}

// escapeBytes escapes null bytes (0x00) in the input to preserve separator integrity.
// Uses 0x01 0x01 for literal 0x00, and 0x01 0x02 for literal 0x01.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.WriteByte(0x01)
			buf.WriteByte(0x01)
		case 0x01:
			buf.WriteByte(0x01)
			buf.WriteByte(0x02)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// SerializeItem serializes a DynamoDB item to bytes for storage.
func SerializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	serializable := make(map[string]serializableAV, len(item))
	for k, v := range item {
		sav, err := toSerializable(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		serializable[k] = sav
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(serializable); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeItem deserializes bytes back to a DynamoDB item.
func DeserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var serializable map[string]serializableAV
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&serializable); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	result := make(map[string]types.AttributeValue, len(serializable))
	for k, v := range serializable {
		av, err := fromSerializable(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		result[k] = av
	}
	return result, nil
}

// serializableAV is a gob-encodable representation of AttributeValue
type serializableAV struct {
	Type  string
	Value any
}

func init() {
	gob.Register(map[string]serializableAV{})
	gob.Register([]serializableAV{})
	gob.Register([]string{})
	gob.Register([][]byte{})
}

func toSerializable(av types.AttributeValue) (serializableAV, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return serializableAV{Type: "S", Value: v.Value}, nil
	case *types.AttributeValueMemberN:
		return serializableAV{Type: "N", Value: v.Value}, nil
	case *types.AttributeValueMemberB:
		return serializableAV{Type: "B", Value: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return serializableAV{Type: "BOOL", Value: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return serializableAV{Type: "NULL", Value: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return serializableAV{Type: "SS", Value: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return serializableAV{Type: "NS", Value: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return serializableAV{Type: "BS", Value: v.Value}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]serializableAV, len(v.Value))
		for k, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			m[k] = sav
		}
		return serializableAV{Type: "M", Value: m}, nil
	case *types.AttributeValueMemberL:
		l := make([]serializableAV, len(v.Value))
		for i, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			l[i] = sav
		}
		return serializableAV{Type: "L", Value: l}, nil
	default:
		return serializableAV{}, fmt.Errorf("unsupported attribute value type: %T", av)
	}
}

func fromSerializable(sav serializableAV) (types.AttributeValue, error) {
	switch sav.Type {
	case "S":
		return &types.AttributeValueMemberS{Value: sav.Value.(string)}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sav.Value.(string)}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sav.Value.([]byte)}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sav.Value.(bool)}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sav.Value.(bool)}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sav.Value.([]string)}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sav.Value.([]string)}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sav.Value.([][]byte)}, nil
	case "M":
		m := make(map[string]types.AttributeValue)
		for k, v := range sav.Value.(map[string]serializableAV) {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "L":
		src := sav.Value.([]serializableAV)
		l := make([]types.AttributeValue, len(src))
		for i, v := range src {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return nil, fmt.Errorf("unsupported serializable type: %s", sav.Type)
	}
}
