package resolve_version

import (
	"bytes"
	"github.com/buger/jsonparser"
)

// Merge applies a child descriptor on top of its parent and returns the
// merged json. Neither input is modified.
//
// For every top level key of the child that the parent also has:
//   - arrays: the child's elements are placed in front of the parent's
//   - other values of the same json kind: the child's value replaces the parent's
//   - kind mismatch: the parent keeps its value
//
// Keys the parent does not have are dropped.
func Merge(child, parent []byte) ([]byte, error) {
	out := bytes.Clone(parent)
	err := jsonparser.ObjectEach(child, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		k := string(key)
		parentValue, parentType, _, err := jsonparser.Get(out, k)
		switch {
		case err == jsonparser.KeyPathNotFoundError:
			return nil
		case err != nil:
			return err
		case parentType != dataType:
			return nil
		}

		var merged []byte
		if dataType == jsonparser.Array {
			merged, err = prependArray(value, parentValue)
			if err != nil {
				return err
			}
		} else {
			merged = rawValue(value, dataType)
		}
		out, err = jsonparser.Set(out, merged, k)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func prependArray(child, parent []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte('[')
	first := true
	var innerErr error
	appendAll := func(arr []byte) error {
		_, err := jsonparser.ArrayEach(arr, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
			if err != nil {
				innerErr = err
				return
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			buf.Write(rawValue(value, dataType))
		})
		if err != nil {
			return err
		}
		return innerErr
	}
	if err := appendAll(child); err != nil {
		return nil, err
	}
	if err := appendAll(parent); err != nil {
		return nil, err
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// rawValue restores the quotes jsonparser strips from string values. The
// content is still escaped so it can be written back verbatim.
func rawValue(value []byte, dataType jsonparser.ValueType) []byte {
	if dataType != jsonparser.String {
		return value
	}
	b := make([]byte, 0, len(value)+2)
	b = append(b, '"')
	b = append(b, value...)
	return append(b, '"')
}
