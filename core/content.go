package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/QRLogin-sec/QRLChecker/libs"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// BodyKind how a body was interpreted
type BodyKind int

const (
	BodyEmpty BodyKind = iota
	BodyForm
	BodyJSON
	BodyJSONP
	BodyOpaque
)

func (k BodyKind) String() string {
	switch k {
	case BodyEmpty:
		return "empty"
	case BodyForm:
		return "form"
	case BodyJSON:
		return "json"
	case BodyJSONP:
		return "jsonp"
	}
	return "opaque"
}

// Content a parsed body, resolved once per exchange side
type Content struct {
	Kind   BodyKind
	Text   string
	Fields *Object
}

// Object an insertion ordered JSON-like object.
// Values are string, json.Number, bool, nil, []interface{} or *Object.
type Object struct {
	keys   []string
	values map[string]interface{}
}

// NewObject create an empty object
func NewObject() *Object {
	return &Object{values: make(map[string]interface{})}
}

// Set a key, an existing key keeps its position
func (o *Object) Set(key string, value interface{}) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get value of a key
func (o *Object) Get(key string) (interface{}, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys in insertion order
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Len number of keys
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Each walk keys in order until fn returns false
func (o *Object) Each(fn func(key string, value interface{}) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// Clone shallow copy keeping order
func (o *Object) Clone() *Object {
	c := NewObject()
	o.Each(func(k string, v interface{}) bool {
		c.Set(k, v)
		return true
	})
	return c
}

// MarshalJSON keep key order on output
func (o *Object) MarshalJSON() ([]byte, error) {
	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(nil)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)
	stream.WriteObjectStart()
	for i, k := range o.keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		stream.WriteVal(o.values[k])
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// ErrUndecodable every known encoding failed
var ErrUndecodable = errors.New("unable to decode content")

var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", nil},
	{"gbk", simplifiedchinese.GBK},
	{"latin1", charmap.ISO8859_1},
	{"ascii", nil},
}

// Decode bytes to text, detected charset first then a fixed fallback list
func Decode(body []byte, contentType string) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	if enc, name, certain := charset.DetermineEncoding(body, contentType); certain {
		if text, ok := decodeWith(name, enc, body); ok {
			return text, nil
		}
	}
	for _, fb := range fallbackEncodings {
		if text, ok := decodeWith(fb.name, fb.enc, body); ok {
			return text, nil
		}
	}
	return "", ErrUndecodable
}

func decodeWith(name string, enc encoding.Encoding, body []byte) (string, bool) {
	switch name {
	case "utf-8":
		if !utf8.Valid(body) {
			return "", false
		}
		return string(body), true
	case "ascii":
		for _, b := range body {
			if b >= 0x80 {
				return "", false
			}
		}
		return string(body), true
	}
	if enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", false
	}
	// x/text substitutes invalid sequences instead of failing
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(body, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

var jsonpPattern = regexp.MustCompile(`(?s)\((.*?)\)`)

// ParseBody select a strategy by content type and parse into an ordered object
func ParseBody(headers []map[string]string, body []byte) Content {
	contentType := libs.GetHeader(headers, "Content-Type")
	text, err := Decode(body, contentType)
	if err != nil {
		text = strings.ToValidUTF8(string(body), "�")
	}
	content := Content{Text: text, Fields: NewObject()}
	if text == "" {
		content.Kind = BodyEmpty
		return content
	}

	lowerType := strings.ToLower(contentType)
	switch {
	case strings.Contains(lowerType, "application/x-www-form-urlencoded"):
		content.Kind = BodyForm
		for _, p := range parsePairs(text, false) {
			content.Fields.Set(p.Key, p.Value)
		}
	case strings.Contains(lowerType, "application/json") && !strings.Contains(text, "({"):
		content.Kind, content.Fields = parseJSONOrWrap(text, BodyJSON)
	case strings.Contains(text, "({"):
		content.Kind, content.Fields = parseJSONOrWrap(stripCallWrapper(text), BodyJSONP)
	default:
		content.Kind, content.Fields = parseJSONOrWrap(text, BodyJSON)
	}
	return content
}

func stripCallWrapper(text string) string {
	if m := jsonpPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

func parseJSONOrWrap(text string, kind BodyKind) (BodyKind, *Object) {
	v, ok := parseOrderedJSON(text)
	if !ok {
		obj := NewObject()
		obj.Set("content", text)
		return BodyOpaque, obj
	}
	if obj, isObj := v.(*Object); isObj {
		return kind, obj
	}
	obj := NewObject()
	obj.Set("content", v)
	return kind, obj
}

// parseOrderedJSON parse a JSON document keeping object key order
func parseOrderedJSON(text string) (interface{}, bool) {
	iter := jsoniter.ParseString(jsoniter.ConfigCompatibleWithStandardLibrary, text)
	v := readValue(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, false
	}
	// trailing garbage
	if iter.WhatIsNext() != jsoniter.InvalidValue {
		return nil, false
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, false
	}
	return v, true
}

func readValue(iter *jsoniter.Iterator) interface{} {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		obj := NewObject()
		iter.ReadMapCB(func(it *jsoniter.Iterator, field string) bool {
			obj.Set(field, readValue(it))
			return it.Error == nil
		})
		return obj
	case jsoniter.ArrayValue:
		arr := []interface{}{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			arr = append(arr, readValue(it))
			return it.Error == nil
		})
		return arr
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.NumberValue:
		return iter.ReadNumber()
	case jsoniter.BoolValue:
		return iter.ReadBool()
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil
	}
	iter.ReportError("readValue", "unexpected token")
	return nil
}

// Flatten inline nested objects, last write wins, arrays stay leaves
func Flatten(obj *Object) *Object {
	out := NewObject()
	flattenInto(out, obj)
	return out
}

func flattenInto(out *Object, obj *Object) {
	obj.Each(func(k string, v interface{}) bool {
		if nested, ok := v.(*Object); ok {
			flattenInto(out, nested)
			return true
		}
		out.Set(k, v)
		return true
	})
}

// Stringify render a leaf value as text
func Stringify(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		if value {
			return "true"
		}
		return "false"
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(v)
	if err != nil {
		return ""
	}
	return data
}

// unquote percent-decode, invalid escapes are kept as they are
func unquote(raw string) string {
	if !strings.Contains(raw, "%") {
		return raw
	}
	s, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return s
}

type pair struct {
	Key   string
	Value string
}

// parsePairs ordered query/form parsing
func parsePairs(raw string, keepBlank bool) []pair {
	var pairs []pair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, found := strings.Cut(part, "=")
		if !found && !keepBlank {
			continue
		}
		if v == "" && !keepBlank {
			continue
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			value = v
		}
		pairs = append(pairs, pair{Key: key, Value: value})
	}
	return pairs
}

// encodePairs form encoding keeping order
func encodePairs(obj *Object) string {
	var parts []string
	obj.Each(func(k string, v interface{}) bool {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(Stringify(v)))
		return true
	})
	return strings.Join(parts, "&")
}
