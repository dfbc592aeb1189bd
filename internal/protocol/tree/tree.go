// Package tree holds the generic value produced by decoding a CSTA payload:
// nested records and lists of strings.
package tree

import (
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	KindString Kind = iota + 1
	KindRecord
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is one of String, Record or List.
type Value interface {
	Kind() Kind
	isValue()
}

type String string

// Record maps attribute, text and child element names to values.
type Record map[string]Value

// List holds repeated sibling elements in document order.
type List []Record

func (String) Kind() Kind { return KindString }
func (Record) Kind() Kind { return KindRecord }
func (List) Kind() Kind   { return KindList }

func (String) isValue() {}
func (Record) isValue() {}
func (List) isValue()   {}

// String returns the string stored under key.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key].(String)
	return string(v), ok
}

// Record returns the single child record stored under key.
func (r Record) Record(key string) (Record, bool) {
	v, ok := r[key].(Record)
	return v, ok
}

// List returns the records under key. A single child record is returned as a
// one-element list so callers can range over either shape.
func (r Record) List(key string) (List, bool) {
	switch v := r[key].(type) {
	case List:
		return v, true
	case Record:
		return List{v}, true
	default:
		return nil, false
	}
}

// Text resolves key to a string whether the server sent it as an attribute
// (key="v") or as a text-only child element (<key>v</key>).
func (r Record) Text(key string) (string, bool) {
	switch v := r[key].(type) {
	case String:
		return string(v), true
	case Record:
		return v.String(key)
	default:
		return "", false
	}
}

func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dump renders r as an indented, key-sorted listing for logs and the CLI.
func Dump(r Record) string {
	var b strings.Builder
	dump(&b, r, "")
	return b.String()
}

func dump(b *strings.Builder, r Record, indent string) {
	for _, key := range r.Keys() {
		switch v := r[key].(type) {
		case String:
			fmt.Fprintf(b, "%s%s <- %s\n", indent, key, string(v))
		case Record:
			fmt.Fprintf(b, "%s%s:\n", indent, key)
			dump(b, v, indent+"  ")
		case List:
			for i, item := range v {
				fmt.Fprintf(b, "%s%s[%d]:\n", indent, key, i)
				dump(b, item, indent+"  ")
			}
		}
	}
}
