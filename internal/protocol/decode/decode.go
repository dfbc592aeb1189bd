// Package decode turns one CSTA XML payload into a tree.Record bound to the
// command that expects its root element.
//
// Child elements become records stored under their tag in the parent scope.
// A tag that occurs once under a parent is stored as a single tree.Record;
// two or more occurrences are stored as a tree.List in document order.
// Attributes land in the record of the element that carries them, and text
// lands in that same record keyed by the element's own tag.
//
// Names share one key space per record. A child element replaces an
// attribute of the same name (<a b="1"><b/></a> keeps only the element), and
// element text replaces an attribute named like the element itself. Each
// replacement is logged at debug level.
package decode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/protocol/tree"
)

var ErrMalformedDocument = errors.New("decode: malformed document")

// Resolver maps a root element name to the command that declared it.
type Resolver interface {
	FindByEventName(eventName string) (command.Command, bool)
}

// Result is the outcome of one Decode. A zero Command means no registered
// command expects the root element.
type Result struct {
	Command   command.Command
	EventName string
	Root      string
	Tree      tree.Record
}

func (r Result) Matched() bool {
	return r.Command != nil
}

// Decode parses doc in a single forward pass. Unmatched documents are still
// checked for well-formedness.
func Decode(doc []byte, resolver Resolver) (Result, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = true

	var (
		res      Result
		b        *builder
		open     []string
		rootSeen bool
		lastText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if len(open) == 0 {
				if rootSeen {
					return Result{}, fmt.Errorf("%w: second root element <%s>", ErrMalformedDocument, name)
				}
				rootSeen = true
				res.Root = name
				if resolver != nil {
					if cmd, ok := resolver.FindByEventName(name); ok {
						res.Command = cmd
						res.EventName = name
						b = newBuilder()
					}
				}
			} else if b != nil {
				b.open(name)
			}
			if b != nil {
				b.attrs(t.Attr)
			}
			open = append(open, name)
			lastText = false

		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			if len(open) == 0 {
				return Result{}, fmt.Errorf("%w: text outside root element", ErrMalformedDocument)
			}
			if b != nil {
				b.text(open[len(open)-1], string(t), lastText)
			}
			lastText = true

		case xml.EndElement:
			open = open[:len(open)-1]
			if b != nil && len(open) > 0 {
				b.close()
			}
			lastText = false
		}
	}
	if !rootSeen {
		return Result{}, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	if b != nil {
		res.Tree = b.finish()
	}
	return res, nil
}

// builder keeps the scope stack while a matched document is walked. Lists
// are built for every child tag and collapsed on finish.
type builder struct {
	scopes []tree.Record
}

func newBuilder() *builder {
	return &builder{scopes: []tree.Record{{}}}
}

func (b *builder) current() tree.Record {
	return b.scopes[len(b.scopes)-1]
}

func (b *builder) open(name string) {
	parent := b.current()
	child := tree.Record{}
	if prev, ok := parent[name].(tree.String); ok {
		log.Debug().Str("key", name).Str("dropped", string(prev)).Msg("decode element replaces attribute")
	}
	if list, ok := parent[name].(tree.List); ok {
		parent[name] = append(list, child)
	} else {
		parent[name] = tree.List{child}
	}
	b.scopes = append(b.scopes, child)
}

func (b *builder) close() {
	if len(b.scopes) > 1 {
		b.scopes = b.scopes[:len(b.scopes)-1]
	}
}

func (b *builder) attrs(attrs []xml.Attr) {
	scope := b.current()
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		scope[a.Name.Local] = tree.String(a.Value)
	}
}

// text stores s under key; adjacent character runs inside one element
// (e.g. split by a CDATA section) are joined.
func (b *builder) text(key, s string, appendRun bool) {
	scope := b.current()
	if prev, ok := scope[key].(tree.String); ok {
		if appendRun {
			s = string(prev) + s
		} else {
			log.Debug().Str("key", key).Str("dropped", string(prev)).Msg("decode text replaces value")
		}
	}
	scope[key] = tree.String(s)
}

func (b *builder) finish() tree.Record {
	root := b.scopes[0]
	collapse(root)
	return root
}

func collapse(r tree.Record) {
	for key, v := range r {
		list, ok := v.(tree.List)
		if !ok {
			continue
		}
		for _, item := range list {
			collapse(item)
		}
		if len(list) == 1 {
			r[key] = list[0]
		}
	}
}
