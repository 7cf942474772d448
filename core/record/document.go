package record

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/dmitrymomot/zonecast/core/broadcast"
)

// Document is an XML record. Its object type is the root element name.
//
// Fields are addressed relative to the root: "Name/LastName" for element text,
// "@RefId" for a root attribute and "Name/@Type" for a nested one. When a path
// occurs more than once the first occurrence wins.
type Document struct {
	objectType string
	raw        []byte
	fields     map[string]string
}

// New returns an empty document that only accepts objectType when decoded.
// An empty objectType accepts any root element.
func New(objectType string) *Document {
	return &Document{objectType: objectType, fields: map[string]string{}}
}

// Factory returns a record factory for objectType.
func Factory(objectType string) broadcast.RecordFactory {
	return func() broadcast.TypedRecord {
		return New(objectType)
	}
}

// Parse decodes an XML document.
func Parse(data []byte) (*Document, error) {
	d := New("")
	if err := d.UnmarshalText(data); err != nil {
		return nil, err
	}
	return d, nil
}

// Build creates a document from field paths. Keys are sorted so the output is stable.
func Build(objectType string, fields map[string]string) (*Document, error) {
	if objectType == "" {
		return nil, broadcast.ErrMissingObjectType
	}
	if !validName(objectType) {
		return nil, fmt.Errorf("%w: object type %q", ErrInvalidPath, objectType)
	}

	root := &node{name: objectType}
	for _, path := range slices.Sorted(maps.Keys(fields)) {
		if err := root.set(path, fields[path]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	root.write(&buf)

	return &Document{
		objectType: objectType,
		raw:        buf.Bytes(),
		fields:     maps.Clone(fields),
	}, nil
}

// ObjectType returns the root element name.
func (d *Document) ObjectType() string { return d.objectType }

// RefID returns the RefId attribute of the root element.
func (d *Document) RefID() string { return d.fields["@RefId"] }

// Field returns the value at path.
func (d *Document) Field(path string) (string, bool) {
	v, ok := d.fields[path]
	return v, ok
}

// Fields returns a copy of every addressable value.
func (d *Document) Fields() map[string]string {
	return maps.Clone(d.fields)
}

// MarshalText returns the XML form of the document.
func (d *Document) MarshalText() ([]byte, error) {
	return slices.Clone(d.raw), nil
}

func (d *Document) String() string { return string(d.raw) }

// UnmarshalText parses XML into the document.
func (d *Document) UnmarshalText(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))

	fields := map[string]string{}
	var stack []string
	var root string

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root == "" {
				root = t.Name.Local
			} else {
				stack = append(stack, t.Name.Local)
			}
			prefix := strings.Join(stack, "/")
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				key := "@" + a.Name.Local
				if prefix != "" {
					key = prefix + "/" + key
				}
				if _, ok := fields[key]; !ok {
					fields[key] = a.Value
				}
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || len(stack) == 0 {
				continue
			}
			key := strings.Join(stack, "/")
			if _, ok := fields[key]; !ok {
				fields[key] = text
			}
		}
	}

	if root == "" {
		return ErrEmptyDocument
	}
	if d.objectType != "" && d.objectType != root {
		return fmt.Errorf("%w: want %s, got %s", ErrObjectTypeMismatch, d.objectType, root)
	}

	d.objectType = root
	d.raw = bytes.TrimSpace(slices.Clone(data))
	d.fields = fields
	return nil
}

type node struct {
	name     string
	text     string
	attrs    [][2]string
	children []*node
}

func (n *node) set(path, value string) error {
	parts := strings.Split(path, "/")
	cur := n
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		if name, ok := strings.CutPrefix(part, "@"); ok {
			if i != len(parts)-1 || !validName(name) {
				return fmt.Errorf("%w: %q", ErrInvalidPath, path)
			}
			cur.attrs = append(cur.attrs, [2]string{name, value})
			return nil
		}
		if !validName(part) {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		cur = cur.child(part)
	}
	if cur == n {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	cur.text = value
	return nil
}

// validName reports whether s can be written as an unprefixed element or
// attribute name: a letter or underscore, then letters, digits, '-', '_' or '.'.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	c := &node{name: name}
	n.children = append(n.children, c)
	return c
}

func (n *node) write(buf *bytes.Buffer) {
	buf.WriteByte('<')
	buf.WriteString(n.name)
	for _, a := range n.attrs {
		buf.WriteByte(' ')
		buf.WriteString(a[0])
		buf.WriteString(`="`)
		_ = xml.EscapeText(buf, []byte(a[1]))
		buf.WriteByte('"')
	}
	if n.text == "" && len(n.children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	_ = xml.EscapeText(buf, []byte(n.text))
	for _, c := range n.children {
		c.write(buf)
	}
	buf.WriteString("</")
	buf.WriteString(n.name)
	buf.WriteByte('>')
}
