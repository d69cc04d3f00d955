package boltstore

import (
	"github.com/klauspost/compress/zstd"
	"gopkg.in/src-d/go-errors.v1"
	yaml "gopkg.in/yaml.v2"

	"gopkg.in/src-d/go-xquery.v0/query"
)

// ErrInvalidDocument is returned when a stored document cannot be decoded.
var ErrInvalidDocument = errors.NewKind("invalid document %s in resource %s: %s")

type record struct {
	Kind     string   `yaml:"kind"`
	Name     string   `yaml:"name,omitempty"`
	Prefix   string   `yaml:"prefix,omitempty"`
	URI      string   `yaml:"uri,omitempty"`
	Text     string   `yaml:"text,omitempty"`
	Attrs    []record `yaml:"attrs,omitempty"`
	Children []record `yaml:"children,omitempty"`
}

var kinds = map[query.NodeType]string{
	query.DocumentType:  "document",
	query.ElementType:   "element",
	query.AttributeType: "attribute",
	query.TextType:      "text",
}

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(err)
	}
}

// encode returns the zstd compressed YAML encoding of the document n.
func encode(n *query.Node) ([]byte, error) {
	data, err := yaml.Marshal(toRecord(n))
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(data, nil), nil
}

func toRecord(n *query.Node) record {
	r := record{
		Kind:   kinds[n.Kind],
		Name:   n.Name.Local,
		Prefix: n.Name.Prefix,
		URI:    n.Name.URI,
		Text:   n.Text,
	}
	for _, a := range n.Attrs {
		r.Attrs = append(r.Attrs, toRecord(a))
	}
	for _, c := range n.Children {
		r.Children = append(r.Children, toRecord(c))
	}
	return r
}

func decode(resource, path string, compressed []byte) (*query.Node, error) {
	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, ErrInvalidDocument.New(path, resource, err)
	}

	var r record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, ErrInvalidDocument.New(path, resource, err)
	}
	if r.Kind != kinds[query.DocumentType] {
		return nil, ErrInvalidDocument.New(path, resource, "root is a "+r.Kind)
	}
	children, err := fromRecords(resource, path, r.Children)
	if err != nil {
		return nil, err
	}
	return query.NewDocument(path, children...), nil
}

func fromRecords(resource, path string, rs []record) ([]*query.Node, error) {
	var nodes []*query.Node
	for _, r := range rs {
		var n *query.Node
		switch r.Kind {
		case "text":
			n = query.NewText(r.Text)
		case "element":
			attrs, err := fromRecords(resource, path, r.Attrs)
			if err != nil {
				return nil, err
			}
			children, err := fromRecords(resource, path, r.Children)
			if err != nil {
				return nil, err
			}
			n = query.NewElement(r.Name, attrs, children...)
		case "attribute":
			n = query.NewAttribute(r.Name, r.Text)
		default:
			return nil, ErrInvalidDocument.New(path, resource, "unexpected node kind "+r.Kind)
		}
		n.Name.Prefix, n.Name.URI = r.Prefix, r.URI
		nodes = append(nodes, n)
	}
	return nodes, nil
}
