package formats

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// xmlNode is a parsed XML element with its attributes, child elements and
// concatenated character data.
type xmlNode struct {
	Name     string
	Attrs    map[string]string
	Children []*xmlNode
	Content  string
	Line     int
}

func (n *xmlNode) attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// readXMLTree parses a whole document and returns its root element.
func readXMLTree(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var root *xmlNode
	var stack []*xmlNode
	var content []*strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := dec.InputPos()
			return nil, &ParseError{Line: line, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := dec.InputPos()
			n := &xmlNode{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr)), Line: line}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ParseError{Line: line, Err: errors.New("multiple root elements")}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			content = append(content, &strings.Builder{})
		case xml.EndElement:
			n := stack[len(stack)-1]
			n.Content = strings.TrimSpace(content[len(content)-1].String())
			stack = stack[:len(stack)-1]
			content = content[:len(content)-1]
		case xml.CharData:
			if len(content) > 0 {
				content[len(content)-1].Write(t)
			}
		}
	}
	if root == nil {
		return nil, ErrEmptyFile
	}
	return root, nil
}

// charsetReader decodes documents declaring a non UTF-8 encoding.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// withFile fills in the file name of a ParseError produced by readXMLTree.
func withFile(err error, file string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.File == "" {
		pe.File = file
		return pe
	}
	return parseErr(file, 0, err)
}
