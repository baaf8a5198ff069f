// Copyright 2023 Contributors to the HealthGrid project.
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"bytes"
	"encoding/xml"
)

// Writer produces canonical XML byte sequences. The bytes it emits are the
// bytes that get hashed, signed and transmitted, so it deliberately avoids
// encoding/xml's marshalling (which does not guarantee a stable byte layout
// across versions) in favour of direct, escaped writes.
type Writer struct {
	buf bytes.Buffer
}

// Start writes an opening tag.
func (w *Writer) Start(name string) {
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
}

// End writes a closing tag.
func (w *Writer) End(name string) {
	w.buf.WriteString("</")
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
}

// Text writes escaped character data.
func (w *Writer) Text(s string) {
	// xml.EscapeText cannot fail on a bytes.Buffer.
	_ = xml.EscapeText(&w.buf, []byte(s))
}

// Element writes <name>text</name> with the text escaped.
func (w *Writer) Element(name, text string) {
	w.Start(name)
	w.Text(text)
	w.End(name)
}

// Attr is one name="value" attribute pair.
type Attr struct {
	Name  string
	Value string
}

// StartAttr writes an opening tag carrying the supplied attributes.
func (w *Writer) StartAttr(name string, attrs ...Attr) {
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	for _, a := range attrs {
		w.buf.WriteByte(' ')
		w.buf.WriteString(a.Name)
		w.buf.WriteString(`="`)
		_ = xml.EscapeText(&w.buf, []byte(a.Value))
		w.buf.WriteByte('"')
	}
	w.buf.WriteByte('>')
}

// AlgElement writes <name algName="alg">text</name>, the shape shared by
// hash-data, hmac-data and sig elements.
func (w *Writer) AlgElement(name, alg, text string) {
	w.StartAttr(name, Attr{Name: "algName", Value: alg})
	w.Text(text)
	w.End(name)
}

// Raw writes b verbatim. The caller is responsible for b being well-formed.
func (w *Writer) Raw(b []byte) {
	w.buf.Write(b)
}

// Bytes returns the accumulated UTF-8 bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
