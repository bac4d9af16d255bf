package main

import (
	"fmt"
	"io"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// output builds the JSON document a command prints.
type output struct {
	doc []byte
	err error
}

func newOutput() *output {
	return &output{doc: []byte("{}")}
}

// set stores value at the sjson path.
func (o *output) set(path string, value any) *output {
	if o.err == nil {
		o.doc, o.err = sjson.SetBytes(o.doc, path, value)
	}
	return o
}

func (o *output) write(w io.Writer) error {
	if o.err != nil {
		return fmt.Errorf("failed to encode output: %w", o.err)
	}
	if _, err := w.Write(pretty.Pretty(o.doc)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
