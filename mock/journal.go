package mock

import (
	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var (
	_ codeshell.Journal   = (*Journal)(nil)
	_ codeshell.Clipboard = (*Clipboard)(nil)
)

// Journal is a mock implementation of codeshell.Journal.
type Journal struct {
	AppendFn func(record codeshell.BatchRecord) error
	LoadFn   func() ([]codeshell.BatchRecord, error)
}

func (j *Journal) Append(record codeshell.BatchRecord) error {
	return j.AppendFn(record)
}

func (j *Journal) Load() ([]codeshell.BatchRecord, error) {
	return j.LoadFn()
}

// Clipboard is a mock implementation of codeshell.Clipboard.
type Clipboard struct {
	ReadFn func() (string, error)
	CopyFn func(content string) error
}

func (c *Clipboard) Read() (string, error) {
	return c.ReadFn()
}

func (c *Clipboard) Copy(content string) error {
	return c.CopyFn(content)
}
