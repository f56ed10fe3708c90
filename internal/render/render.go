// Package render turns stored bills and certificates into downloadable
// documents.
package render

import (
	"context"
	"fmt"
	"strings"
)

type Kind string

const (
	KindInvoice     Kind = "invoice"
	KindCertificate Kind = "certificate"
)

type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Renderer renders data of the given kind. Invoices take a *model.Bill,
// certificates a *model.Certificate.
type Renderer interface {
	Render(ctx context.Context, kind Kind, data interface{}) (*Document, error)
}

// FileName builds "<kind>_<Full_Name>.<ext>".
func FileName(kind Kind, fullName, ext string) string {
	name := strings.Join(strings.Fields(fullName), "_")
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("%s_%s.%s", kind, name, ext)
}
