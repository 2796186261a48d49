// Package embedinfo renders scan records as the Embedinfo XML element of a
// report definition dump.
package embedinfo

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/asalih/go-mscfb-scan/scan"
)

// Embed is one embedded object stream.
type Embed struct {
	XMLName xml.Name `xml:"Embed"`
	Name    string   `xml:"Name,attr"`
	Size    uint64   `xml:"Size,attr"`
	MD5Hash string   `xml:"MD5Hash,attr"`
}

type Embedinfo struct {
	XMLName xml.Name `xml:"Embedinfo"`
	Embeds  []Embed  `xml:"Embed"`
}

// Report is the top-level document element. Embedinfo is only set for
// top-level (non-subreport) documents.
type Report struct {
	XMLName   xml.Name   `xml:"Report"`
	Name      string     `xml:"Name,attr"`
	FileName  string     `xml:"FileName,attr,omitempty"`
	Embedinfo *Embedinfo `xml:",omitempty"`
}

// FromRecords builds an Embedinfo element, one Embed per record, in order.
func FromRecords(records []scan.Record) *Embedinfo {
	info := &Embedinfo{Embeds: make([]Embed, 0, len(records))}
	for _, r := range records {
		info.Embeds = append(info.Embeds, Embed{
			Name:    r.Name,
			Size:    r.Size,
			MD5Hash: r.MD5,
		})
	}
	return info
}

// NewReport returns the Report element for the file at path.
func NewReport(path string, info *Embedinfo) *Report {
	base := filepath.Base(path)
	return &Report{
		Name:      strings.TrimSuffix(base, filepath.Ext(base)),
		FileName:  path,
		Embedinfo: info,
	}
}

// Write encodes report as an indented XML document.
func Write(w io.Writer, report *Report) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report %s: %w", report.Name, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\n")
	return err
}
