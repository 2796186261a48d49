package embedinfo

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asalih/go-mscfb-scan/scan"
)

func TestFromRecords(t *testing.T) {
	info := FromRecords([]scan.Record{
		{Name: "Ole10Native", Size: 12, MD5: "abc="},
		{Name: "Ole", Size: 20, MD5: "def="},
	})

	require.Len(t, info.Embeds, 2)
	assert.Equal(t, Embed{Name: "Ole10Native", Size: 12, MD5Hash: "abc="}, info.Embeds[0])
	assert.Equal(t, "Ole", info.Embeds[1].Name)
}

func TestWrite(t *testing.T) {
	report := NewReport("reports/sales.rpt", FromRecords([]scan.Record{
		{Name: "Ole10Native", Size: 12, MD5: "abc="},
	}))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, report))

	out := buf.String()
	assert.Contains(t, out, xml.Header)
	assert.Contains(t, out, `<Report Name="sales" FileName="reports/sales.rpt">`)
	assert.Contains(t, out, `<Embed Name="Ole10Native" Size="12" MD5Hash="abc="></Embed>`)

	var decoded Report
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &decoded))
	require.NotNil(t, decoded.Embedinfo)
	assert.Equal(t, "sales", decoded.Name)
	assert.Equal(t, uint64(12), decoded.Embedinfo.Embeds[0].Size)
}

func TestWrite_NoEmbedinfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewReport("sub.rpt", nil)))
	assert.NotContains(t, buf.String(), "Embedinfo")
}

func TestWrite_EmptyEmbedinfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewReport("plain.rpt", FromRecords(nil))))
	assert.Contains(t, buf.String(), "<Embedinfo></Embedinfo>")
}
