package scan

import (
	"crypto/md5"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mscfb "github.com/asalih/go-mscfb-scan"
	"github.com/asalih/go-mscfb-scan/internal/cfbtest"
)

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func md5Base64(b []byte) string {
	sum := md5.Sum(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func openImage(t *testing.T, image *cfbtest.Image) *mscfb.CompoundFile {
	t.Helper()
	cf, err := mscfb.OpenBytes(image.Bytes)
	require.NoError(t, err)
	t.Cleanup(func() { cf.Close() })
	return cf
}

func reportImage() *cfbtest.Image {
	return cfbtest.Build(
		cfbtest.Stream("Contents", seq(300)),
		cfbtest.Storage("Embedding 1",
			cfbtest.Stream("\x01Ole", seq(20)),
			cfbtest.Stream("\x01Ole10Native", seq(5000)),
			cfbtest.Stream("\x01CompObj", seq(76)),
		),
		cfbtest.Storage("OleStorage",
			cfbtest.Stream("ole_lower", seq(8)),
		),
	)
}

func TestScanEmbeddedObjects_SingleOle10Native(t *testing.T) {
	content := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b}
	cf := openImage(t, cfbtest.Build(cfbtest.Stream("Ole10Native", content)))

	records, errs := Collect(ScanEmbeddedObjects(cf, NameContains(DefaultMarker)))
	require.Empty(t, errs)
	require.Len(t, records, 1)

	assert.Equal(t, "Ole10Native", records[0].Name)
	assert.Equal(t, "/Ole10Native", records[0].Path)
	assert.Equal(t, uint64(12), records[0].Size)
	assert.Equal(t, md5Base64(content), records[0].MD5)
	assert.Equal(t, digest.FromBytes(content), records[0].Digest)
}

func TestScanEmbeddedObjects_MatchesStreamsOnly(t *testing.T) {
	cf := openImage(t, reportImage())

	records, errs := Collect(ScanEmbeddedObjects(cf, NameContains("Ole")))
	require.Empty(t, errs)

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	// Stored order within "Embedding 1": shorter names first.
	assert.Equal(t, []string{"\x01Ole", "\x01Ole10Native"}, names)
	assert.Equal(t, uint64(20), records[0].Size)
	assert.Equal(t, uint64(5000), records[1].Size)
	assert.Equal(t, md5Base64(seq(5000)), records[1].MD5)
}

func TestScanEmbeddedObjects_CaseSensitive(t *testing.T) {
	cf := openImage(t, reportImage())

	records, errs := Collect(ScanEmbeddedObjects(cf, NameContains("ole")))
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "/OleStorage/ole_lower", records[0].Path)
}

func TestScanEmbeddedObjects_DefaultPredicate(t *testing.T) {
	cf := openImage(t, reportImage())

	records, errs := Collect(ScanEmbeddedObjects(cf, nil))
	require.Empty(t, errs)
	assert.Len(t, records, 2)
}

func TestScanEmbeddedObjects_Deterministic(t *testing.T) {
	cf := openImage(t, reportImage())

	first, errs := Collect(ScanEmbeddedObjects(cf, NameContains(DefaultMarker)))
	require.Empty(t, errs)
	second, errs := Collect(ScanEmbeddedObjects(cf, NameContains(DefaultMarker)))
	require.Empty(t, errs)

	assert.Equal(t, first, second)
}

func TestScanEmbeddedObjects_ContinuesPastCorruptEntry(t *testing.T) {
	image := reportImage()
	image.SetDirField(image.EntryID("/Embedding 1/\x01Ole"), cfbtest.FieldSize, 200)
	cf := openImage(t, image)

	var records []Record
	var errs []error
	for record, err := range ScanEmbeddedObjects(cf, NameContains(DefaultMarker)) {
		if err != nil {
			errs = append(errs, err)
			assert.Equal(t, "/Embedding 1/\x01Ole", record.Path)
			assert.Empty(t, record.MD5)
			continue
		}
		records = append(records, record)
	}

	require.Len(t, errs, 1)
	var entryErr *EntryError
	require.ErrorAs(t, errs[0], &entryErr)
	var corruptErr *mscfb.CorruptContainerError
	assert.ErrorAs(t, errs[0], &corruptErr)

	require.Len(t, records, 1)
	assert.Equal(t, "\x01Ole10Native", records[0].Name)
}

func TestScanEmbeddedObjects_TraversalFailure(t *testing.T) {
	image := reportImage()
	// "Embedding 1" becomes reachable twice: from the root and from OleStorage.
	image.SetDirField(image.EntryID("/OleStorage"), cfbtest.FieldChild, image.EntryID("/Embedding 1"))
	cf := openImage(t, image)

	records, errs := Collect(ScanEmbeddedObjects(cf, NameContains(DefaultMarker)))
	assert.Len(t, records, 2)
	require.Len(t, errs, 1)

	var entryErr *EntryError
	assert.False(t, errors.As(errs[0], &entryErr))
	var corruptErr *mscfb.CorruptContainerError
	assert.ErrorAs(t, errs[0], &corruptErr)
}

type countingContainer struct {
	*mscfb.CompoundFile
	reads int
}

func (c *countingContainer) ReadStream(entry *mscfb.StreamEntry) ([]byte, error) {
	c.reads++
	return c.CompoundFile.ReadStream(entry)
}

func TestScanEmbeddedObjects_Lazy(t *testing.T) {
	c := &countingContainer{CompoundFile: openImage(t, reportImage())}

	seq := ScanEmbeddedObjects(c, NameContains(DefaultMarker))
	assert.Equal(t, 0, c.reads, "nothing is read before iteration")

	for range seq {
		break
	}
	assert.Equal(t, 1, c.reads, "breaking stops the walk")
}

func TestScanEmbeddedObjects_CloseMidSequence(t *testing.T) {
	cf := openImage(t, reportImage())

	var errs []error
	n := 0
	for _, err := range ScanEmbeddedObjects(cf, NameContains(DefaultMarker)) {
		n++
		if n == 1 {
			require.NoError(t, err)
			require.NoError(t, cf.Close())
			continue
		}
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], mscfb.ErrClosed)
}
