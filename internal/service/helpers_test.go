package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"infradesk/internal/domain"
	"infradesk/internal/registry"
	"infradesk/internal/service"
	"infradesk/internal/storage"
)

// fixedNow is 1700000000000 in Unix milliseconds.
var fixedNow = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

const fixedStamp = "2023-11-14T22:13:20.000Z"

type fixture struct {
	blobs   *storage.FSBlobStore
	codec   *storage.TableCodec
	emitter *service.MockEmitter
	records *service.RecordService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobs, err := storage.NewFSBlobStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	return newFixtureWithBlobs(t, blobs)
}

func newFixtureWithBlobs(t *testing.T, blobs domain.BlobStore) *fixture {
	t.Helper()
	codec := storage.NewTableCodec(blobs, nil)
	emitter := &service.MockEmitter{}
	f := &fixture{
		codec:   codec,
		emitter: emitter,
		records: service.NewRecordService(codec, registry.Default(), domain.ClockFunc(func() time.Time { return fixedNow }), emitter, nil),
	}
	if fs, ok := blobs.(*storage.FSBlobStore); ok {
		f.blobs = fs
	}
	return f
}

func (f *fixture) writeBlob(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, f.codec.Blobs().Write(name, []byte(content)))
}

func (f *fixture) readBlob(t *testing.T, name string) string {
	t.Helper()
	data, err := f.codec.Blobs().Read(name)
	require.NoError(t, err)
	return string(data)
}

// brokenBlobs fails every operation.
type brokenBlobs struct{}

var errDisk = errors.New("disk unavailable")

func (brokenBlobs) Read(string) ([]byte, error) { return nil, errDisk }
func (brokenBlobs) Write(string, []byte) error { return errDisk }
func (brokenBlobs) Stat(string) (domain.BlobInfo, error) { return domain.BlobInfo{}, errDisk }
func (brokenBlobs) List() ([]domain.BlobInfo, error) { return nil, errDisk }
func (brokenBlobs) Delete(string) error { return errDisk }
