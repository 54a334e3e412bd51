package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gestor-financiero/internal/apperr"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastBackoff(attempts uint64) func() retry.Backoff {
	return func() retry.Backoff {
		return retry.WithMaxRetries(attempts-1, retry.NewConstant(time.Millisecond))
	}
}

func newTestStore(t *testing.T, fake *fakeS3) *ObjectStore {
	t.Helper()
	return NewWithClient(fake, "documents", fastBackoff(5), zap.NewNop())
}

func TestUploadFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newTestStore(t, fake)
	userID := uuid.New()

	data := bytes.Repeat([]byte{0x42}, 2048)
	res, err := store.Upload(ctx, userID, "Mi Boleta.PNG", "image/png", data)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "user-"+userID.String()+"/"))
	assert.True(t, strings.HasSuffix(res.Key, ".png"))
	assert.Equal(t, int64(2048), res.Size)
	assert.Equal(t, "documents", res.Bucket)
	assert.Equal(t, "Mi Boleta.PNG", res.OriginalFilename)

	stored := fake.objects[res.Key]
	assert.Equal(t, "image/png", stored.metadata["content-type"])
	assert.Equal(t, url.QueryEscape("Mi Boleta.PNG"), stored.metadata["original-filename"])
	assert.Equal(t, userID.String(), stored.metadata["user-id"])

	body, info, err := store.FetchStream(ctx, res.Key)
	require.NoError(t, err)
	defer body.Close()
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Len(t, got, 2048)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, int64(2048), info.Size)
}

func TestFetchStream_NotFound(t *testing.T) {
	store := newTestStore(t, newFakeS3())
	_, _, err := store.FetchStream(context.Background(), "user-x/missing.pdf")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConnect_CreatesBucketAfterRetries(t *testing.T) {
	fake := newFakeS3()
	fake.headErrs = 2
	store := newTestStore(t, fake)

	require.NoError(t, store.Connect(context.Background()))
	assert.True(t, fake.buckets["documents"])
	// 2 failures, 1 NotFound, then connected: no further calls.
	assert.Equal(t, int32(3), fake.headCalls.Load())

	require.NoError(t, store.Connect(context.Background()))
	assert.Equal(t, int32(3), fake.headCalls.Load())
}

func TestConnect_ExhaustedAttempts(t *testing.T) {
	fake := newFakeS3()
	fake.headErrs = 100
	store := NewWithClient(fake, "documents", fastBackoff(3), zap.NewNop())

	err := store.Connect(context.Background())
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	assert.Equal(t, int32(3), fake.headCalls.Load())

	_, err = store.Upload(context.Background(), uuid.New(), "a.pdf", "application/pdf", []byte("x"))
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	assert.Equal(t, int32(6), fake.headCalls.Load(), "a later call restarts the bootstrap")
}

func TestConnect_ConcurrentCallersShareBootstrap(t *testing.T) {
	fake := newFakeS3()
	fake.buckets["documents"] = true
	fake.gate = make(chan struct{})
	store := newTestStore(t, fake)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Connect(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return fake.headCalls.Load() == 1 }, time.Second, time.Millisecond)
	close(fake.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), fake.headCalls.Load())
}

func TestListUserObjects_Paginates(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.pageSize = 2
	store := newTestStore(t, fake)
	userID, other := uuid.New(), uuid.New()

	for i := 0; i < 5; i++ {
		_, err := store.Upload(ctx, userID, "doc.pdf", "application/pdf", []byte("pdf"))
		require.NoError(t, err)
	}
	_, err := store.Upload(ctx, other, "doc.pdf", "application/pdf", []byte("pdf"))
	require.NoError(t, err)

	objects, err := store.ListUserObjects(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, objects, 5)
	for _, o := range objects {
		assert.True(t, OwnsKey(userID, o.Key))
		assert.Equal(t, "application/pdf", o.ContentType)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newTestStore(t, fake)

	res, err := store.Upload(ctx, uuid.New(), "a.jpg", "image/jpeg", []byte("jpg"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, res.Key))
	assert.Empty(t, fake.objects)

	fake.deleteError = errors.New("minio down")
	assert.Error(t, store.Delete(ctx, res.Key))
}

func TestUniqueName(t *testing.T) {
	tests := []struct {
		in, prefix, ext string
	}{
		{"Mi Boleta.PNG", "mi-boleta-", ".png"},
		{"../../etc/passwd", "passwd-", ""},
		{"factura_2024 (1).pdf", "factura-2024-1-", ".pdf"},
		{"ñandú.jpeg", "and-", ".jpeg"},
		{".pdf", "file-", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := UniqueName(tt.in)
			assert.True(t, strings.HasPrefix(got, tt.prefix), got)
			assert.True(t, strings.HasSuffix(got, tt.ext), got)
			assert.NotContains(t, got, "/")
		})
	}
	assert.NotEqual(t, UniqueName("a.pdf"), UniqueName("a.pdf"))
}

func TestOwnsKey(t *testing.T) {
	id := uuid.New()
	assert.True(t, OwnsKey(id, UserPrefix(id)+"a.pdf"))
	assert.False(t, OwnsKey(id, UserPrefix(uuid.New())+"a.pdf"))
	assert.False(t, OwnsKey(id, UserPrefix(id)+"../x"))
}
