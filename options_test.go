package safefetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewClientOptions(t *testing.T) {
	client := NewClient(
		WithBaseDomain("https://mirror.example.com"),
		WithRevision("v1.2"),
		WithUserAgent("converter"),
		WithAuthToken("token"),
		WithMaxHeaderBytes(1<<20),
		WithMultithreadThreshold(32<<20),
		WithWorkerCount(4),
		WithTimeout(10*time.Second),
	)

	assert.Equal(t, "https://mirror.example.com", client.baseDomain)
	assert.Equal(t, "v1.2", client.revision)
	assert.Equal(t, "converter", client.userAgent)
	assert.Equal(t, "token", client.authToken)
	assert.Equal(t, int64(1<<20), client.maxHeaderBytes)
	assert.Equal(t, int64(32<<20), client.multithreadThreshold)
	assert.Equal(t, 4, client.workerCount)
	assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
}
