package file

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"github.com/healthmate/core/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newFixedService(folder string) *Service {
	svc := NewService(config.CloudinaryConfig{
		CloudName: "demo-cloud",
		APIKey:    "key123",
		APISecret: "secret456",
		Folder:    folder,
	}, zap.NewNop())
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	return svc
}

func TestSignedUploadParams(t *testing.T) {
	svc := newFixedService("")
	got := svc.SignedUploadParams("")

	assert.Equal(t, int64(1700000000), got.Timestamp)
	assert.Equal(t, "healthmate", got.Folder)
	assert.Equal(t, "demo-cloud", got.CloudName)
	assert.Equal(t, "key123", got.APIKey)

	sum := sha1.Sum([]byte("folder=healthmate&timestamp=1700000000" + "secret456"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got.Signature)
}

func TestSignedUploadParamsFolderPrecedence(t *testing.T) {
	svc := newFixedService("configured-folder")

	assert.Equal(t, "explicit", svc.SignedUploadParams("explicit").Folder)
	assert.Equal(t, "configured-folder", svc.SignedUploadParams("").Folder)
}

func TestSignParamsSortsKeys(t *testing.T) {
	a := signParams(map[string]string{"timestamp": "1", "public_id": "x"}, "s")
	sum := sha1.Sum([]byte("public_id=x&timestamp=1s"))
	assert.Equal(t, hex.EncodeToString(sum[:]), a)
}
