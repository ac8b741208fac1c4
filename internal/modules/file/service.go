package file

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/healthmate/core/internal/config"
	"go.uber.org/zap"
)

const defaultFolder = "healthmate"

// Service signs direct-to-Cloudinary uploads and deletes stored assets.
type Service struct {
	cfg  config.CloudinaryConfig
	http *http.Client
	log  *zap.Logger
	now  func() time.Time
}

func NewService(cfg config.CloudinaryConfig, log *zap.Logger) *Service {
	return &Service{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
		now:  time.Now,
	}
}

// SignedUploadParams produces the signature bundle for a client-side upload
// into the given folder.
func (s *Service) SignedUploadParams(folder string) SignedParams {
	if strings.TrimSpace(folder) == "" {
		folder = s.cfg.Folder
	}
	if folder == "" {
		folder = defaultFolder
	}

	ts := s.now().Unix()
	signature := signParams(map[string]string{
		"timestamp": strconv.FormatInt(ts, 10),
		"folder":    folder,
	}, s.cfg.APISecret)

	return SignedParams{
		Timestamp: ts,
		Signature: signature,
		Folder:    folder,
		CloudName: s.cfg.CloudName,
		APIKey:    s.cfg.APIKey,
	}
}

// Destroy removes an uploaded asset by public ID. Failures are returned but
// callers treat them as best-effort (the domain record wins).
func (s *Service) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if s.cfg.CloudName == "" || s.cfg.APIKey == "" || s.cfg.APISecret == "" {
		return fmt.Errorf("cloudinary is not configured")
	}

	ts := strconv.FormatInt(s.now().Unix(), 10)
	signature := signParams(map[string]string{
		"public_id": publicID,
		"timestamp": ts,
	}, s.cfg.APISecret)

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", ts)
	form.Set("api_key", s.cfg.APIKey)
	form.Set("signature", signature)

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/destroy", s.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("cloudinary destroy failed: %s", result.Result)
	}
	return nil
}

// signParams implements Cloudinary's request signing: parameters sorted by
// key, joined as key=value with &, then the API secret appended, SHA-1 hex.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
