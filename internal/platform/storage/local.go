package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/platform/config"
)

// LocalStore persists composed images on the local filesystem and hands out
// expiring HMAC-signed download URLs, the stand-in for cloud SAS tokens.
type LocalStore struct {
	dir     string
	baseURL string
	secret  []byte
	ttl     time.Duration
}

func NewLocalStore(cfg *config.Config) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &LocalStore{
		dir:     cfg.ArtifactDir,
		baseURL: strings.TrimRight(cfg.ArtifactBaseURL, "/"),
		secret:  []byte(cfg.ArtifactURLSecret),
		ttl:     cfg.ArtifactURLTTL,
	}, nil
}

// Store writes the image under {jobID}/{stationID}-{name}.jpg and returns the
// relative ref recorded on the job.
func (s *LocalStore) Store(_ context.Context, jobID string, station model.WeatherStation, data []byte) (string, error) {
	name := slug.Make(station.StationName)
	if name == "" {
		name = "station"
	}
	ref := path.Join(jobID, fmt.Sprintf("%d-%s.jpg", station.StationID, name))

	full := filepath.Join(s.dir, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("%w: creating job dir: %v", common.ErrStoreUnavailable, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: writing artifact: %v", common.ErrStoreUnavailable, err)
	}
	return ref, nil
}

// SignedURL wraps a stored ref in a time-limited download URL.
func (s *LocalStore) SignedURL(ref string, now time.Time) string {
	expires := now.Add(s.ttl).Unix()
	sig := s.sign(ref, expires)
	return fmt.Sprintf("%s/api/v1/artifacts/%s?expires=%d&sig=%s", s.baseURL, ref, expires, sig)
}

// Verify checks a download request's signature and expiry.
func (s *LocalStore) Verify(ref string, expires int64, sig string, now time.Time) error {
	if now.Unix() > expires {
		return fmt.Errorf("%w: download URL expired", common.ErrForbidden)
	}
	if !hmac.Equal([]byte(s.sign(ref, expires)), []byte(sig)) {
		return fmt.Errorf("%w: invalid signature", common.ErrForbidden)
	}
	return nil
}

// Resolve maps a ref to the file path it was stored at, rejecting traversal.
func (s *LocalStore) Resolve(ref string) (string, error) {
	clean := path.Clean("/" + ref)[1:]
	if clean == "" || clean != ref || strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: invalid artifact ref", common.ErrBadRequest)
	}
	full := filepath.Join(s.dir, filepath.FromSlash(clean))
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return full, nil
}

func (s *LocalStore) sign(ref string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(ref + "|" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
