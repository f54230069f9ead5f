package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"guestlist/internal/status"
	"guestlist/models"
	"guestlist/monitoring"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const pngDataURLPrefix = "data:image/png;base64,"

// Renderer turns an encoded payload into something a scanner can read.
type Renderer interface {
	Render(payload string) (string, error)
}

// QRRenderer draws the payload locally as a PNG data URL.
type QRRenderer struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewQRRenderer(size int) *QRRenderer {
	if size <= 0 {
		size = 256
	}
	return &QRRenderer{size: size, level: qrcode.Medium}
}

func (r *QRRenderer) Render(payload string) (string, error) {
	code, err := qrcode.New(payload, r.level)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, code.Image(r.size), imaging.PNG); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return pngDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ExternalRenderer builds a URL for a hosted QR service that draws the
// payload on request.
type ExternalRenderer struct {
	baseURL string
	size    int
}

func NewExternalRenderer(baseURL string, size int) *ExternalRenderer {
	if size <= 0 {
		size = 300
	}
	return &ExternalRenderer{baseURL: baseURL, size: size}
}

func (r *ExternalRenderer) Render(payload string) (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("qr service url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("qr service url: not absolute")
	}

	q := u.Query()
	q.Set("size", fmt.Sprintf("%dx%d", r.size, r.size))
	q.Set("data", payload)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CredentialIssuer renders locally first and falls back to the external
// service. Failure of both is fatal for the enrollment request.
type CredentialIssuer struct {
	primary  Renderer
	fallback Renderer
	log      logrus.FieldLogger
	metrics  *monitoring.Metrics
}

func NewCredentialIssuer(primary, fallback Renderer, log logrus.FieldLogger, metrics *monitoring.Metrics) *CredentialIssuer {
	return &CredentialIssuer{primary: primary, fallback: fallback, log: log, metrics: metrics}
}

func EncodePayload(p models.CredentialPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodePayload(s string) (models.CredentialPayload, error) {
	var p models.CredentialPayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return p, fmt.Errorf("decode credential payload: %w", err)
	}
	return p, nil
}

// Issue renders an already encoded payload.
func (c *CredentialIssuer) Issue(payload string) (*models.Credential, error) {
	log := c.log.WithField("payload_bytes", len(payload))

	if c.primary != nil {
		link, err := c.primary.Render(payload)
		if err == nil {
			c.metrics.TrackCredential(models.CredentialImage)
			return &models.Credential{URL: link, Kind: models.CredentialImage, Payload: payload}, nil
		}
		log.WithError(err).Warn("local qr rendering failed, using external service")
	}

	if c.fallback != nil {
		link, err := c.fallback.Render(payload)
		if err == nil {
			c.metrics.TrackCredential(models.CredentialExternal)
			return &models.Credential{URL: link, Kind: models.CredentialExternal, Payload: payload}, nil
		}
		log.WithError(err).Error("external qr rendering failed")
	}

	c.metrics.TrackCredential("failed")
	return nil, status.ErrCredentialIssuance
}
