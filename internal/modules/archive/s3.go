package archive

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/willvault/core/internal/config"
)

// s3Uploader ships archives to an S3-compatible bucket with a minimal
// sigv4 PUT. Only the headers it sends are signed.
type s3Uploader struct {
	endpoint  *url.URL
	bucket    string
	region    string
	accessKey string
	secretKey string
	prefix    string
	pathStyle bool
	client    *http.Client
}

func newS3Uploader(opts config.S3Options) (*s3Uploader, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if bucket == "" || region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid s3 endpoint: %s", endpoint)
	}

	// Custom endpoints rarely support virtual-hosted buckets.
	pathStyle := opts.PathStyleAccess || opts.Endpoint != ""

	return &s3Uploader{
		endpoint:  parsed,
		bucket:    bucket,
		region:    region,
		accessKey: accessKey,
		secretKey: secretKey,
		prefix:    strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		pathStyle: pathStyle,
		client:    &http.Client{Timeout: 45 * time.Second},
	}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, filename string, payload []byte) error {
	key := url.PathEscape(filename)
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}

	var host, canonicalURI string
	if u.pathStyle {
		host = u.endpoint.Host
		canonicalURI = "/" + u.bucket + "/" + key
	} else {
		host = u.bucket + "." + u.endpoint.Host
		canonicalURI = "/" + key
	}
	requestURL := u.endpoint.Scheme + "://" + host + canonicalURI

	now := time.Now().UTC()
	xAmzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	payloadHash := sha256Hex(payload)

	// Keys sorted; keep them that way when adding headers.
	canonicalHeaders := strings.Join([]string{
		"content-length:" + strconv.Itoa(len(payload)),
		"content-type:application/zip",
		"host:" + host,
		"x-amz-content-sha256:" + payloadHash,
		"x-amz-date:" + xAmzDate,
	}, "\n") + "\n"
	signedHeaders := "content-length;content-type;host;x-amz-content-sha256;x-amz-date"

	canonicalRequest := strings.Join([]string{
		http.MethodPut, canonicalURI, "", canonicalHeaders, signedHeaders, payloadHash,
	}, "\n")

	scope := dateStamp + "/" + u.region + "/s3/aws4_request"
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256", xAmzDate, scope, sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	kDate := hmacSHA256([]byte("AWS4"+u.secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, u.region)
	kService := hmacSHA256(kRegion, "s3")
	signingKey := hmacSHA256(kService, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, requestURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Host = host
	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	req.Header.Set("X-Amz-Date", xAmzDate)
	req.Header.Set("Authorization",
		"AWS4-HMAC-SHA256 Credential="+u.accessKey+"/"+scope+
			", SignedHeaders="+signedHeaders+
			", Signature="+signature)

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return fmt.Errorf("s3 upload failed: status=%d body=%s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(data))
	return mac.Sum(nil)
}
