// Package eggconfig resolves the small, fixed set of EGG_* environment
// variables this module reads, plus the registry-base config file
// fallback. It generalizes a PREFIX_FIELD env-override-a-parsed-file idiom
// without a reflection-based struct walk: this module's environment
// surface is a small, fixed set of named variables, not an open-ended versioned YAML
// document, so the simpler direct-lookup form is the right amount of
// machinery for the concern.
package eggconfig

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/henhouse/egg/eggerrs"
	"github.com/henhouse/egg/signer"
)

const (
	envSigningKey      = "EGG_SIGNING_KEY"
	envPrivateKey      = "EGG_PRIVATE_KEY"
	envPublicKey       = "EGG_PUBLIC_KEY"
	envRegistryURL     = "EGG_REGISTRY_URL"
	envDownloadTimeout = "EGG_DOWNLOAD_TIMEOUT"
	envCmdPrefix       = "EGG_CMD_"
	envBugsnagKey      = "EGG_BUGSNAG_API_KEY"
	envCacheS3Bucket   = "EGG_CACHE_S3_BUCKET"
	envCacheS3Region   = "EGG_CACHE_S3_REGION"
	envLogFormat       = "EGG_LOG_FORMAT"

	registryConfigFileName = ".egg-registry"
)

// SigningSeed resolves the signing key seed: EGG_SIGNING_KEY, then the
// legacy alias EGG_PRIVATE_KEY, then signer.DefaultSeed.
func SigningSeed() []byte {
	if v := os.Getenv(envSigningKey); v != "" {
		return []byte(v)
	}
	if v := os.Getenv(envPrivateKey); v != "" {
		return []byte(v)
	}
	return []byte(signer.DefaultSeed)
}

// PublicKeyEnv returns the raw EGG_PUBLIC_KEY value, if set, for signer.ParsePublicKey.
func PublicKeyEnv() (string, bool) {
	v, ok := os.LookupEnv(envPublicKey)
	return v, ok
}

// RegistryBaseURL resolves the registry origin: EGG_REGISTRY_URL first,
// then a single-line file at $HOME/.egg-registry. Returns ("", false) if
// neither is configured, meaning unresolved ImageRefs are returned as-is
// rather than fetched.
func RegistryBaseURL() (string, bool) {
	if v := os.Getenv(envRegistryURL); v != "" {
		return strings.TrimRight(v, "/"), true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(home, registryConfigFileName))
	if err != nil {
		return "", false
	}
	line := firstLine(data)
	if line == "" {
		return "", false
	}
	return strings.TrimRight(line, "/"), true
}

func firstLine(data []byte) string {
	s := string(data)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// DownloadTimeoutSeconds resolves EGG_DOWNLOAD_TIMEOUT, validated as a
// positive float number of seconds, defaulting to 30.
func DownloadTimeoutSeconds() (float64, error) {
	const defaultTimeout = 30.0
	v, ok := os.LookupEnv(envDownloadTimeout)
	if !ok || v == "" {
		return defaultTimeout, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, eggerrs.Wrap(eggerrs.KindFetch, err, "%s must be a positive number of seconds", envDownloadTimeout)
	}
	if f <= 0 {
		return 0, eggerrs.New(eggerrs.KindFetch, "%s must be positive, got %v", envDownloadTimeout, f)
	}
	return f, nil
}

// LanguageCommandOverride returns the space-separated command vector from
// EGG_CMD_<LANG> (language upper-cased), if set.
func LanguageCommandOverride(language string) ([]string, bool) {
	key := envCmdPrefix + strings.ToUpper(language)
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, false
	}
	return strings.Fields(v), true
}

// BugsnagAPIKey returns the configured Bugsnag key, if any.
func BugsnagAPIKey() (string, bool) {
	v, ok := os.LookupEnv(envBugsnagKey)
	return v, ok && v != ""
}

// CacheS3Bucket returns the configured shared fetch-cache S3 bucket, if any.
func CacheS3Bucket() (string, bool) {
	v, ok := os.LookupEnv(envCacheS3Bucket)
	return v, ok && v != ""
}

// CacheS3Region returns the configured S3 region for the shared fetch cache,
// defaulting to "us-east-1".
func CacheS3Region() string {
	if v := os.Getenv(envCacheS3Region); v != "" {
		return v
	}
	return "us-east-1"
}

// LogFormat returns the configured log formatter name ("text", "json", or
// "logstash"), defaulting to "text".
func LogFormat() string {
	v := os.Getenv(envLogFormat)
	if v == "" {
		return "text"
	}
	return v
}
