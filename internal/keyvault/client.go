// Package keyvault builds Azure Key Vault secret clients that authenticate
// with a bearer token obtained outside of kvenv.
package keyvault

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/keyvault/azsecrets"
	"github.com/kvenv/kvenv/version"
)

const (
	// DefaultDNSSuffix is the Key Vault DNS suffix of the public Azure cloud.
	DefaultDNSSuffix = "vault.azure.net"

	// APIVersion is the Key Vault REST API version spoken by azsecrets.
	APIVersion = "7.4"
)

// Vault names are 3-24 characters, alphanumerics and hyphens.
var vaultNameRE = regexp.MustCompile(`^[a-zA-Z0-9-]{3,24}$`)

// ErrEmptyToken is returned when the access token is empty or only
// whitespace.
var ErrEmptyToken = errors.New("access token is empty")

// VaultURL returns the base URL of the named vault, e.g.
// https://my-vault.vault.azure.net.
func VaultURL(name, dnsSuffix string) (string, error) {
	if !vaultNameRE.MatchString(name) {
		return "", fmt.Errorf("invalid key vault name %q: must be 3-24 characters of letters, digits and hyphens", name)
	}
	if dnsSuffix == "" {
		dnsSuffix = DefaultDNSSuffix
	}
	return "https://" + name + "." + strings.Trim(dnsSuffix, "."), nil
}

// StaticTokenCredential is an azcore.TokenCredential that always returns the
// same pre-obtained token, whatever scope or tenant is asked for.
type StaticTokenCredential struct {
	token     string
	expiresOn time.Time
}

// NewStaticTokenCredential wraps token. The token is reported as valid for
// an hour, which is longer than any single kvenv run.
func NewStaticTokenCredential(token string) (*StaticTokenCredential, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrEmptyToken
	}
	return &StaticTokenCredential{
		token:     token,
		expiresOn: time.Now().Add(time.Hour),
	}, nil
}

func (c *StaticTokenCredential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: c.token, ExpiresOn: c.expiresOn}, nil
}

// Options configures NewClient.
type Options struct {
	// DNSSuffix overrides DefaultDNSSuffix, for sovereign clouds.
	DNSSuffix string

	// VaultURL, when set, is used instead of deriving the URL from the vault
	// name and DNS suffix.
	VaultURL string

	// Transport overrides the HTTP transport.
	Transport policy.Transporter

	// DisableChallengeResourceVerification skips checking that the
	// authentication challenge's resource matches the vault domain. Only
	// needed when the vault is not on a Key Vault domain.
	DisableChallengeResourceVerification bool
}

// NewClient returns an azsecrets client for the named vault. Retries are
// disabled: every request is attempted exactly once.
func NewClient(vault, token string, opts Options) (*azsecrets.Client, error) {
	vaultURL := opts.VaultURL
	if vaultURL == "" {
		var err error
		vaultURL, err = VaultURL(vault, opts.DNSSuffix)
		if err != nil {
			return nil, err
		}
	}

	cred, err := NewStaticTokenCredential(token)
	if err != nil {
		return nil, err
	}

	clientOpts := &azsecrets.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries: -1,
			},
			Telemetry: policy.TelemetryOptions{
				ApplicationID: version.ApplicationID(),
			},
			Transport: opts.Transport,
		},
		DisableChallengeResourceVerification: opts.DisableChallengeResourceVerification,
	}

	client, err := azsecrets.NewClient(vaultURL, cred, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("creating key vault client for %s: %w", vaultURL, err)
	}

	return client, nil
}
