package clone

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// AuthOptions configures the only credential acquisition this package
// performs: minting a GitHub App installation token for HTTPS sources, or
// pointing SSH at a key and known-hosts file. No interactive prompting is
// implemented (spec Non-goals).
type AuthOptions struct {
	GithubAppID               string
	GithubAppInstallationID   string
	GithubAppPrivateKeyPath   string
	SSHKeyPath                string
	SSHKnownHostsPath         string
}

// githubAppToken is the response shape of the GitHub App installation
// token endpoint.
type githubAppToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// githubAppInstallationToken mints a short-lived installation token for the
// given GitHub App, adapted from the installation-token flow used
// elsewhere in this codebase's lineage for app-based git auth.
func githubAppInstallationToken(ctx context.Context, appID, installationID, privateKeyPath string) (*githubAppToken, error) {
	privatePEMData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvironment, err)
	}

	block, _ := pem.Decode(privatePEMData)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("%w: failed to decode PEM block containing private key", ErrEnvironment)
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvironment, err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: privateKey}, nil)
	if err != nil {
		return nil, err
	}

	cl := jwt.Claims{
		Issuer:   appID,
		IssuedAt: jwt.NewNumericDate(time.Now().Add(-60 * time.Second)),
		Expiry:   jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
	}

	jwtToken, err := jwt.Signed(signer).Claims(cl).Serialize()
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("https://api.github.com/app/installations/%s/access_tokens", installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: github app token response status %d, body:%q", ErrTransport, resp.StatusCode, body)
	}

	var tok githubAppToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// ApplyAuth wires AuthOptions into the transport: a GitHub App token (if
// configured) becomes an Authorization http.extraHeader; an SSH key/known
// hosts pair (if configured) becomes a GIT_SSH_COMMAND.
func ApplyAuth(ctx context.Context, transport Transport, opts AuthOptions) error {
	if opts.GithubAppID != "" {
		tok, err := githubAppInstallationToken(ctx, opts.GithubAppID, opts.GithubAppInstallationID, opts.GithubAppPrivateKeyPath)
		if err != nil {
			return fmt.Errorf("unable to mint github app token: %w", err)
		}
		transport.SetOption("http.extraHeader", "Authorization: token "+tok.Token)
	}

	if opts.SSHKeyPath != "" {
		cmd := fmt.Sprintf("ssh -i %s -o IdentitiesOnly=yes", opts.SSHKeyPath)
		if opts.SSHKnownHostsPath != "" {
			cmd += fmt.Sprintf(" -o UserKnownHostsFile=%s", opts.SSHKnownHostsPath)
		}
		transport.SetOption("ssh-command", cmd)
	}

	return nil
}
