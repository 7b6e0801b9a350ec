package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Authenticator validates callers against either a shared service
// token (machine-to-machine) or an OIDC issuer's userinfo endpoint.
// With neither configured it refuses to start rather than run open.
type Authenticator struct {
	config       *oauth2.Config
	issuer       string
	serviceToken string
}

func NewAuthenticator(issuer, clientID, clientSecret, serviceToken string) (*Authenticator, error) {
	if issuer == "" && serviceToken == "" {
		return nil, fmt.Errorf("authentication configuration incomplete: set OIDC_ISSUER or SERVICE_TOKEN")
	}

	a := &Authenticator{issuer: issuer, serviceToken: serviceToken}
	if issuer != "" {
		if clientID == "" {
			return nil, fmt.Errorf("OIDC configuration incomplete: OIDC_CLIENT_ID required with OIDC_ISSUER")
		}
		a.config = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  fmt.Sprintf("%s/authorize", issuer),
				TokenURL: fmt.Sprintf("%s/token", issuer),
			},
			Scopes: []string{"openid", "profile", "email"},
		}
	}
	return a, nil
}

// ValidateToken returns the caller's claims. The service token is
// compared in constant time; anything else is presented to the OIDC
// userinfo endpoint.
func (a *Authenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	if a.serviceToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(a.serviceToken)) == 1 {
		return map[string]interface{}{"sub": "service", "scope": "internal"}, nil
	}

	if a.config == nil {
		return nil, fmt.Errorf("token rejected")
	}
	return a.userinfo(ctx, token)
}

func (a *Authenticator) userinfo(ctx context.Context, token string) (map[string]interface{}, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	resp, err := client.Get(fmt.Sprintf("%s/userinfo", a.issuer))
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token rejected by issuer: %s", resp.Status)
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("invalid userinfo response: %w", err)
	}
	return claims, nil
}
