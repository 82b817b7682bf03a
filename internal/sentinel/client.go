package sentinel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL  = "https://sh.dataspace.copernicus.eu"
	DefaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"

	catalogSearchPath = "/api/v1/catalog/1.0.0/search"
	processPath       = "/api/v1/process"
)

// ClientConfig holds Copernicus Data Space credentials. ClientIDs and ClientSecrets
// may list several comma separated pairs; the first pair that obtains a token is used.
type ClientConfig struct {
	BaseURL       string
	TokenURL      string
	ClientIDs     string
	ClientSecrets string
	Retries       int
	RetryWait     time.Duration
}

// Client talks to the Sentinel Hub catalog and process APIs.
type Client struct {
	cfg         ClientConfig
	credentials []clientcredentials.Config
	rest        *resty.Client
	log         *logrus.Entry
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = 5 * time.Second
	}

	if cfg.ClientIDs == "" || cfg.ClientSecrets == "" {
		return nil, &AuthenticationError{Err: errors.New("missing required environment variables: COPERNICUS_CLIENT_ID or COPERNICUS_CLIENT_SECRET")}
	}

	clientIDList := strings.Split(cfg.ClientIDs, ",")
	clientSecretList := strings.Split(cfg.ClientSecrets, ",")
	if len(clientIDList) != len(clientSecretList) {
		return nil, &AuthenticationError{Err: errors.New("mismatched number of client IDs and secrets")}
	}

	credentials := make([]clientcredentials.Config, 0, len(clientIDList))
	for i, clientID := range clientIDList {
		credentials = append(credentials, clientcredentials.Config{
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: strings.TrimSpace(clientSecretList[i]),
			TokenURL:     cfg.TokenURL,
		})
	}

	godal.RegisterAll()

	return &Client{
		cfg:         cfg,
		credentials: credentials,
		log:         logrus.WithField("component", "sentinel"),
	}, nil
}

// Authenticate obtains a token and prepares the HTTP client. It must succeed before
// Search or Fetch are called.
func (c *Client) Authenticate(ctx context.Context) error {
	var lastErr error
	for _, config := range c.credentials {
		if _, err := config.Token(ctx); err != nil {
			lastErr = &AuthenticationError{ClientID: config.ClientID, Err: describeTokenError(err)}
			c.log.WithError(err).WithField("client_id", config.ClientID).Warn("token request rejected")
			continue
		}

		c.rest = c.newRestClient(config.Client(ctx))
		c.log.WithField("client_id", config.ClientID).Debug("authenticated")
		return nil
	}
	return lastErr
}

func (c *Client) newRestClient(httpClient *http.Client) *resty.Client {
	return resty.NewWithClient(httpClient).
		SetBaseURL(c.cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(c.cfg.Retries).
		SetRetryWaitTime(c.cfg.RetryWait).
		SetRetryMaxWaitTime(4 * c.cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !isAuthFailure(err)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			entry := c.log.WithError(err)
			if r != nil && r.Request != nil {
				entry = entry.WithFields(logrus.Fields{
					"attempt": r.Request.Attempt,
					"status":  r.StatusCode(),
				})
			}
			entry.Warn("retrying sentinel hub request")
		})
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.rest == nil {
		return nil, &AuthenticationError{Err: errors.New("client is not authenticated")}
	}
	return c.rest.R().SetContext(ctx), nil
}

func describeTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return fmt.Errorf("token endpoint returned %d: %s", retrieveErr.Response.StatusCode, strings.TrimSpace(string(retrieveErr.Body)))
	}
	return err
}

func isAuthFailure(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr)
}

// checkResponse maps transport failures and non-2xx answers to typed errors.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		if isAuthFailure(err) {
			return &AuthenticationError{Err: describeTokenError(err)}
		}
		return &RemoteServiceError{Op: op, Err: err}
	}
	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return &AuthenticationError{Err: fmt.Errorf("%s rejected with status %d, check your client ID and secret", op, resp.StatusCode())}
	case resp.IsError():
		return &RemoteServiceError{Op: op, StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return nil
}
