package oidc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when the token endpoint response carries no ID token
var ErrNoIDToken = errors.New("no ID token in token response")

// Exchanger trades an authorization code for the provider's ID token string.
// Only the ID token is consumed from the access token bundle.
type Exchanger struct {
	config *oauth2.Config
}

// NewExchanger builds an exchanger for the given client against the provider's
// discovered endpoints.
func NewExchanger(clientID, clientSecret, redirectURI string, scopes []string, doc *DiscoveryDocument) *Exchanger {
	return &Exchanger{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  doc.AuthorizationEndpoint,
				TokenURL: doc.TokenEndpoint,
			},
			Scopes: scopes,
		},
	}
}

// AuthCodeURL builds the provider authorization URL for the login redirect
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code and returns the raw ID token
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrNoIDToken
	}

	return idToken, nil
}
