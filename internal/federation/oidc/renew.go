package oidc

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/cmswift/authbroker/internal/authtoken"
)

// renewalLead is how long before the external token's expiry the renewal
// fires; renewalFloor is the shortest pause between attempts so a token
// that is already near expiry cannot turn the loop into a busy retry.
const (
	renewalLead  = time.Minute
	renewalFloor = 30 * time.Second
)

// StartRenewal keeps a long-lived session from silently expiring: it
// refreshes the external token shortly before expiry, re-converts it, and
// hands the fresh internal token to publish. The loop stops on context
// cancellation, when the provider issued no refresh token, or on the first
// refresh failure (the session then expires naturally and the user signs in
// again).
func (c *Client) StartRenewal(ctx context.Context, ext *ExternalUser, publish func(context.Context, *authtoken.AuthToken) error) {
	if ext.RefreshToken == "" {
		return
	}

	go c.renewLoop(ctx, *ext, publish)
}

func (c *Client) renewLoop(ctx context.Context, ext ExternalUser, publish func(context.Context, *authtoken.AuthToken) error) {
	for {
		wait := time.Until(ext.Expiry) - c.renewLead
		if wait < c.renewFloor {
			wait = c.renewFloor
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		source := c.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: ext.RefreshToken})
		token, err := source.Token()
		if err != nil {
			c.logger.Warn("silent renewal failed", "error", err)
			return
		}

		ext.AccessToken = token.AccessToken
		ext.Expiry = token.Expiry
		if token.RefreshToken != "" {
			ext.RefreshToken = token.RefreshToken
		}
		if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
			ext.RawIDToken = raw
		}

		renewed, err := c.Convert(ctx, &ext)
		if err != nil {
			c.logger.Warn("silent renewal conversion failed", "error", err)
			return
		}
		if err := publish(ctx, renewed); err != nil {
			c.logger.Warn("silent renewal publish failed", "error", err)
			return
		}

		c.logger.Debug("session silently renewed", "expiry", ext.Expiry)
	}
}
