package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
)

type Config struct {
	DatabaseDSN string
	FeedURL     string
	DebugAddr   string
	SigningKey  []byte
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(databaseDSN, feedURL, debugAddr, base64Secret string) (*Config, error) {
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if feedURL == "" {
		return nil, fmt.Errorf("feed URL cannot be empty")
	}

	u, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed URL must use the ws or wss scheme, got %q", u.Scheme)
	}

	if debugAddr == "" {
		return nil, fmt.Errorf("debug address cannot be empty")
	}

	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN: databaseDSN,
		FeedURL:     feedURL,
		DebugAddr:   debugAddr,
		SigningKey:  signingKey,
	}, nil
}
