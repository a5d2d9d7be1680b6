package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		dsn   = "host=localhost user=postgres password=postgres dbname=portal sslmode=disable"
		feed  = "wss://backend.example.com/realtime/messages"
		debug = "localhost:8001"
		key   = "c29tZV9zZWNyZXQ="
	)

	tcases := []struct {
		name  string
		dsn   string
		feed  string
		debug string
		key   string
		err   bool
	}{
		{
			name:  "valid config",
			dsn:   dsn,
			feed:  feed,
			debug: debug,
			key:   key,
			err:   false,
		},
		{
			name:  "empty DSN",
			dsn:   "",
			feed:  feed,
			debug: debug,
			key:   key,
			err:   true,
		},
		{
			name:  "empty feed URL",
			dsn:   dsn,
			feed:  "",
			debug: debug,
			key:   key,
			err:   true,
		},
		{
			name:  "feed URL with http scheme",
			dsn:   dsn,
			feed:  "https://backend.example.com/realtime",
			debug: debug,
			key:   key,
			err:   true,
		},
		{
			name:  "empty debug address",
			dsn:   dsn,
			feed:  feed,
			debug: "",
			key:   key,
			err:   true,
		},
		{
			name:  "empty signing key",
			dsn:   dsn,
			feed:  feed,
			debug: debug,
			key:   "",
			err:   true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.dsn, tc.feed, tc.debug, tc.key)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.feed, config.FeedURL, "expected feed URL to match")
			assert.Equal(t, tc.debug, config.DebugAddr, "expected debug address to match")
			assert.NotEmpty(t, config.SigningKey, "expected signing key to be decoded and not empty")
		})
	}
}

func Test_decodeSigningSecret(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
