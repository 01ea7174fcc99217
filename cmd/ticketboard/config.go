package main

import (
	"hash"
	"io"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/database"
	"github.com/ticketboard/ticketboard/internal/logger"
	"github.com/ticketboard/ticketboard/internal/sso"
	"github.com/ticketboard/ticketboard/pkg/msgraph"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

// EnvPrefix is the prefix of the environment variables overriding the configuration file.
// Nested keys are separated by a double underscore (e.g. TICKETBOARD_DATABASE__PATH).
const EnvPrefix = "TICKETBOARD_"

var defaults = map[string]any{
	"address":              "localhost:5000",
	"base_url":             "http://localhost:5000",
	"database.driver":      database.DriverStorm,
	"database.path":        "ticketboard.db",
	"database.codec":       "msgpack",
	"session.ttl":          "720h",
	"log.level":            "info",
	"microsoft.tenant":     "common",
	"microsoft.verify_ssl": true,
	"mail.timeout":         "30s",
}

// load reads the configuration file, if any, and the environment.
func load(path string) (*koanf.Koanf, error) {
	konf := koanf.New(".")
	if err := konf.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "could not load defaults")
	}

	if path != "" {
		if err := konf.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "could not load configuration file")
		}
	}

	err := konf.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	return konf, errors.Wrap(err, "could not load environment")
}

func loggerConfig(konf *koanf.Koanf) logger.Config {
	return logger.Config{
		Level: konf.String("log.level"),
		File:  konf.String("log.file"),
	}
}

func graphConfig(konf *koanf.Koanf) msgraph.Config {
	return msgraph.Config{
		ClientID:           konf.String("microsoft.client_id"),
		ClientSecret:       konf.String("microsoft.client_secret"),
		Tenant:             konf.String("microsoft.tenant"),
		Sender:             konf.String("mail.sender"),
		SenderName:         konf.String("mail.sender_name"),
		InsecureSkipVerify: !konf.Bool("microsoft.verify_ssl"),
		Timeout:            duration(konf, "mail.timeout", msgraph.DefaultTimeout),
	}
}

func ssoConfig(konf *koanf.Koanf) sso.Config {
	return sso.Config{
		ClientID:     konf.String("microsoft.client_id"),
		ClientSecret: konf.String("microsoft.client_secret"),
		Tenant:       konf.String("microsoft.tenant"),
		RedirectURL:  konf.String("microsoft.redirect_url"),
		HTTPClient:   graphConfig(konf).HTTPClient(),
	}
}

func duration(konf *koanf.Koanf, key string, fallback time.Duration) time.Duration {
	if d := konf.Duration(key); d > 0 {
		return d
	}
	return fallback
}

func kdf(l int, k []byte) []byte {
	nhash := func() hash.Hash {
		h, err := blake2b.New256(nil)
		if err != nil {
			panic(err)
		}
		return h
	}

	payload := make([]byte, l)

	kdf := hkdf.New(nhash, k, nil, nil)
	_, err := io.ReadFull(kdf, payload)
	if err != nil {
		panic(err)
	}

	return payload
}
