// Package secrets fetches portal credentials from a vault export.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for an unknown record uid.
var ErrNotFound = errors.New("secret record not found")

// Credentials are the login fields of one record. OTP is the code current
// at fetch time.
type Credentials struct {
	Username string
	Password string
	OTP      string
	HasOTP   bool
}

// String hides the values.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username:%d runes, Password:<redacted>, HasOTP:%t}", len([]rune(c.Username)), c.HasOTP)
}

// Provider resolves a record id to credentials.
type Provider interface {
	Fetch(ctx context.Context, recordID string) (Credentials, error)
}

type record struct {
	UID        string `yaml:"uid"`
	Login      string `yaml:"login"`
	Password   string `yaml:"password"`
	TOTPSecret string `yaml:"totp_secret"`
}

type vaultFile struct {
	Records []record `yaml:"records"`
}

// FileProvider reads a YAML export of the shape
//
//	records:
//	  - uid: abc
//	    login: user@example.com
//	    password: hunter2
//	    totp_secret: JBSWY3DPEHPK3PXP
type FileProvider struct {
	path   string
	now    func() time.Time
	logger *zap.Logger
}

// NewFileProvider expands ~ in path. The file is read on every Fetch so a
// rotated export is picked up without a restart.
func NewFileProvider(path string, logger *zap.Logger) (*FileProvider, error) {
	if path == "" {
		return nil, fmt.Errorf("secrets.file must be set")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding secrets path: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileProvider{path: expanded, now: time.Now, logger: logger.Named("secrets")}, nil
}

// Fetch returns the record's login and password and, when a TOTP secret is
// present, the current one-time code.
func (p *FileProvider) Fetch(ctx context.Context, recordID string) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading secrets file: %w", err)
	}
	var vault vaultFile
	if err := yaml.Unmarshal(data, &vault); err != nil {
		return Credentials{}, fmt.Errorf("parsing secrets file: %w", err)
	}

	for _, r := range vault.Records {
		if r.UID != recordID {
			continue
		}
		creds := Credentials{Username: r.Login, Password: r.Password}
		if secret := strings.TrimSpace(r.TOTPSecret); secret != "" {
			code, err := totp.GenerateCode(normalizeSecret(secret), p.now())
			if err != nil {
				return Credentials{}, fmt.Errorf("generating one-time code for %s: %w", recordID, err)
			}
			creds.OTP = code
			creds.HasOTP = true
		}
		p.logger.Info("Fetched credentials.", zap.String("record", recordID), zap.Bool("has_otp", creds.HasOTP))
		return creds, nil
	}
	return Credentials{}, fmt.Errorf("%w: %s", ErrNotFound, recordID)
}

// normalizeSecret strips the spaces and lower case that authenticator apps
// display.
func normalizeSecret(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}
