package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/dexidp/sso/storage/memory"
	"github.com/dexidp/sso/storage/sql"
)

func TestValidConfiguration(t *testing.T) {
	c := Config{
		Issuer:  "sso",
		Storage: Storage{Type: "memory", Config: &memory.Config{}},
		Web:     Web{HTTP: "127.0.0.1:5556"},
	}
	require.NoError(t, c.Validate())
}

func TestInvalidConfiguration(t *testing.T) {
	c := Config{}
	err := c.Validate()
	require.Error(t, err)
	require.Equal(t, "invalid config:\n\t-\tno storage supplied in config file\n\t-\tmust supply a HTTP/HTTPS address to listen on", err.Error())
}

func TestUnmarshalConfig(t *testing.T) {
	rawConfig := []byte(`
issuer: sso
storage:
  type: postgres
  config:
    host: 10.0.0.1
    port: 65432
    maxOpenConns: 5
    maxIdleConns: 3
    connMaxLifetime: 30
    connectionTimeout: 3
web:
  https: 127.0.0.1:5556
  tlsCert: /etc/ssod/tls.crt
  tlsKey: /etc/ssod/tls.key

oauth2:
  github:
    clientID: foo
    clientSecret: bar
    redirectURI: https://sso.example.com/v1/oauth2/callback/github

expiry:
  accessToken: "15m"
  refreshToken: "720h"

logger:
  level: "debug"
  format: "json"
`)

	want := Config{
		Issuer: "sso",
		Storage: Storage{
			Type: "postgres",
			Config: &postgresConfig{sql.Postgres{
				NetworkDB: sql.NetworkDB{
					Host:              "10.0.0.1",
					Port:              65432,
					MaxOpenConns:      5,
					MaxIdleConns:      3,
					ConnMaxLifetime:   30,
					ConnectionTimeout: 3,
				},
			}},
		},
		Web: Web{
			HTTPS:   "127.0.0.1:5556",
			TLSCert: "/etc/ssod/tls.crt",
			TLSKey:  "/etc/ssod/tls.key",
		},
		OAuth2: OAuth2{
			GitHub: &GitHubProvider{
				ClientID:     "foo",
				ClientSecret: "bar",
				RedirectURI:  "https://sso.example.com/v1/oauth2/callback/github",
			},
		},
		Expiry: Expiry{
			AccessToken:  "15m",
			RefreshToken: "720h",
		},
		Logger: Logger{
			Level:  "debug",
			Format: "json",
		},
	}

	var c Config
	require.NoError(t, yaml.Unmarshal(rawConfig, &c))
	require.Equal(t, want, c)
}

func TestUnknownStorageTypeFailsToUnmarshal(t *testing.T) {
	var c Config
	err := yaml.Unmarshal([]byte(`storage: {type: etcd}`), &c)
	require.Error(t, err)
}
