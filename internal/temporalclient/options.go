// Package temporalclient loads Temporal client configuration through the
// SDK's envconfig contrib package, so both binaries honor the standard
// TEMPORAL_* environment variables and config.toml profiles, including
// Temporal Cloud TLS settings.
package temporalclient

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/contrib/envconfig"
)

// LoadClientOptions resolves client options from the environment and any
// config file envconfig finds. Non-empty overrides win over the resolved
// host:port and namespace.
func LoadClientOptions(hostPortOverride, namespaceOverride string) (client.Options, error) {
	opts, err := envconfig.LoadClientOptions(envconfig.LoadClientOptionsRequest{})
	if err != nil {
		return client.Options{}, err
	}

	if hostPortOverride != "" {
		opts.HostPort = hostPortOverride
	}
	if namespaceOverride != "" {
		opts.Namespace = namespaceOverride
	}
	return opts, nil
}
